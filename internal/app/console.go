package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bissquit/campus/internal/api"
	"github.com/bissquit/campus/internal/config"
	"github.com/bissquit/campus/internal/courses"
	"github.com/bissquit/campus/internal/dashboard"
	"github.com/bissquit/campus/internal/enrollment"
	"github.com/bissquit/campus/internal/identity"
	"github.com/bissquit/campus/internal/notifications"
	"github.com/bissquit/campus/internal/notifications/mattermost"
	"github.com/bissquit/campus/internal/pkg/ctxlog"
	"github.com/bissquit/campus/internal/query"
	"github.com/bissquit/campus/internal/session"
	"github.com/bissquit/campus/internal/version"
	"github.com/redis/go-redis/v9"
)

// Console is the client side: session, API client, query cache and the
// services built on them.
type Console struct {
	Logger     *slog.Logger
	Session    *session.Store
	API        *api.Client
	Cache      *query.Cache
	Notifier   notifications.Notifier
	Identity   *identity.Service
	Courses    *courses.Service
	Enrollment *enrollment.Workflow

	redis *redis.Client
}

// ConsoleOptions are the writers a console reports to.
type ConsoleOptions struct {
	Out    io.Writer // notifications
	LogOut io.Writer // logs
}

// NewConsole wires the client from cfg.
func NewConsole(ctx context.Context, cfg *config.Config, opts ConsoleOptions) (*Console, error) {
	logger := NewLogger(cfg.Log, opts.LogOut)

	store, err := session.Open(cfg.Session.Path)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	client, err := api.New(api.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		Burst:     cfg.API.Burst,
		UserAgent: "campus/" + version.Version,
	}, store)
	if err != nil {
		return nil, err
	}

	c := &Console{
		Logger:  logger,
		Session: store,
		API:     client,
	}

	cacheStore, err := c.cacheStore(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	c.Cache = query.New(cacheStore, query.Config{TTL: cfg.Cache.TTL})

	c.Notifier, err = newNotifier(cfg, opts.Out, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	c.Identity = identity.NewService(client, store, c.Cache)
	c.Courses = courses.NewService(client, c.Cache, c.Notifier)
	c.Enrollment = enrollment.NewWorkflow(client, c.Cache, c.Notifier)

	return c, nil
}

func (c *Console) cacheStore(ctx context.Context, cfg config.CacheConfig) (query.Store, error) {
	if cfg.Backend != "redis" {
		return query.NewMemoryStore(), nil
	}

	client, err := query.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	c.redis = client
	return query.NewRedisStore(client, cfg.Prefix), nil
}

// newNotifier fans notifications out to the terminal, to the log at debug
// level, and to Mattermost when a webhook is configured.
func newNotifier(cfg *config.Config, out io.Writer, logger *slog.Logger) (notifications.Notifier, error) {
	console, err := notifications.NewConsoleNotifier(out)
	if err != nil {
		return nil, fmt.Errorf("create console notifier: %w", err)
	}

	targets := []notifications.Notifier{console}
	if cfg.Log.Level == "debug" {
		targets = append(targets, notifications.NewLogNotifier(logger))
	}
	if cfg.Notify.MattermostWebhook != "" {
		targets = append(targets, mattermost.NewSender(mattermost.Config{
			WebhookURL: cfg.Notify.MattermostWebhook,
			Channel:    cfg.Notify.MattermostChannel,
			Timeout:    cfg.Notify.MattermostTimeout,
		}))
	}

	return notifications.NewDispatcher(targets...), nil
}

// Context returns ctx carrying the console logger.
func (c *Console) Context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, c.Logger)
}

// Dashboard resolves the current user's dashboard and its summary. An
// unknown role logs the user out.
func (c *Console) Dashboard(ctx context.Context) (dashboard.Variant, *dashboard.Summary, error) {
	user, err := c.Identity.Current()
	if err != nil {
		return nil, nil, err
	}

	variant, err := dashboard.Resolve(user)
	if err != nil {
		if _, logoutErr := c.Identity.Logout(ctx); logoutErr != nil {
			err = errors.Join(err, logoutErr)
		}
		return nil, nil, err
	}

	summary, err := variant.Summary(ctx, c.Courses)
	if err != nil {
		return variant, nil, err
	}
	return variant, summary, nil
}

// Close releases the redis connection, if any.
func (c *Console) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}
