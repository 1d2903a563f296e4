// Package app wires configuration into the two runnable parts of campus:
// the sandbox API server and the client console.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bissquit/campus/api/openapi"
	"github.com/bissquit/campus/internal/config"
	"github.com/bissquit/campus/internal/pkg/httputil"
	"github.com/bissquit/campus/internal/sandbox"
	"github.com/bissquit/campus/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the sandbox API server.
type Server struct {
	config        *config.Config
	logger        *slog.Logger
	sandbox       *sandbox.Sandbox
	server        *http.Server
	metricsServer *http.Server
}

// NewServer creates the sandbox server and seeds its admin account.
func NewServer(ctx context.Context, cfg *config.Config, logOut io.Writer) (*Server, error) {
	logger := NewLogger(cfg.Log, logOut)
	sc := cfg.Sandbox

	sb, err := sandbox.New(ctx, sandbox.Config{
		Auth: sandbox.AuthConfig{
			Secret:        sc.JWTSecret,
			TokenDuration: sc.TokenDuration,
		},
		AdminEmail:    sc.AdminEmail,
		AdminPassword: sc.AdminPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("create sandbox: %w", err)
	}

	s := &Server{
		config:  cfg,
		logger:  logger,
		sandbox: sb,
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", sc.Host, sc.Port),
		Handler:           s.setupRouter(),
		ReadTimeout:       sc.ReadTimeout,
		ReadHeaderTimeout: sc.ReadHeaderTimeout,
		WriteTimeout:      sc.WriteTimeout,
		IdleTimeout:       sc.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	s.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", sc.Host, sc.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Run starts the HTTP servers and blocks until the API server stops.
func (s *Server) Run() error {
	go func() {
		s.logger.Info("starting metrics server",
			"host", s.config.Sandbox.Host,
			"port", s.config.Sandbox.MetricsPort,
		)
		if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "error", err)
		}
	}()

	s.logger.Info("starting sandbox",
		"host", s.config.Sandbox.Host,
		"port", s.config.Sandbox.Port,
		"admin", s.config.Sandbox.AdminEmail,
	)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down both servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down servers")

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	for name, srv := range map[string]*http.Server{"server": s.server, "metrics server": s.metricsServer} {
		wg.Add(1)
		go func(name string, srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))
				mu.Unlock()
			}
		}(name, srv)
	}

	wg.Wait()
	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (s *Server) Router() http.Handler {
	return s.server.Handler
}

// Sandbox returns the underlying sandbox.
func (s *Server) Sandbox() *sandbox.Sandbox {
	return s.sandbox
}

func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(s.config.Sandbox.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(s.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.healthzHandler)
	r.Get("/version", s.versionHandler)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		_, _ = w.Write(openapi.Spec)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, http.StatusNotFound, fmt.Sprintf("Cannot %s %s", r.Method, r.URL.Path))
	})

	s.sandbox.Mount(r)

	return r
}

func (s *Server) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (s *Server) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

// NewLogger builds the slog logger described by cfg, writing to w.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
