// Package mattermost mirrors notifications to a Mattermost channel via an
// Incoming Webhook.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bissquit/campus/internal/notifications"
	"github.com/bissquit/campus/internal/pkg/ctxlog"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultUsername = "Campus"

	// maxErrorBody bounds how much of a failed response is kept.
	maxErrorBody = 512
)

// Config holds Mattermost sender configuration.
type Config struct {
	WebhookURL string
	Channel    string        // overrides the webhook's channel when set
	Username   string        // display name, default "Campus"
	IconURL    string        // optional
	Timeout    time.Duration // request timeout
}

// Sender posts notifications to a Mattermost webhook.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a new Mattermost sender.
func NewSender(config Config) *Sender {
	if config.Username == "" {
		config.Username = defaultUsername
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Name implements notifications.Notifier.
func (s *Sender) Name() string {
	return "mattermost"
}

// Notify implements notifications.Notifier.
func (s *Sender) Notify(ctx context.Context, n notifications.Notification) error {
	if s.config.WebhookURL == "" {
		return &DeliveryError{Message: "webhook URL is empty"}
	}

	body, err := json.Marshal(webhookPayload{
		Text:     formatText(n),
		Channel:  s.config.Channel,
		Username: s.config.Username,
		IconURL:  s.config.IconURL,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &DeliveryError{Message: fmt.Sprintf("send request: %v", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		ctxlog.FromContext(ctx).Debug("mattermost message sent",
			"webhook", maskWebhookURL(s.config.WebhookURL),
			"title", n.Title,
		)
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return classify(resp.StatusCode, string(respBody))
}

type webhookPayload struct {
	Text     string `json:"text"`
	Channel  string `json:"channel,omitempty"`
	Username string `json:"username,omitempty"`
	IconURL  string `json:"icon_url,omitempty"`
}

// formatText renders n as Mattermost markdown.
func formatText(n notifications.Notification) string {
	icon := ":white_check_mark:"
	if n.Level == notifications.LevelError {
		icon = ":x:"
	}
	if n.Description == "" {
		return fmt.Sprintf("#### %s %s", icon, n.Title)
	}
	return fmt.Sprintf("#### %s %s\n\n%s", icon, n.Title, n.Description)
}

// classify maps a non-200 webhook response to a DeliveryError. Rate limits
// and server errors are retryable; everything else is not.
func classify(status int, body string) *DeliveryError {
	e := &DeliveryError{Code: status}

	switch {
	case status == http.StatusBadRequest:
		e.Message = "bad request: " + body
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Message = "invalid or expired webhook"
	case status == http.StatusNotFound:
		e.Message = "webhook not found"
	case status == http.StatusTooManyRequests:
		e.Message, e.Retryable = "rate limited", true
	case status >= 500:
		e.Message, e.Retryable = "server error: "+body, true
	default:
		e.Message = "unexpected response: " + body
	}

	return e
}

// maskWebhookURL hides the webhook key for logging.
func maskWebhookURL(url string) string {
	if len(url) > 40 {
		return url[:20] + "..." + url[len(url)-10:]
	}
	return url
}

// DeliveryError is a failed webhook delivery.
type DeliveryError struct {
	Code      int // HTTP status, 0 when no response was received
	Message   string
	Retryable bool
}

func (e *DeliveryError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("mattermost error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("mattermost error: %s", e.Message)
}

// IsRetryable reports whether sending again may succeed.
func (e *DeliveryError) IsRetryable() bool { return e.Retryable }
