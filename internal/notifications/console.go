package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ConsoleNotifier prints notifications to a terminal.
type ConsoleNotifier struct {
	mu       sync.Mutex
	w        io.Writer
	renderer *Renderer
}

// NewConsoleNotifier creates a notifier writing to w.
func NewConsoleNotifier(w io.Writer) (*ConsoleNotifier, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	return &ConsoleNotifier{w: w, renderer: renderer}, nil
}

// Name implements Notifier.
func (c *ConsoleNotifier) Name() string {
	return "console"
}

// Notify implements Notifier.
func (c *ConsoleNotifier) Notify(_ context.Context, n Notification) error {
	text, err := c.renderer.Render(n)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintln(c.w, text); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier logging through logger, or the default
// logger when nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Name implements Notifier.
func (l *LogNotifier) Name() string {
	return "log"
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "notification",
		"level", string(n.Level),
		"title", n.Title,
		"description", n.Description,
	)
	return nil
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

// Name implements Notifier.
func (r *Recorder) Name() string {
	return "recorder"
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// Notifications returns a copy of everything recorded so far.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Notification{}, false
	}
	return r.sent[len(r.sent)-1], true
}
