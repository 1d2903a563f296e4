// Package notifications delivers user-visible outcome messages: the
// success and error notices produced by workflows such as enrollment.
package notifications

import (
	"context"

	"github.com/bissquit/campus/internal/pkg/ctxlog"
)

// Level is the notification severity.
type Level string

// Notification levels.
const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a single user-visible message.
type Notification struct {
	Level       Level  `json:"level"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Success builds a success notification.
func Success(title, description string) Notification {
	return Notification{Level: LevelSuccess, Title: title, Description: description}
}

// Failure builds an error notification.
func Failure(title, description string) Notification {
	return Notification{Level: LevelError, Title: title, Description: description}
}

// Notifier delivers notifications to one destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// Emit delivers n. Delivery failures are logged and otherwise ignored.
func Emit(ctx context.Context, notifier Notifier, n Notification) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, n); err != nil {
		ctxlog.FromContext(ctx).Error("failed to deliver notification",
			"notifier", notifier.Name(),
			"title", n.Title,
			"error", err,
		)
	}
}

// Discard drops every notification.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Name() string { return "discard" }
func (discard) Notify(context.Context, Notification) error { return nil }
