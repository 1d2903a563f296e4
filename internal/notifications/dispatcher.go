package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/campus/internal/pkg/ctxlog"
)

// Dispatcher fans a notification out to several notifiers.
type Dispatcher struct {
	notifiers []Notifier
}

// NewDispatcher creates a dispatcher. Nil notifiers are skipped.
func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	d := &Dispatcher{}
	for _, n := range notifiers {
		if n != nil {
			d.notifiers = append(d.notifiers, n)
		}
	}
	return d
}

// Name implements Notifier.
func (d *Dispatcher) Name() string {
	return "dispatcher"
}

// Notify sends n to every notifier. A failing notifier does not stop the
// others; all failures are returned joined.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) error {
	var errs []error

	for _, notifier := range d.notifiers {
		start := time.Now()
		err := notifier.Notify(ctx, n)
		recordDuration(notifier.Name(), time.Since(start))

		if err != nil {
			recordSent(notifier.Name(), "failed")
			ctxlog.FromContext(ctx).Warn("notifier failed",
				"notifier", notifier.Name(),
				"retryable", isRetryable(err),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
			continue
		}
		recordSent(notifier.Name(), "success")
	}

	return errors.Join(errs...)
}

func isRetryable(err error) bool {
	var r interface{ IsRetryable() bool }
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return false
}
