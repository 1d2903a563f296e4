package notifications

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingNotifier struct {
	err   error
	calls int
}

func (f *failingNotifier) Name() string { return "failing" }

func (f *failingNotifier) Notify(context.Context, Notification) error {
	f.calls++
	return f.err
}

type retryableErr struct{}

func (retryableErr) Error() string     { return "temporarily unavailable" }
func (retryableErr) IsRetryable() bool { return true }

func TestConsoleNotifier(t *testing.T) {
	var buf bytes.Buffer
	c, err := NewConsoleNotifier(&buf)
	require.NoError(t, err)

	require.NoError(t, c.Notify(context.Background(), Success("Student Unenrolled", "Successfully unenrolled from Biology")))
	require.NoError(t, c.Notify(context.Background(), Failure("Error", "Failed to create course. Please try again.")))

	assert.Equal(t,
		"✔ Student Unenrolled\n  Successfully unenrolled from Biology\n"+
			"✖ [ERROR] Error\n  Failed to create course. Please try again.\n",
		buf.String())
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	n := NewLogNotifier(logger)
	require.NoError(t, n.Notify(context.Background(), Failure("Enrollment Error", "course full")))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `title="Enrollment Error"`)
	assert.Contains(t, out, `description="course full"`)
}

func TestDispatcher_FansOut(t *testing.T) {
	first := &Recorder{}
	second := &Recorder{}
	broken := &failingNotifier{err: retryableErr{}}

	d := NewDispatcher(first, nil, broken, second)
	err := d.Notify(context.Background(), Success("Course Created", "Algebra has been published."))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing: temporarily unavailable")
	assert.Equal(t, 1, broken.calls)
	assert.Len(t, first.Notifications(), 1)
	assert.Len(t, second.Notifications(), 1)
}

func TestDispatcher_NoFailures(t *testing.T) {
	rec := &Recorder{}
	d := NewDispatcher(rec)

	require.NoError(t, d.Notify(context.Background(), Success("A", "")))
	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, "A", last.Title)
}

func TestEmit_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	Emit(context.Background(), &failingNotifier{err: errors.New("boom")}, Success("A", ""))
	Emit(context.Background(), nil, Success("B", ""))

	assert.True(t, strings.Contains(buf.String(), "failed to deliver notification"))
	assert.Equal(t, 1, strings.Count(buf.String(), "failed to deliver notification"))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(retryableErr{}))
	assert.False(t, isRetryable(errors.New("plain")))
}

func TestRecorder_Empty(t *testing.T) {
	var r Recorder
	_, ok := r.Last()
	assert.False(t, ok)
	assert.Empty(t, r.Notifications())
}
