// Package enrollment implements the enroll and unenroll workflows.
//
// Capacity and duplicate-membership checks run locally before any request
// is sent, but they only save a round trip: the server remains the final
// arbiter and may still reject a request that passed them.
package enrollment

import (
	"context"
	"fmt"

	"github.com/bissquit/campus/internal/api"
	"github.com/bissquit/campus/internal/domain"
	"github.com/bissquit/campus/internal/notifications"
	"github.com/bissquit/campus/internal/pkg/ctxlog"
	"github.com/bissquit/campus/internal/pkg/metrics"
	"github.com/bissquit/campus/internal/query"
)

// Fallback messages used when the server does not supply one.
const (
	EnrollFallback   = "Failed to enroll student. Please try again."
	UnenrollFallback = "Failed to unenroll from course."
	CompleteFallback = "Failed to mark enrollment as completed."
)

const (
	opEnroll   = "enroll"
	opUnenroll = "unenroll"
	opComplete = "complete"

	outcomeSuccess  = "success"
	outcomeRejected = "rejected_locally"
	outcomeFailed   = "failed"
)

// API is the subset of the REST client the workflow needs.
type API interface {
	EnrollStudent(ctx context.Context, courseID, studentID string) (*domain.Enrollment, error)
	UnenrollStudent(ctx context.Context, courseID, studentID string) error
	CompleteEnrollment(ctx context.Context, enrollmentID string) (*domain.Enrollment, error)
}

// Workflow runs enrollment operations.
type Workflow struct {
	api      API
	cache    *query.Cache
	notifier notifications.Notifier
}

// NewWorkflow creates a workflow. A nil notifier discards notifications.
func NewWorkflow(api API, cache *query.Cache, notifier notifications.Notifier) *Workflow {
	if notifier == nil {
		notifier = notifications.Discard
	}
	return &Workflow{
		api:      api,
		cache:    cache,
		notifier: notifier,
	}
}

// AttemptEnroll enrolls studentID in course.
//
// Local failures return *ValidationError or *CapacityError and send
// nothing. A rejected request returns *EnrollmentError and leaves the
// cache untouched. On success the courses collection and the student's
// course list are invalidated once each.
func (w *Workflow) AttemptEnroll(ctx context.Context, course *domain.Course, studentID string) (*domain.Enrollment, error) {
	if err := checkEnroll(course, studentID); err != nil {
		return nil, w.rejectLocally(ctx, opEnroll, err)
	}

	ctx = ctxlog.With(ctx, "course_id", course.ID, "student_id", studentID)

	enrollment, err := query.Mutate(ctx, w.cache, func(ctx context.Context) (*domain.Enrollment, error) {
		return w.api.EnrollStudent(ctx, course.ID, studentID)
	}, query.KeyCourses, query.StudentCoursesKey(studentID))
	if err != nil {
		return nil, w.remoteFailure(ctx, opEnroll, "Enrollment Error", EnrollFallback, err)
	}

	metrics.EnrollmentAttempts.WithLabelValues(opEnroll, outcomeSuccess).Inc()
	ctxlog.FromContext(ctx).Info("student enrolled")
	notifications.Emit(ctx, w.notifier, notifications.Success(
		"Student Enrolled",
		fmt.Sprintf("Student enrolled in %s course", course.Title),
	))

	return enrollment, nil
}

// AttemptUnenroll removes studentID from course.
func (w *Workflow) AttemptUnenroll(ctx context.Context, course *domain.Course, studentID string) error {
	if course == nil || course.ID == "" {
		return w.rejectLocally(ctx, opUnenroll, &ValidationError{Field: "course", Message: "no course selected"})
	}
	if studentID == "" {
		return w.rejectLocally(ctx, opUnenroll, &ValidationError{Field: "student", Message: "no student selected"})
	}

	ctx = ctxlog.With(ctx, "course_id", course.ID, "student_id", studentID)

	_, err := query.Mutate(ctx, w.cache, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.api.UnenrollStudent(ctx, course.ID, studentID)
	}, query.KeyCourses, query.StudentCoursesKey(studentID))
	if err != nil {
		return w.remoteFailure(ctx, opUnenroll, "Error", UnenrollFallback, err)
	}

	metrics.EnrollmentAttempts.WithLabelValues(opUnenroll, outcomeSuccess).Inc()
	ctxlog.FromContext(ctx).Info("student unenrolled")
	notifications.Emit(ctx, w.notifier, notifications.Success(
		"Student Unenrolled",
		fmt.Sprintf("Successfully unenrolled from %s", course.Title),
	))
	return nil
}

// MarkCompleted marks an enrollment as completed. Any student's course
// list may change status, so all of them are invalidated.
func (w *Workflow) MarkCompleted(ctx context.Context, enrollmentID string) (*domain.Enrollment, error) {
	if enrollmentID == "" {
		return nil, w.rejectLocally(ctx, opComplete, &ValidationError{Field: "enrollment", Message: "no enrollment selected"})
	}

	ctx = ctxlog.With(ctx, "enrollment_id", enrollmentID)

	enrollment, err := query.Mutate(ctx, w.cache, func(ctx context.Context) (*domain.Enrollment, error) {
		return w.api.CompleteEnrollment(ctx, enrollmentID)
	}, query.KeyCourses, query.KeyStudentCourses)
	if err != nil {
		return nil, w.remoteFailure(ctx, opComplete, "Error", CompleteFallback, err)
	}

	metrics.EnrollmentAttempts.WithLabelValues(opComplete, outcomeSuccess).Inc()
	notifications.Emit(ctx, w.notifier, notifications.Success("Enrollment Completed", "The enrollment has been marked as completed."))
	return enrollment, nil
}

func checkEnroll(course *domain.Course, studentID string) error {
	if course == nil || course.ID == "" {
		return &ValidationError{Field: "course", Message: "no course selected"}
	}
	if studentID == "" {
		return &ValidationError{Field: "student", Message: "no student selected"}
	}
	if course.HasStudent(studentID) {
		return &ValidationError{Field: "student", Message: "student already enrolled"}
	}
	if course.IsFull() {
		return &CapacityError{CourseID: course.ID, MaxStudents: course.MaxStudents}
	}
	return nil
}

func (w *Workflow) rejectLocally(ctx context.Context, op string, err error) error {
	metrics.EnrollmentAttempts.WithLabelValues(op, outcomeRejected).Inc()
	notifications.Emit(ctx, w.notifier, localFailure(err))
	return err
}

func (w *Workflow) remoteFailure(ctx context.Context, op, title, fallback string, err error) error {
	metrics.EnrollmentAttempts.WithLabelValues(op, outcomeFailed).Inc()
	ctxlog.FromContext(ctx).Error("enrollment request failed", "operation", op, "error", err)

	message := api.MessageOr(err, fallback)
	notifications.Emit(ctx, w.notifier, notifications.Failure(title, message))

	return &EnrollmentError{Op: op, Message: message, Err: err}
}

// localFailure maps a local precondition failure to its notification.
func localFailure(err error) notifications.Notification {
	switch e := err.(type) {
	case *CapacityError:
		return notifications.Failure("Enrollment Error", "This course is already at maximum capacity")
	case *ValidationError:
		switch e.Message {
		case "no student selected":
			return notifications.Failure("Validation Error", "Please select a student to enroll")
		case "student already enrolled":
			return notifications.Failure("Validation Error", "This student is already enrolled in the course")
		}
		return notifications.Failure("Validation Error", e.Message)
	}
	return notifications.Failure("Error", err.Error())
}
