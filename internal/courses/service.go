// Package courses provides cached course and user queries and the course
// management mutations.
package courses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/campus/internal/api"
	"github.com/bissquit/campus/internal/domain"
	"github.com/bissquit/campus/internal/notifications"
	"github.com/bissquit/campus/internal/pkg/ctxlog"
	"github.com/bissquit/campus/internal/pkg/validate"
	"github.com/bissquit/campus/internal/query"
)

// CreateFallback is shown when course creation fails without a server message.
const CreateFallback = "Failed to create course. Please try again."

// API is the subset of the REST client the service needs.
type API interface {
	CreateCourse(ctx context.Context, req domain.CreateCourseRequest) (*domain.Course, error)
	ListCourses(ctx context.Context, q domain.EnrollmentQuery) (*domain.CourseList, error)
	GetCourse(ctx context.Context, id string) (*domain.Course, error)
	UpdateCourse(ctx context.Context, id string, req domain.UpdateCourseRequest) (*domain.Course, error)
	DeleteCourse(ctx context.Context, id string) error
	CoursesByTeacher(ctx context.Context, teacherID string) ([]domain.Course, error)
	CoursesByStudent(ctx context.Context, studentID string) ([]domain.Course, error)
	CourseEnrollments(ctx context.Context, courseID string) ([]domain.Enrollment, error)
	Teachers(ctx context.Context) ([]domain.User, error)
	Students(ctx context.Context) ([]domain.User, error)
	UpdateUser(ctx context.Context, id string, req domain.UpdateUserRequest) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// Service serves course and user data through the query cache.
type Service struct {
	api       API
	cache     *query.Cache
	notifier  notifications.Notifier
	validator *validate.Validator
}

// NewService creates a service. A nil notifier discards notifications.
func NewService(api API, cache *query.Cache, notifier notifications.Notifier) *Service {
	if notifier == nil {
		notifier = notifications.Discard
	}
	return &Service{
		api:       api,
		cache:     cache,
		notifier:  notifier,
		validator: validate.New(),
	}
}

// List returns every course visible to the caller.
func (s *Service) List(ctx context.Context) ([]domain.Course, error) {
	return query.Fetch(ctx, s.cache, query.KeyCourses, func(ctx context.Context) ([]domain.Course, error) {
		list, err := s.api.ListCourses(ctx, domain.EnrollmentQuery{})
		if err != nil {
			return nil, fmt.Errorf("list courses: %w", err)
		}
		return list.Data, nil
	})
}

// Get returns a single course.
func (s *Service) Get(ctx context.Context, id string) (*domain.Course, error) {
	return query.Fetch(ctx, s.cache, query.CourseKey(id), func(ctx context.Context) (*domain.Course, error) {
		course, err := s.api.GetCourse(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get course: %w", err)
		}
		return course, nil
	})
}

// ForTeacher returns the courses taught by teacherID.
func (s *Service) ForTeacher(ctx context.Context, teacherID string) ([]domain.Course, error) {
	return query.Fetch(ctx, s.cache, query.TeacherCoursesKey(teacherID), func(ctx context.Context) ([]domain.Course, error) {
		courses, err := s.api.CoursesByTeacher(ctx, teacherID)
		if err != nil {
			return nil, fmt.Errorf("list teacher courses: %w", err)
		}
		return courses, nil
	})
}

// ForStudent returns the courses studentID is enrolled in.
func (s *Service) ForStudent(ctx context.Context, studentID string) ([]domain.Course, error) {
	return query.Fetch(ctx, s.cache, query.StudentCoursesKey(studentID), func(ctx context.Context) ([]domain.Course, error) {
		courses, err := s.api.CoursesByStudent(ctx, studentID)
		if err != nil {
			return nil, fmt.Errorf("list student courses: %w", err)
		}
		return courses, nil
	})
}

// Enrollments returns the enrollments of a course.
func (s *Service) Enrollments(ctx context.Context, courseID string) ([]domain.Enrollment, error) {
	return query.Fetch(ctx, s.cache, query.CourseEnrollmentsKey(courseID), func(ctx context.Context) ([]domain.Enrollment, error) {
		enrollments, err := s.api.CourseEnrollments(ctx, courseID)
		if err != nil {
			return nil, fmt.Errorf("list enrollments: %w", err)
		}
		return enrollments, nil
	})
}

// Teachers returns every educator.
func (s *Service) Teachers(ctx context.Context) ([]domain.User, error) {
	return query.Fetch(ctx, s.cache, query.KeyTeachers, func(ctx context.Context) ([]domain.User, error) {
		users, err := s.api.Teachers(ctx)
		if err != nil {
			return nil, fmt.Errorf("list teachers: %w", err)
		}
		return users, nil
	})
}

// Students returns every student.
func (s *Service) Students(ctx context.Context) ([]domain.User, error) {
	return query.Fetch(ctx, s.cache, query.KeyStudents, func(ctx context.Context) ([]domain.User, error) {
		users, err := s.api.Students(ctx)
		if err != nil {
			return nil, fmt.Errorf("list students: %w", err)
		}
		return users, nil
	})
}

// CreateInput is the course creation form.
type CreateInput struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description" validate:"required"`
	MaxStudents int        `json:"maxStudents" validate:"gte=1"`
	IsPublished bool       `json:"isPublished"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	TeacherID   string     `json:"teacherId" validate:"required"`
}

var createMessages = map[string]string{
	"title":       "Course title is required",
	"description": "Course description is required",
	"teacherId":   "Please select a teacher",
	"maxStudents": "Max students must be at least 1",
}

// Create validates input and creates the course. A zero MaxStudents means
// domain.DefaultMaxStudents. Validation failures return validate.Errors
// and send nothing.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Course, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if input.MaxStudents == 0 {
		input.MaxStudents = domain.DefaultMaxStudents
	}

	if err := s.validateCreate(input); err != nil {
		return nil, err
	}

	req := domain.CreateCourseRequest{
		Title:       input.Title,
		Description: input.Description,
		MaxStudents: input.MaxStudents,
		IsPublished: input.IsPublished,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		TeacherID:   input.TeacherID,
	}

	course, err := query.Mutate(ctx, s.cache, func(ctx context.Context) (*domain.Course, error) {
		return s.api.CreateCourse(ctx, req)
	}, query.KeyCourses)
	if err != nil {
		return nil, s.failure(ctx, "create course", CreateFallback, err)
	}

	outcome := "saved as draft"
	if course.IsPublished {
		outcome = "published"
	}
	ctxlog.FromContext(ctx).Info("course created", "course_id", course.ID)
	notifications.Emit(ctx, s.notifier, notifications.Success(
		"Course Created",
		fmt.Sprintf("%s has been %s.", course.Title, outcome),
	))
	return course, nil
}

func (s *Service) validateCreate(input CreateInput) error {
	var verrs validate.Errors
	if err := s.validator.Struct(input, createMessages); err != nil && !errors.As(err, &verrs) {
		return err
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		verrs = append(verrs, validate.FieldError{
			Field:   "endDate",
			Rule:    "after_start",
			Message: "End date cannot be before start date",
		})
	}
	if len(verrs) > 0 {
		return verrs
	}
	return nil
}

// Update patches a course.
func (s *Service) Update(ctx context.Context, id string, req domain.UpdateCourseRequest) (*domain.Course, error) {
	course, err := query.Mutate(ctx, s.cache, func(ctx context.Context) (*domain.Course, error) {
		return s.api.UpdateCourse(ctx, id, req)
	}, query.KeyCourses)
	if err != nil {
		return nil, s.failure(ctx, "update course", "Failed to update course.", err)
	}
	notifications.Emit(ctx, s.notifier, notifications.Success("Course Updated", fmt.Sprintf("%s has been updated.", course.Title)))
	return course, nil
}

// Publish sets the published flag of a course.
func (s *Service) Publish(ctx context.Context, id string, published bool) (*domain.Course, error) {
	course, err := query.Mutate(ctx, s.cache, func(ctx context.Context) (*domain.Course, error) {
		return s.api.UpdateCourse(ctx, id, domain.UpdateCourseRequest{IsPublished: &published})
	}, query.KeyCourses)
	if err != nil {
		return nil, s.failure(ctx, "publish course", "Failed to update course.", err)
	}

	outcome := "unpublished"
	if course.IsPublished {
		outcome = "published"
	}
	notifications.Emit(ctx, s.notifier, notifications.Success("Course Updated", fmt.Sprintf("%s has been %s.", course.Title, outcome)))
	return course, nil
}

// Delete removes a course.
func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := query.Mutate(ctx, s.cache, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.api.DeleteCourse(ctx, id)
	}, query.KeyCourses, query.KeyStudentCourses)
	if err != nil {
		return s.failure(ctx, "delete course", "Failed to delete course.", err)
	}
	notifications.Emit(ctx, s.notifier, notifications.Success("Course Deleted", "The course has been deleted."))
	return nil
}

// UpdateUser updates a user profile.
func (s *Service) UpdateUser(ctx context.Context, id string, req domain.UpdateUserRequest) (*domain.User, error) {
	user, err := query.Mutate(ctx, s.cache, func(ctx context.Context) (*domain.User, error) {
		return s.api.UpdateUser(ctx, id, req)
	}, query.KeyTeachers, query.KeyStudents)
	if err != nil {
		return nil, s.failure(ctx, "update user", "Failed to update user.", err)
	}
	notifications.Emit(ctx, s.notifier, notifications.Success("User Updated", fmt.Sprintf("%s has been updated.", user.FullName())))
	return user, nil
}

// DeleteUser removes a user. Courses embed teachers and students, so they
// are invalidated as well.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	_, err := query.Mutate(ctx, s.cache, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.api.DeleteUser(ctx, id)
	}, query.KeyTeachers, query.KeyStudents, query.KeyCourses)
	if err != nil {
		return s.failure(ctx, "delete user", "Failed to delete user.", err)
	}
	notifications.Emit(ctx, s.notifier, notifications.Success("User Deleted", "The user has been deleted."))
	return nil
}

// failure logs a rejected mutation, notifies and returns the error wrapped
// with op.
func (s *Service) failure(ctx context.Context, op, fallback string, err error) error {
	ctxlog.FromContext(ctx).Error("mutation failed", "operation", op, "error", err)
	notifications.Emit(ctx, s.notifier, notifications.Failure("Error", api.MessageOr(err, fallback)))
	return fmt.Errorf("%s: %w", op, err)
}
