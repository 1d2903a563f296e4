package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/bissquit/campus/internal/domain"
)

// CreateCourse creates a course.
func (c *Client) CreateCourse(ctx context.Context, req domain.CreateCourseRequest) (*domain.Course, error) {
	var course domain.Course
	if err := c.post(ctx, "/courses", "/courses", req, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// ListCourses lists courses, optionally filtered.
func (c *Client) ListCourses(ctx context.Context, q domain.EnrollmentQuery) (*domain.CourseList, error) {
	var list domain.CourseList
	if err := c.get(ctx, "/courses", "/courses", courseQuery(q), &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetCourse fetches a single course.
func (c *Client) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	var course domain.Course
	if err := c.get(ctx, "/courses/{id}", "/courses/"+segment(id), nil, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// UpdateCourse patches a course.
func (c *Client) UpdateCourse(ctx context.Context, id string, req domain.UpdateCourseRequest) (*domain.Course, error) {
	var course domain.Course
	if err := c.patch(ctx, "/courses/{id}", "/courses/"+segment(id), req, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// DeleteCourse removes a course.
func (c *Client) DeleteCourse(ctx context.Context, id string) error {
	return c.delete(ctx, "/courses/{id}", "/courses/"+segment(id), nil)
}

// CoursesByTeacher lists courses taught by a teacher.
func (c *Client) CoursesByTeacher(ctx context.Context, teacherID string) ([]domain.Course, error) {
	var courses []domain.Course
	if err := c.get(ctx, "/courses/teacher/{id}", "/courses/teacher/"+segment(teacherID), nil, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// CoursesByStudent lists courses a student is enrolled in.
func (c *Client) CoursesByStudent(ctx context.Context, studentID string) ([]domain.Course, error) {
	var courses []domain.Course
	if err := c.get(ctx, "/courses/student/{id}", "/courses/student/"+segment(studentID), nil, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// EnrollStudent adds a student to a course.
func (c *Client) EnrollStudent(ctx context.Context, courseID, studentID string) (*domain.Enrollment, error) {
	var enrollment domain.Enrollment
	err := c.post(ctx, "/courses/{id}/enroll", "/courses/"+segment(courseID)+"/enroll",
		domain.EnrollStudentRequest{StudentID: studentID}, &enrollment)
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// UnenrollStudent removes a student from a course.
func (c *Client) UnenrollStudent(ctx context.Context, courseID, studentID string) error {
	return c.delete(ctx, "/courses/{id}/students/{studentId}",
		"/courses/"+segment(courseID)+"/students/"+segment(studentID), nil)
}

// CourseEnrollments lists the enrollments of a course.
func (c *Client) CourseEnrollments(ctx context.Context, courseID string) ([]domain.Enrollment, error) {
	var enrollments []domain.Enrollment
	err := c.get(ctx, "/courses/{id}/enrollments", "/courses/"+segment(courseID)+"/enrollments", nil, &enrollments)
	if err != nil {
		return nil, err
	}
	return enrollments, nil
}

// CompleteEnrollment marks an enrollment as completed.
func (c *Client) CompleteEnrollment(ctx context.Context, enrollmentID string) (*domain.Enrollment, error) {
	var enrollment domain.Enrollment
	err := c.patch(ctx, "/courses/enrollments/{id}/complete",
		"/courses/enrollments/"+segment(enrollmentID)+"/complete", nil, &enrollment)
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func courseQuery(q domain.EnrollmentQuery) url.Values {
	v := url.Values{}
	if q.StudentID != "" {
		v.Set("studentId", q.StudentID)
	}
	if q.CourseID != "" {
		v.Set("courseId", q.CourseID)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.IsCompleted != nil {
		v.Set("isCompleted", strconv.FormatBool(*q.IsCompleted))
	}
	return v
}
