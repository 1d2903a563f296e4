package domain

import "time"

// EnrollmentStatus is the server-side state of an enrollment.
type EnrollmentStatus string

// Enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
)

// Enrollment links one student to one course.
type Enrollment struct {
	ID          string           `json:"id"`
	Course      *Course          `json:"course,omitempty"`
	Student     *User            `json:"student,omitempty"`
	Status      EnrollmentStatus `json:"status"`
	PaidAmount  *float64         `json:"paidAmount,omitempty"`
	IsCompleted bool             `json:"isCompleted"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	EnrolledAt  time.Time        `json:"enrolledAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// EnrollStudentRequest is the body of POST /courses/{id}/enroll.
type EnrollStudentRequest struct {
	StudentID string `json:"studentId"`
}

// EnrollmentQuery filters GET /courses.
type EnrollmentQuery struct {
	StudentID   string
	CourseID    string
	Status      string
	IsCompleted *bool
}
