package domain

import "time"

// CourseStatus is the lifecycle label shown for a course.
type CourseStatus string

// Course statuses.
const (
	CourseStatusDraft      CourseStatus = "draft"
	CourseStatusPublished  CourseStatus = "published"
	CourseStatusInProgress CourseStatus = "in-progress"
	CourseStatusCompleted  CourseStatus = "completed"
)

// IsValid checks if the course status is valid.
func (s CourseStatus) IsValid() bool {
	switch s {
	case CourseStatusDraft, CourseStatusPublished,
		CourseStatusInProgress, CourseStatusCompleted:
		return true
	}
	return false
}

// DefaultMaxStudents is the capacity proposed for new courses.
const DefaultMaxStudents = 30

// Course represents a course with its teacher and enrolled students.
type Course struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	MaxStudents      int        `json:"maxStudents"`
	IsPublished      bool       `json:"isPublished"`
	StartDate        *time.Time `json:"startDate,omitempty"`
	EndDate          *time.Time `json:"endDate,omitempty"`
	Teacher          *User      `json:"teacher,omitempty"`
	EnrolledStudents []User     `json:"enrolledStudents"`
	Status           string     `json:"status,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// EnrolledCount returns the number of enrolled students.
func (c *Course) EnrolledCount() int {
	return len(c.EnrolledStudents)
}

// IsFull reports whether no seat is left.
func (c *Course) IsFull() bool {
	return c.EnrolledCount() >= c.MaxStudents
}

// HasStudent reports whether the student is in the enrolled set.
func (c *Course) HasStudent(studentID string) bool {
	for _, s := range c.EnrolledStudents {
		if s.ID == studentID {
			return true
		}
	}
	return false
}

// DeriveStatus computes the status label from the persisted fields.
// Completed is only ever decided by the server and wins when present.
func DeriveStatus(c Course) CourseStatus {
	if CourseStatus(c.Status) == CourseStatusCompleted {
		return CourseStatusCompleted
	}
	if !c.IsPublished {
		return CourseStatusDraft
	}
	if len(c.EnrolledStudents) > 0 {
		return CourseStatusInProgress
	}
	return CourseStatusPublished
}

// CourseList is the paginated envelope of GET /courses.
type CourseList struct {
	Data  []Course `json:"data"`
	Total int      `json:"total"`
}

// CreateCourseRequest is the body of POST /courses.
type CreateCourseRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	MaxStudents int        `json:"maxStudents"`
	IsPublished bool       `json:"isPublished"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	TeacherID   string     `json:"teacherId"`
}

// UpdateCourseRequest is the body of PATCH /courses/{id}.
type UpdateCourseRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	MaxStudents *int       `json:"maxStudents,omitempty"`
	IsPublished *bool      `json:"isPublished,omitempty"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
}
