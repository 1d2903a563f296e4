package enrollment

import "fmt"

// ValidationError reports missing or inconsistent local input. It is
// raised before any request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// CapacityError reports that the local capacity check failed. It is
// raised before any request is sent.
type CapacityError struct {
	CourseID    string
	MaxStudents int
}

func (e *CapacityError) Error() string {
	return "course full"
}

// EnrollmentError wraps a rejected or failed enrollment request. Message
// is the server-supplied message or a generic fallback.
type EnrollmentError struct {
	Op      string
	Message string
	Err     error
}

func (e *EnrollmentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *EnrollmentError) Unwrap() error {
	return e.Err
}
