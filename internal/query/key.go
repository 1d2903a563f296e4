package query

import "strings"

const keySeparator = ":"

// Key identifies a cached query. Keys form a hierarchy: invalidating a key
// also invalidates every key it prefixes segment-wise, so Key{"courses"}
// covers Key{"courses", "42"} but not Key{"courses-archive"}.
type Key []string

// String renders the key as a store key.
func (k Key) String() string {
	return strings.Join(k, keySeparator)
}

// Root returns the first segment, or "" for an empty key.
func (k Key) Root() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// HasPrefix reports whether prefix is a segment-wise prefix of k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Keys used across the client.
var (
	KeyCourses        = Key{"courses"}
	KeyTeachers       = Key{"teachers"}
	KeyStudents       = Key{"students"}
	KeyStudentCourses = Key{"student-courses"}
)

// CourseKey is the key of a single course.
func CourseKey(id string) Key { return Key{"courses", id} }

// TeacherCoursesKey is the key of the courses taught by a teacher.
func TeacherCoursesKey(teacherID string) Key { return Key{"courses", "teacher", teacherID} }

// CourseEnrollmentsKey is the key of a course's enrollments.
func CourseEnrollmentsKey(courseID string) Key { return Key{"courses", courseID, "enrollments"} }

// StudentCoursesKey is the key of the courses a student is enrolled in.
func StudentCoursesKey(studentID string) Key { return Key{"student-courses", studentID} }
