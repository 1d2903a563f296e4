// Package sandbox is an in-memory implementation of the school REST API.
// It backs local development and end-to-end tests of the client.
package sandbox

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bissquit/campus/internal/domain"
	"github.com/bissquit/campus/internal/pkg/metrics"
	"github.com/google/uuid"
)

// Store errors.
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrCourseNotFound        = errors.New("course not found")
	ErrEnrollmentNotFound    = errors.New("enrollment not found")
	ErrEmailTaken            = errors.New("email already exists")
	ErrTeacherNotFound       = errors.New("teacher not found")
	ErrNotStudent            = errors.New("user is not a student")
	ErrCourseNotPublished    = errors.New("course is not published")
	ErrCourseFull            = errors.New("course is full")
	ErrAlreadyEnrolled       = errors.New("student already enrolled")
	ErrNotEnrolled           = errors.New("student not enrolled")
	ErrCapacityBelowEnrolled = errors.New("capacity below enrolled count")
)

type userRecord struct {
	seq          int64
	user         domain.User
	passwordHash []byte
}

type courseRecord struct {
	seq       int64
	course    domain.Course
	teacherID string
}

type enrollmentRecord struct {
	seq         int64
	id          string
	courseID    string
	studentID   string
	isCompleted bool
	completedAt *time.Time
	enrolledAt  time.Time
	updatedAt   time.Time
}

// CourseFilter narrows Courses. Zero fields match everything.
type CourseFilter struct {
	StudentID   string
	CourseID    string
	Status      domain.CourseStatus
	IsCompleted *bool
}

// Store holds users, courses and enrollments in memory. All methods are
// safe for concurrent use and return copies.
type Store struct {
	mu          sync.RWMutex
	seq         int64
	users       map[string]*userRecord
	emails      map[string]string
	courses     map[string]*courseRecord
	enrollments map[string]*enrollmentRecord
	now         func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:       make(map[string]*userRecord),
		emails:      make(map[string]string),
		courses:     make(map[string]*courseRecord),
		enrollments: make(map[string]*enrollmentRecord),
		now:         time.Now,
	}
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser stores a new user with the given password hash.
func (s *Store) CreateUser(user domain.User, passwordHash []byte) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(user.Email)
	if _, taken := s.emails[email]; taken {
		return domain.User{}, ErrEmailTaken
	}

	now := s.now().UTC()
	user.ID = uuid.NewString()
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now

	s.users[user.ID] = &userRecord{seq: s.next(), user: user, passwordHash: passwordHash}
	s.emails[email] = user.ID
	s.recordGauges()

	return user, nil
}

// Credentials returns the user registered under email and their hash.
func (s *Store) Credentials(email string) (domain.User, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[normalizeEmail(email)]
	if !ok {
		return domain.User{}, nil, ErrUserNotFound
	}
	rec := s.users[id]
	return rec.user, rec.passwordHash, nil
}

// User returns a user by id.
func (s *Store) User(id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[id]
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return rec.user, nil
}

// UsersByRole lists users with role in creation order.
func (s *Store) UsersByRole(role domain.Role) []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*userRecord, 0)
	for _, rec := range s.users {
		if rec.user.Role == role {
			recs = append(recs, rec)
		}
	}
	slices.SortFunc(recs, func(a, b *userRecord) int { return int(a.seq - b.seq) })

	out := make([]domain.User, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.user)
	}
	return out
}

// UpdateUser applies the non-nil fields of req.
func (s *Store) UpdateUser(id string, req domain.UpdateUserRequest) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[id]
	if !ok {
		return domain.User{}, ErrUserNotFound
	}

	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if owner, taken := s.emails[email]; taken && owner != id {
			return domain.User{}, ErrEmailTaken
		}
		delete(s.emails, rec.user.Email)
		s.emails[email] = id
		rec.user.Email = email
	}
	if req.FirstName != nil {
		rec.user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		rec.user.LastName = *req.LastName
	}
	if req.AgeGroup != nil {
		rec.user.AgeGroup = *req.AgeGroup
	}
	rec.user.UpdatedAt = s.now().UTC()

	return rec.user, nil
}

// DeleteUser removes a user and their enrollments. Courses they taught
// are kept without a teacher.
func (s *Store) DeleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}

	for eid, e := range s.enrollments {
		if e.studentID == id {
			delete(s.enrollments, eid)
		}
	}
	for _, c := range s.courses {
		if c.teacherID == id {
			c.teacherID = ""
		}
	}
	delete(s.emails, rec.user.Email)
	delete(s.users, id)
	s.recordGauges()

	return nil
}

// CreateCourse stores a new course. The teacher must be an educator or
// an admin.
func (s *Store) CreateCourse(req domain.CreateCourseRequest) (domain.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	teacher, ok := s.users[req.TeacherID]
	if !ok || teacher.user.Role == domain.RoleStudent {
		return domain.Course{}, ErrTeacherNotFound
	}

	now := s.now().UTC()
	rec := &courseRecord{
		seq:       s.next(),
		teacherID: req.TeacherID,
		course: domain.Course{
			ID:          uuid.NewString(),
			Title:       req.Title,
			Description: req.Description,
			MaxStudents: req.MaxStudents,
			IsPublished: req.IsPublished,
			StartDate:   req.StartDate,
			EndDate:     req.EndDate,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	s.courses[rec.course.ID] = rec
	s.recordGauges()

	return s.courseView(rec), nil
}

// Course returns a course by id.
func (s *Store) Course(id string) (domain.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.courses[id]
	if !ok {
		return domain.Course{}, ErrCourseNotFound
	}
	return s.courseView(rec), nil
}

// TeacherOf returns the id of the course's teacher, empty if none.
func (s *Store) TeacherOf(courseID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.courses[courseID]
	if !ok {
		return "", ErrCourseNotFound
	}
	return rec.teacherID, nil
}

// Courses lists courses matching filter in creation order.
func (s *Store) Courses(filter CourseFilter) []domain.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Course, 0)
	for _, rec := range s.sortedCourses() {
		if filter.CourseID != "" && rec.course.ID != filter.CourseID {
			continue
		}
		if !s.matchesEnrollment(rec.course.ID, filter) {
			continue
		}
		view := s.courseView(rec)
		if filter.Status != "" && domain.CourseStatus(view.Status) != filter.Status {
			continue
		}
		out = append(out, view)
	}
	return out
}

// matchesEnrollment applies the student and completion filters.
func (s *Store) matchesEnrollment(courseID string, filter CourseFilter) bool {
	if filter.StudentID == "" && filter.IsCompleted == nil {
		return true
	}
	for _, e := range s.enrollments {
		if e.courseID != courseID {
			continue
		}
		if filter.StudentID != "" && e.studentID != filter.StudentID {
			continue
		}
		if filter.IsCompleted != nil && e.isCompleted != *filter.IsCompleted {
			continue
		}
		return true
	}
	return false
}

// CoursesByTeacher lists the courses a teacher teaches.
func (s *Store) CoursesByTeacher(teacherID string) []domain.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Course, 0)
	for _, rec := range s.sortedCourses() {
		if rec.teacherID == teacherID {
			out = append(out, s.courseView(rec))
		}
	}
	return out
}

// CoursesByStudent lists the courses a student is enrolled in.
func (s *Store) CoursesByStudent(studentID string) []domain.Course {
	return s.Courses(CourseFilter{StudentID: studentID})
}

// UpdateCourse applies the non-nil fields of req. Capacity cannot drop
// below the current enrollment count.
func (s *Store) UpdateCourse(id string, req domain.UpdateCourseRequest) (domain.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.courses[id]
	if !ok {
		return domain.Course{}, ErrCourseNotFound
	}

	if req.MaxStudents != nil && *req.MaxStudents < len(s.courseEnrollments(id)) {
		return domain.Course{}, ErrCapacityBelowEnrolled
	}

	c := &rec.course
	if req.Title != nil {
		c.Title = *req.Title
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.MaxStudents != nil {
		c.MaxStudents = *req.MaxStudents
	}
	if req.IsPublished != nil {
		c.IsPublished = *req.IsPublished
	}
	if req.StartDate != nil {
		c.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		c.EndDate = req.EndDate
	}
	c.UpdatedAt = s.now().UTC()

	return s.courseView(rec), nil
}

// DeleteCourse removes a course and its enrollments.
func (s *Store) DeleteCourse(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[id]; !ok {
		return ErrCourseNotFound
	}
	for eid, e := range s.enrollments {
		if e.courseID == id {
			delete(s.enrollments, eid)
		}
	}
	delete(s.courses, id)
	s.recordGauges()

	return nil
}

// Enroll adds a student to a course. The capacity and duplicate checks
// and the insert happen under one lock, so concurrent enrollments can
// never overfill a course.
func (s *Store) Enroll(courseID, studentID string) (domain.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	course, ok := s.courses[courseID]
	if !ok {
		return domain.Enrollment{}, ErrCourseNotFound
	}
	student, ok := s.users[studentID]
	if !ok {
		return domain.Enrollment{}, ErrUserNotFound
	}
	if student.user.Role != domain.RoleStudent {
		return domain.Enrollment{}, ErrNotStudent
	}
	if !course.course.IsPublished {
		return domain.Enrollment{}, ErrCourseNotPublished
	}

	current := s.courseEnrollments(courseID)
	for _, e := range current {
		if e.studentID == studentID {
			return domain.Enrollment{}, ErrAlreadyEnrolled
		}
	}
	if len(current) >= course.course.MaxStudents {
		return domain.Enrollment{}, ErrCourseFull
	}

	now := s.now().UTC()
	rec := &enrollmentRecord{
		seq:        s.next(),
		id:         uuid.NewString(),
		courseID:   courseID,
		studentID:  studentID,
		enrolledAt: now,
		updatedAt:  now,
	}
	s.enrollments[rec.id] = rec
	s.recordGauges()

	return s.enrollmentView(rec), nil
}

// Unenroll removes a student from a course.
func (s *Store) Unenroll(courseID, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[courseID]; !ok {
		return ErrCourseNotFound
	}
	for id, e := range s.enrollments {
		if e.courseID == courseID && e.studentID == studentID {
			delete(s.enrollments, id)
			s.recordGauges()
			return nil
		}
	}
	return ErrNotEnrolled
}

// Enrollments lists the enrollments of a course in enrollment order.
func (s *Store) Enrollments(courseID string) ([]domain.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.courses[courseID]; !ok {
		return nil, ErrCourseNotFound
	}

	recs := s.courseEnrollments(courseID)
	out := make([]domain.Enrollment, 0, len(recs))
	for _, rec := range recs {
		out = append(out, s.enrollmentView(rec))
	}
	return out, nil
}

// EnrollmentCourse returns the course id of an enrollment.
func (s *Store) EnrollmentCourse(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.enrollments[id]
	if !ok {
		return "", ErrEnrollmentNotFound
	}
	return rec.courseID, nil
}

// CompleteEnrollment marks an enrollment completed. Completing an already
// completed enrollment is a no-op.
func (s *Store) CompleteEnrollment(id string) (domain.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.enrollments[id]
	if !ok {
		return domain.Enrollment{}, ErrEnrollmentNotFound
	}
	if !rec.isCompleted {
		now := s.now().UTC()
		rec.isCompleted = true
		rec.completedAt = &now
		rec.updatedAt = now
	}
	return s.enrollmentView(rec), nil
}

// Counts returns the number of users, courses and enrollments.
func (s *Store) Counts() (users, courses, enrollments int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), len(s.courses), len(s.enrollments)
}

// Must hold s.mu.
func (s *Store) recordGauges() {
	metrics.SandboxRecords.WithLabelValues("users").Set(float64(len(s.users)))
	metrics.SandboxRecords.WithLabelValues("courses").Set(float64(len(s.courses)))
	metrics.SandboxRecords.WithLabelValues("enrollments").Set(float64(len(s.enrollments)))
}

func (s *Store) sortedCourses() []*courseRecord {
	recs := make([]*courseRecord, 0, len(s.courses))
	for _, rec := range s.courses {
		recs = append(recs, rec)
	}
	slices.SortFunc(recs, func(a, b *courseRecord) int { return int(a.seq - b.seq) })
	return recs
}

func (s *Store) courseEnrollments(courseID string) []*enrollmentRecord {
	recs := make([]*enrollmentRecord, 0)
	for _, e := range s.enrollments {
		if e.courseID == courseID {
			recs = append(recs, e)
		}
	}
	slices.SortFunc(recs, func(a, b *enrollmentRecord) int { return int(a.seq - b.seq) })
	return recs
}

// courseView assembles the API representation. A course whose every
// enrollment is completed is reported as completed.
func (s *Store) courseView(rec *courseRecord) domain.Course {
	c := rec.course
	if t, ok := s.users[rec.teacherID]; ok {
		teacher := t.user
		c.Teacher = &teacher
	}

	enrollments := s.courseEnrollments(c.ID)
	c.EnrolledStudents = make([]domain.User, 0, len(enrollments))
	allCompleted := len(enrollments) > 0
	for _, e := range enrollments {
		if u, ok := s.users[e.studentID]; ok {
			c.EnrolledStudents = append(c.EnrolledStudents, u.user)
		}
		allCompleted = allCompleted && e.isCompleted
	}

	if allCompleted {
		c.Status = string(domain.CourseStatusCompleted)
	} else {
		c.Status = string(domain.DeriveStatus(c))
	}
	return c
}

func (s *Store) enrollmentView(rec *enrollmentRecord) domain.Enrollment {
	e := domain.Enrollment{
		ID:          rec.id,
		Status:      domain.EnrollmentStatusActive,
		IsCompleted: rec.isCompleted,
		CompletedAt: rec.completedAt,
		EnrolledAt:  rec.enrolledAt,
		UpdatedAt:   rec.updatedAt,
	}
	if rec.isCompleted {
		e.Status = domain.EnrollmentStatusCompleted
	}
	if c, ok := s.courses[rec.courseID]; ok {
		course := s.courseView(c)
		e.Course = &course
	}
	if u, ok := s.users[rec.studentID]; ok {
		student := u.user
		e.Student = &student
	}
	return e
}
