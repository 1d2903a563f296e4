package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bissquit/campus/internal/domain"
	"github.com/bissquit/campus/internal/pkg/httputil"
	"github.com/bissquit/campus/internal/pkg/validate"
	"github.com/go-chi/chi/v5"
)

var errForbidden = errors.New("forbidden")

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "Invalid credentials"},
	{Error: errForbidden, Status: http.StatusForbidden, Message: "Forbidden resource"},
	{Error: ErrUserNotFound, Status: http.StatusNotFound, Message: "User not found"},
	{Error: ErrCourseNotFound, Status: http.StatusNotFound, Message: "Course not found"},
	{Error: ErrEnrollmentNotFound, Status: http.StatusNotFound, Message: "Enrollment not found"},
	{Error: ErrNotEnrolled, Status: http.StatusNotFound, Message: "Student is not enrolled in this course"},
	{Error: ErrEmailTaken, Status: http.StatusConflict, Message: "Email already exists"},
	{Error: ErrCourseFull, Status: http.StatusConflict, Message: "Course is full"},
	{Error: ErrAlreadyEnrolled, Status: http.StatusConflict, Message: "Student is already enrolled in this course"},
	{Error: ErrTeacherNotFound, Status: http.StatusBadRequest, Message: "Teacher not found"},
	{Error: ErrNotStudent, Status: http.StatusBadRequest, Message: "Only students can be enrolled"},
	{Error: ErrCourseNotPublished, Status: http.StatusBadRequest, Message: "Course is not published"},
	{Error: ErrCapacityBelowEnrolled, Status: http.StatusBadRequest, Message: "Max students cannot be less than the number of enrolled students"},
}

// Handler serves the REST API from a Store.
type Handler struct {
	store     *Store
	auth      *Authenticator
	validator *validate.Validator
}

// NewHandler creates a new sandbox handler.
func NewHandler(store *Store, auth *Authenticator) *Handler {
	return &Handler{
		store:     store,
		auth:      auth,
		validator: validate.New(),
	}
}

// RegisterPublicRoutes registers the unauthenticated routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
}

// RegisterRoutes registers the routes that need a bearer token. The
// caller installs httputil.AuthMiddleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	staff := httputil.RequireRole(domain.RoleAdmin, domain.RoleEducator)
	admin := httputil.RequireRole(domain.RoleAdmin)

	r.Route("/users", func(r chi.Router) {
		r.With(staff).Get("/teachers/all", h.ListTeachers)
		r.With(staff).Get("/students/all", h.ListStudents)
		r.With(admin).Put("/{id}", h.UpdateUser)
		r.With(admin).Delete("/{id}", h.DeleteUser)
	})

	r.Route("/courses", func(r chi.Router) {
		r.Get("/", h.ListCourses)
		r.With(staff).Post("/", h.CreateCourse)
		r.Get("/teacher/{id}", h.CoursesByTeacher)
		r.Get("/student/{id}", h.CoursesByStudent)
		r.With(staff).Patch("/enrollments/{id}/complete", h.CompleteEnrollment)
		r.Get("/{id}", h.GetCourse)
		r.With(staff).Patch("/{id}", h.UpdateCourse)
		r.With(staff).Delete("/{id}", h.DeleteCourse)
		r.Post("/{id}/enroll", h.Enroll)
		r.Delete("/{id}/students/{studentId}", h.Unenroll)
		r.With(staff).Get("/{id}/enrollments", h.Enrollments)
	})
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Email     string      `json:"email" validate:"required,email"`
	Password  string      `json:"password" validate:"required,min=8"`
	FirstName string      `json:"firstName" validate:"required"`
	LastName  string      `json:"lastName" validate:"required"`
	AgeGroup  string      `json:"ageGroup" validate:"required,age_group"`
	Role      domain.Role `json:"role" validate:"omitempty,self_role"`
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// CreateCourseRequest represents the request body for creating a course.
type CreateCourseRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description" validate:"required"`
	MaxStudents int        `json:"maxStudents" validate:"min=1"`
	IsPublished bool       `json:"isPublished"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	TeacherID   string     `json:"teacherId" validate:"required"`
}

// UpdateCourseRequest represents the request body for patching a course.
type UpdateCourseRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1"`
	Description *string    `json:"description" validate:"omitempty,min=1"`
	MaxStudents *int       `json:"maxStudents" validate:"omitempty,min=1"`
	IsPublished *bool      `json:"isPublished"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

// EnrollRequest represents the request body for enrolling a student.
type EnrollRequest struct {
	StudentID string `json:"studentId" validate:"required"`
}

// UpdateUserRequest represents the request body for updating a user.
type UpdateUserRequest struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"firstName" validate:"omitempty,min=1"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1"`
	AgeGroup  *string `json:"ageGroup" validate:"omitempty,age_group"`
}

var errDateOrder = validate.Errors{
	{Field: "endDate", Rule: "gtefield", Message: "End date cannot be before start date"},
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = domain.RoleStudent
	}

	user, err := h.auth.Register(r.Context(), domain.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		AgeGroup:  req.AgeGroup,
		Role:      req.Role,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, user)
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// ListTeachers handles GET /users/teachers/all.
func (h *Handler) ListTeachers(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, h.store.UsersByRole(domain.RoleEducator))
}

// ListStudents handles GET /users/students/all.
func (h *Handler) ListStudents(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, h.store.UsersByRole(domain.RoleStudent))
}

// UpdateUser handles PUT /users/{id}.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.store.UpdateUser(chi.URLParam(r, "id"), domain.UpdateUserRequest{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		AgeGroup:  req.AgeGroup,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /users/{id}.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteUser(chi.URLParam(r, "id")); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCourses handles GET /courses.
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	filter, err := parseCourseFilter(r)
	if err != nil {
		httputil.ValidationError(w, err)
		return
	}

	courses := h.store.Courses(filter)
	httputil.JSON(w, http.StatusOK, domain.CourseList{Data: courses, Total: len(courses)})
}

func parseCourseFilter(r *http.Request) (CourseFilter, error) {
	q := r.URL.Query()
	filter := CourseFilter{
		StudentID: q.Get("studentId"),
		CourseID:  q.Get("courseId"),
		Status:    domain.CourseStatus(q.Get("status")),
	}

	if filter.Status != "" && !filter.Status.IsValid() {
		return filter, errors.New("status must be one of draft, published, in-progress, completed")
	}

	if raw := q.Get("isCompleted"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, errors.New("isCompleted must be a boolean value")
		}
		filter.IsCompleted = &v
	}

	return filter, nil
}

// GetCourse handles GET /courses/{id}.
func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := h.store.Course(chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, course)
}

// CreateCourse handles POST /courses. Educators may only create courses
// they teach.
func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req CreateCourseRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		httputil.ValidationError(w, errDateOrder)
		return
	}

	if httputil.GetRole(r.Context()) == domain.RoleEducator && req.TeacherID != httputil.GetUserID(r.Context()) {
		h.handleError(w, r, errForbidden)
		return
	}

	course, err := h.store.CreateCourse(domain.CreateCourseRequest{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		MaxStudents: req.MaxStudents,
		IsPublished: req.IsPublished,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		TeacherID:   req.TeacherID,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, course)
}

// UpdateCourse handles PATCH /courses/{id}.
func (h *Handler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.authorizeCourse(r.Context(), id); err != nil {
		h.handleError(w, r, err)
		return
	}

	var req UpdateCourseRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		httputil.ValidationError(w, errDateOrder)
		return
	}

	course, err := h.store.UpdateCourse(id, domain.UpdateCourseRequest{
		Title:       req.Title,
		Description: req.Description,
		MaxStudents: req.MaxStudents,
		IsPublished: req.IsPublished,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, course)
}

// DeleteCourse handles DELETE /courses/{id}.
func (h *Handler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.authorizeCourse(r.Context(), id); err != nil {
		h.handleError(w, r, err)
		return
	}

	if err := h.store.DeleteCourse(id); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CoursesByTeacher handles GET /courses/teacher/{id}.
func (h *Handler) CoursesByTeacher(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, h.store.CoursesByTeacher(chi.URLParam(r, "id")))
}

// CoursesByStudent handles GET /courses/student/{id}. Students may only
// list their own courses.
func (h *Handler) CoursesByStudent(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")
	if httputil.GetRole(r.Context()) == domain.RoleStudent && httputil.GetUserID(r.Context()) != studentID {
		h.handleError(w, r, errForbidden)
		return
	}
	httputil.JSON(w, http.StatusOK, h.store.CoursesByStudent(studentID))
}

// Enroll handles POST /courses/{id}/enroll.
func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "id")

	var req EnrollRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.authorizeEnrollment(r.Context(), courseID, req.StudentID); err != nil {
		h.handleError(w, r, err)
		return
	}

	enrollment, err := h.store.Enroll(courseID, req.StudentID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, enrollment)
}

// Unenroll handles DELETE /courses/{id}/students/{studentId}.
func (h *Handler) Unenroll(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "id")
	studentID := chi.URLParam(r, "studentId")

	if err := h.authorizeEnrollment(r.Context(), courseID, studentID); err != nil {
		h.handleError(w, r, err)
		return
	}

	if err := h.store.Unenroll(courseID, studentID); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Enrollments handles GET /courses/{id}/enrollments.
func (h *Handler) Enrollments(w http.ResponseWriter, r *http.Request) {
	enrollments, err := h.store.Enrollments(chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, enrollments)
}

// CompleteEnrollment handles PATCH /courses/enrollments/{id}/complete.
func (h *Handler) CompleteEnrollment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	courseID, err := h.store.EnrollmentCourse(id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if err := h.authorizeCourse(r.Context(), courseID); err != nil {
		h.handleError(w, r, err)
		return
	}

	enrollment, err := h.store.CompleteEnrollment(id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, enrollment)
}

// authorizeCourse lets admins through and educators only for courses
// they teach.
func (h *Handler) authorizeCourse(ctx context.Context, courseID string) error {
	switch httputil.GetRole(ctx) {
	case domain.RoleAdmin:
		return nil
	case domain.RoleEducator:
		teacherID, err := h.store.TeacherOf(courseID)
		if err != nil {
			return err
		}
		if teacherID != httputil.GetUserID(ctx) {
			return errForbidden
		}
		return nil
	}
	return errForbidden
}

// authorizeEnrollment lets admins, the course's educator and the student
// themself change a student's membership.
func (h *Handler) authorizeEnrollment(ctx context.Context, courseID, studentID string) error {
	if httputil.GetRole(ctx) == domain.RoleStudent {
		if httputil.GetUserID(ctx) != studentID {
			return errForbidden
		}
		return nil
	}
	return h.authorizeCourse(ctx, courseID)
}

// decode reads and validates a JSON body. It writes the error response
// and returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httputil.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	if err := h.validator.Struct(v, nil); err != nil {
		httputil.ValidationError(w, err)
		return false
	}
	return true
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, errorMappings)
}
