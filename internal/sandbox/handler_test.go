package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bissquit/campus/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret    = "sandbox-test-secret-0123456789"
	adminEmail    = "admin@example.com"
	adminPassword = "admin123"
)

type testEnv struct {
	t       *testing.T
	sandbox *Sandbox
	router  chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	sb, err := New(context.Background(), Config{
		Auth:          AuthConfig{Secret: testSecret, TokenDuration: time.Hour, BcryptCost: bcrypt.MinCost},
		AdminEmail:    adminEmail,
		AdminPassword: adminPassword,
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	sb.Mount(r)
	return &testEnv{t: t, sandbox: sb, router: r}
}

func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(email string, role domain.Role) domain.User {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email":     email,
		"password":  "password1",
		"firstName": "Test",
		"lastName":  "User",
		"ageGroup":  "19-25",
		"role":      string(role),
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	var u domain.User
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &u))
	return u
}

func (e *testEnv) login(email, password string) string {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp domain.LoginResponse
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.AccessToken
}

func (e *testEnv) createCourse(token, teacherID string, max int) domain.Course {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/courses", token, map[string]interface{}{
		"title":       "Algebra",
		"description": "Numbers and letters",
		"maxStudents": max,
		"isPublished": true,
		"teacherId":   teacherID,
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	var c domain.Course
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &c))
	return c
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	u := env.register("ana@example.com", domain.RoleStudent)
	assert.Equal(t, domain.RoleStudent, u.Role)

	token := env.login("ana@example.com", "password1")
	id, role, err := env.sandbox.Auth.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
	assert.Equal(t, domain.RoleStudent, role)

	claims := &Claims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestAuth_LoginFailures(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/auth/login", "", map[string]string{"email": adminEmail, "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", errorBody(t, rec)["message"])

	rec = env.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_RegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "bad", "password": "short", "ageGroup": "19-25", "firstName": "A", "lastName": "B",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := errorBody(t, rec)
	assert.Equal(t, "Bad Request", body["error"])
	assert.Len(t, body["message"], 2)

	rec = env.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "x@example.com", "password": "password1", "ageGroup": "19-25",
		"firstName": "A", "lastName": "B", "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "admin cannot self-register")

	env.register("dup@example.com", domain.RoleStudent)
	rec = env.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "dup@example.com", "password": "password1", "ageGroup": "19-25", "firstName": "A", "lastName": "B",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Email already exists", errorBody(t, rec)["message"])

	rec = env.do(http.MethodPost, "/auth/register", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuth_ValidateToken_Rejects(t *testing.T) {
	env := newTestEnv(t)
	auth := env.sandbox.Auth
	u := env.register("ana@example.com", domain.RoleStudent)
	token := env.login("ana@example.com", "password1")

	t.Run("other secret", func(t *testing.T) {
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: u.ID},
		}).SignedString([]byte("another-secret-entirely"))
		require.NoError(t, err)
		_, _, err = auth.ValidateToken(context.Background(), forged)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: u.ID},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, _, err = auth.ValidateToken(context.Background(), unsigned)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { auth.now = time.Now }()
		_, _, err := auth.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("deleted user", func(t *testing.T) {
		require.NoError(t, env.sandbox.Store.DeleteUser(u.ID))
		_, _, err := auth.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestSeedAdmin_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.sandbox.Auth.SeedAdmin(context.Background(), adminEmail, "another"))
	require.NoError(t, env.sandbox.Auth.SeedAdmin(context.Background(), "", ""))

	assert.Len(t, env.sandbox.Store.UsersByRole(domain.RoleAdmin), 1)
	env.login(adminEmail, adminPassword)
}

func TestRoutes_RequireToken(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/courses", "/users/students/all", "/courses/teacher/x"} {
		rec := env.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestRoutes_RoleChecks(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(adminEmail, adminPassword)
	teacher := env.register("t@example.com", domain.RoleEducator)
	other := env.register("o@example.com", domain.RoleEducator)
	student := env.register("s@example.com", domain.RoleStudent)
	teacherToken := env.login("t@example.com", "password1")
	otherToken := env.login("o@example.com", "password1")
	studentToken := env.login("s@example.com", "password1")

	course := env.createCourse(admin, teacher.ID, 5)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		status int
	}{
		{"student cannot list students", http.MethodGet, "/users/students/all", studentToken, nil, http.StatusForbidden},
		{"educator lists students", http.MethodGet, "/users/students/all", teacherToken, nil, http.StatusOK},
		{"student cannot create course", http.MethodPost, "/courses", studentToken, map[string]interface{}{"title": "x", "description": "y", "maxStudents": 1, "teacherId": teacher.ID}, http.StatusForbidden},
		{"educator cannot create for another", http.MethodPost, "/courses", teacherToken, map[string]interface{}{"title": "x", "description": "y", "maxStudents": 1, "teacherId": other.ID}, http.StatusForbidden},
		{"other educator cannot update", http.MethodPatch, "/courses/" + course.ID, otherToken, map[string]interface{}{"title": "Hacked"}, http.StatusForbidden},
		{"own educator updates", http.MethodPatch, "/courses/" + course.ID, teacherToken, map[string]interface{}{"title": "Algebra II"}, http.StatusOK},
		{"educator cannot delete users", http.MethodDelete, "/users/" + student.ID, teacherToken, nil, http.StatusForbidden},
		{"student cannot enroll another", http.MethodPost, "/courses/" + course.ID + "/enroll", studentToken, map[string]string{"studentId": "someone-else"}, http.StatusForbidden},
		{"student cannot read others' courses", http.MethodGet, "/courses/student/" + "someone-else", studentToken, nil, http.StatusForbidden},
		{"student reads own courses", http.MethodGet, "/courses/student/" + student.ID, studentToken, nil, http.StatusOK},
		{"student cannot see enrollments", http.MethodGet, "/courses/" + course.ID + "/enrollments", studentToken, nil, http.StatusForbidden},
		{"any user reads a course", http.MethodGet, "/courses/" + course.ID, studentToken, nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestCourses_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(adminEmail, adminPassword)
	teacher := env.register("t@example.com", domain.RoleEducator)

	rec := env.do(http.MethodPost, "/courses", admin, map[string]interface{}{"maxStudents": 0, "teacherId": teacher.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, errorBody(t, rec)["message"], 3)

	rec = env.do(http.MethodPost, "/courses", admin, map[string]interface{}{
		"title": "x", "description": "y", "maxStudents": 1, "teacherId": teacher.ID,
		"startDate": "2026-09-10T00:00:00Z", "endDate": "2026-09-01T00:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []interface{}{"End date cannot be before start date"}, errorBody(t, rec)["message"])

	rec = env.do(http.MethodPost, "/courses", admin, map[string]interface{}{
		"title": "x", "description": "y", "maxStudents": 1, "teacherId": "missing",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Teacher not found", errorBody(t, rec)["message"])
}

func TestCourses_EnrollFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(adminEmail, adminPassword)
	teacher := env.register("t@example.com", domain.RoleEducator)
	s1 := env.register("s1@example.com", domain.RoleStudent)
	s2 := env.register("s2@example.com", domain.RoleStudent)
	s1Token := env.login("s1@example.com", "password1")
	course := env.createCourse(admin, teacher.ID, 1)

	rec := env.do(http.MethodPost, "/courses/"+course.ID+"/enroll", s1Token, map[string]string{"studentId": s1.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var enrollment domain.Enrollment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &enrollment))

	rec = env.do(http.MethodPost, "/courses/"+course.ID+"/enroll", s1Token, map[string]string{"studentId": s1.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Student is already enrolled in this course", errorBody(t, rec)["message"])

	rec = env.do(http.MethodPost, "/courses/"+course.ID+"/enroll", admin, map[string]string{"studentId": s2.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := errorBody(t, rec)
	assert.Equal(t, float64(409), body["statusCode"])
	assert.Equal(t, "Course is full", body["message"])
	assert.Equal(t, "Conflict", body["error"])

	rec = env.do(http.MethodGet, "/courses?studentId="+s1.ID, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list domain.CourseList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)

	rec = env.do(http.MethodGet, "/courses/"+course.ID+"/enrollments", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var enrollments []domain.Enrollment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &enrollments))
	require.Len(t, enrollments, 1)
	assert.Equal(t, s1.ID, enrollments[0].Student.ID)

	rec = env.do(http.MethodPatch, "/courses/enrollments/"+enrollment.ID+"/complete", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/courses/"+course.ID, s1Token, nil)
	var got domain.Course
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "completed", got.Status)

	rec = env.do(http.MethodDelete, "/courses/"+course.ID+"/students/"+s1.ID, s1Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodDelete, "/courses/"+course.ID+"/students/"+s1.ID, s1Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCourses_ListFilterValidation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(adminEmail, adminPassword)

	rec := env.do(http.MethodGet, "/courses?status=archived", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/courses?isCompleted=maybe", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/courses?isCompleted=true", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[],"total":0}`, rec.Body.String())
}

func TestUsers_UpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(adminEmail, adminPassword)
	student := env.register("s@example.com", domain.RoleStudent)

	rec := env.do(http.MethodPut, "/users/"+student.ID, admin, map[string]string{"firstName": "Ana", "ageGroup": "26-35"})
	require.Equal(t, http.StatusOK, rec.Code)
	var u domain.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, "Ana", u.FirstName)
	assert.Equal(t, "26-35", u.AgeGroup)

	rec = env.do(http.MethodPut, "/users/"+student.ID, admin, map[string]string{"ageGroup": "ancient"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodDelete, "/users/"+student.ID, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodDelete, "/users/"+student.ID, admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", errorBody(t, rec)["message"])
}
