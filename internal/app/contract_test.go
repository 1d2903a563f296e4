package app

import (
	"net/http"
	"testing"

	"github.com/bissquit/campus/internal/domain"
	"github.com/bissquit/campus/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newContractClient returns a client that checks every response against
// the OpenAPI document.
func newContractClient(t *testing.T) *testutil.Client {
	t.Helper()
	cfg := testConfig(t)
	startSandbox(t, cfg)
	return testutil.NewClientWithValidator(t, cfg.API.BaseURL, testutil.NewOpenAPIValidator(t))
}

func registerVia(t *testing.T, c *testutil.Client, email string, role domain.Role) domain.User {
	t.Helper()
	resp, err := c.POST("/auth/register", map[string]string{
		"email":     email,
		"password":  "password123",
		"firstName": "Contract",
		"lastName":  "User",
		"ageGroup":  "26-35",
		"role":      string(role),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var user domain.User
	testutil.DecodeJSON(t, resp, &user)
	return user
}

func TestContract_Auth(t *testing.T) {
	c := newContractClient(t)

	user := registerVia(t, c, "contract@example.com", domain.RoleStudent)
	assert.Equal(t, domain.RoleStudent, user.Role)

	resp, err := c.POST("/auth/register", map[string]string{"email": "contract@example.com"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = testutil.ReadBody(t, resp)

	resp, err = c.POST("/auth/login", map[string]string{"email": "contract@example.com", "password": "nope-nope"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = testutil.ReadBody(t, resp)

	logged := c.LoginAs(t, "contract@example.com", "password123")
	assert.Equal(t, user.ID, logged.ID)
}

func TestContract_Courses(t *testing.T) {
	c := newContractClient(t)

	teacher := registerVia(t, c, "t@example.com", domain.RoleEducator)
	student := registerVia(t, c, "s@example.com", domain.RoleStudent)
	c.LoginAsAdmin(t)

	resp, err := c.GET("/courses")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = testutil.ReadBody(t, resp)

	resp, err = c.POST("/courses", map[string]interface{}{
		"title":       "Contract Testing",
		"description": "Responses match the document",
		"maxStudents": 2,
		"isPublished": true,
		"startDate":   "2026-01-10T00:00:00Z",
		"endDate":     "2026-03-10T00:00:00Z",
		"teacherId":   teacher.ID,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var course domain.Course
	testutil.DecodeJSON(t, resp, &course)
	require.NotNil(t, course.Teacher)
	assert.Equal(t, teacher.ID, course.Teacher.ID)

	for _, path := range []string{
		"/courses/" + course.ID,
		"/courses/teacher/" + teacher.ID,
		"/courses/student/" + student.ID,
		"/courses?status=published",
		"/users/teachers/all",
		"/users/students/all",
	} {
		resp, err := c.GET(path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		_ = testutil.ReadBody(t, resp)
	}

	resp, err = c.PATCH("/courses/"+course.ID, map[string]interface{}{"title": "Contract Testing II"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = testutil.ReadBody(t, resp)

	resp, err = c.POST("/courses/"+course.ID+"/enroll", map[string]string{"studentId": student.ID})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var enrollment domain.Enrollment
	testutil.DecodeJSON(t, resp, &enrollment)
	assert.Equal(t, domain.EnrollmentStatusActive, enrollment.Status)

	resp, err = c.POST("/courses/"+course.ID+"/enroll", map[string]string{"studentId": student.ID})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = testutil.ReadBody(t, resp)

	resp, err = c.GET("/courses/" + course.ID + "/enrollments")
	require.NoError(t, err)
	var enrollments []domain.Enrollment
	testutil.DecodeJSON(t, resp, &enrollments)
	require.Len(t, enrollments, 1)

	resp, err = c.PATCH("/courses/enrollments/"+enrollment.ID+"/complete", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = testutil.ReadBody(t, resp)

	resp, err = c.DELETE("/courses/" + course.ID + "/students/" + student.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = testutil.ReadBody(t, resp)

	resp, err = c.DELETE("/courses/" + course.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = testutil.ReadBody(t, resp)

	resp, err = c.GET("/courses/" + course.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = testutil.ReadBody(t, resp)
}

func TestContract_Users(t *testing.T) {
	c := newContractClient(t)

	student := registerVia(t, c, "u@example.com", domain.RoleStudent)
	c.LoginAsAdmin(t)

	resp, err := c.PUT("/users/"+student.ID, map[string]string{"firstName": "Renamed"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated domain.User
	testutil.DecodeJSON(t, resp, &updated)
	assert.Equal(t, "Renamed", updated.FirstName)

	resp, err = c.DELETE("/users/" + student.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = testutil.ReadBody(t, resp)

	resp, err = c.DELETE("/users/" + student.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = testutil.ReadBody(t, resp)

	c.ClearToken()
	resp, err = c.GET("/users/students/all")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = testutil.ReadBody(t, resp)
}
