package testutil

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/bissquit/campus/api/openapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOpenAPIValidator(t *testing.T) {
	v, err := LoadOpenAPIValidator(openapi.Spec)
	require.NoError(t, err)
	assert.NotNil(t, v.doc.Paths.Find("/courses/{id}/enroll"))

	_, err = LoadOpenAPIValidator([]byte("not: [valid"))
	assert.Error(t, err)
}

func TestValidateResponse_ConflictBody(t *testing.T) {
	v := NewOpenAPIValidator(t)

	req, err := http.NewRequest(http.MethodPost, "http://sandbox/courses/c1/enroll", nil)
	require.NoError(t, err)
	resp := &http.Response{
		StatusCode: http.StatusConflict,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`{"statusCode":409,"message":"Course is full","error":"Conflict"}`)),
	}

	v.ValidateResponse(t, req, resp)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Course is full", "body is restored")
}
