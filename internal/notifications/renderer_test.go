package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenderer(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	require.NotNil(t, r)

	assert.Len(t, r.templates, 2)
}

func TestRenderer_Render(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	tests := []struct {
		name string
		n    Notification
		want string
	}{
		{
			name: "success with description",
			n:    Success("Student Enrolled", "Student enrolled in Algebra course"),
			want: "✔ Student Enrolled\n  Student enrolled in Algebra course",
		},
		{
			name: "success without description",
			n:    Success("Course Created", ""),
			want: "✔ Course Created",
		},
		{
			name: "error",
			n:    Failure("Enrollment Error", "This course is already at maximum capacity"),
			want: "✖ [ERROR] Enrollment Error\n  This course is already at maximum capacity",
		},
		{
			name: "title is title-cased",
			n:    Failure("validation error", "Please select a student to enroll"),
			want: "✖ [ERROR] Validation Error\n  Please select a student to enroll",
		},
		{
			name: "unknown level uses error template",
			n:    Notification{Level: "warning", Title: "Heads Up"},
			want: "• [WARNING] Heads Up",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Render(tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
