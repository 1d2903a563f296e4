// Package dashboard builds the role-specific dashboard: navigation, theme
// and summary statistics.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/bissquit/campus/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrUnknownRole is returned by Resolve for a role without a dashboard.
// Callers are expected to log the user out.
var ErrUnknownRole = errors.New("no dashboard for role")

// Source provides the data dashboards summarize.
type Source interface {
	List(ctx context.Context) ([]domain.Course, error)
	Teachers(ctx context.Context) ([]domain.User, error)
	Students(ctx context.Context) ([]domain.User, error)
	ForTeacher(ctx context.Context, teacherID string) ([]domain.Course, error)
	ForStudent(ctx context.Context, studentID string) ([]domain.Course, error)
}

// NavItem is one navigation entry.
type NavItem struct {
	Label string
	Route string
}

// Theme is the accent a dashboard is drawn with.
type Theme struct {
	Accent string
}

// Stat is one summary figure.
type Stat struct {
	Label string
	Value string
}

// Summary is what a dashboard shows.
type Summary struct {
	Stats   []Stat
	Courses []domain.Course
}

// Variant is a role-specific dashboard. The set of variants is closed.
type Variant interface {
	Role() domain.Role
	Title() string
	Navigation() []NavItem
	Theme() Theme
	Summary(ctx context.Context, src Source) (*Summary, error)

	variant()
}

// Resolve picks the dashboard for user's role.
func Resolve(user *domain.User) (Variant, error) {
	if user == nil {
		return nil, fmt.Errorf("%w: no user", ErrUnknownRole)
	}
	switch user.Role {
	case domain.RoleAdmin:
		return adminDashboard{user: *user}, nil
	case domain.RoleEducator:
		return educatorDashboard{user: *user}, nil
	case domain.RoleStudent:
		return studentDashboard{user: *user}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRole, user.Role)
}

var titleCaser = cases.Title(language.English)

func title(role domain.Role) string {
	return titleCaser.String(string(role)) + " Dashboard"
}

func home(role domain.Role) NavItem {
	return NavItem{Label: "Dashboard", Route: "/dashboard/" + string(role)}
}

var profile = NavItem{Label: "Profile", Route: "/profile"}

type adminDashboard struct{ user domain.User }

func (adminDashboard) variant() {}
func (adminDashboard) Role() domain.Role { return domain.RoleAdmin }
func (adminDashboard) Title() string { return title(domain.RoleAdmin) }
func (adminDashboard) Theme() Theme { return Theme{Accent: "gray"} }

func (adminDashboard) Navigation() []NavItem {
	return []NavItem{
		home(domain.RoleAdmin),
		{Label: "Users", Route: "/users"},
		{Label: "Courses", Route: "/courses"},
		profile,
	}
}

func (adminDashboard) Summary(ctx context.Context, src Source) (*Summary, error) {
	courses, err := src.List(ctx)
	if err != nil {
		return nil, err
	}
	teachers, err := src.Teachers(ctx)
	if err != nil {
		return nil, err
	}
	students, err := src.Students(ctx)
	if err != nil {
		return nil, err
	}

	active := 0
	for _, c := range courses {
		if domain.DeriveStatus(c) == domain.CourseStatusInProgress {
			active++
		}
	}

	return &Summary{
		Stats: []Stat{
			{Label: "Total Courses", Value: strconv.Itoa(len(courses))},
			{Label: "Total Students", Value: strconv.Itoa(len(students))},
			{Label: "Total Teachers", Value: strconv.Itoa(len(teachers))},
			{Label: "Active Courses", Value: strconv.Itoa(active)},
		},
		Courses: courses,
	}, nil
}

type educatorDashboard struct{ user domain.User }

func (educatorDashboard) variant() {}
func (educatorDashboard) Role() domain.Role { return domain.RoleEducator }
func (educatorDashboard) Title() string { return title(domain.RoleEducator) }
func (educatorDashboard) Theme() Theme { return Theme{Accent: "green"} }

func (educatorDashboard) Navigation() []NavItem {
	return []NavItem{home(domain.RoleEducator), profile}
}

func (d educatorDashboard) Summary(ctx context.Context, src Source) (*Summary, error) {
	courses, err := src.ForTeacher(ctx, d.user.ID)
	if err != nil {
		return nil, err
	}

	published, enrolled := 0, 0
	for _, c := range courses {
		if c.IsPublished {
			published++
		}
		enrolled += c.EnrolledCount()
	}

	average := 0.0
	if len(courses) > 0 {
		average = float64(enrolled) / float64(len(courses))
	}

	return &Summary{
		Stats: []Stat{
			{Label: "Total Courses", Value: strconv.Itoa(len(courses))},
			{Label: "Published Courses", Value: strconv.Itoa(published)},
			{Label: "Total Students", Value: strconv.Itoa(enrolled)},
			{Label: "Average Enrollment", Value: fmt.Sprintf("%.1f", average)},
		},
		Courses: courses,
	}, nil
}

type studentDashboard struct{ user domain.User }

func (studentDashboard) variant() {}
func (studentDashboard) Role() domain.Role { return domain.RoleStudent }
func (studentDashboard) Title() string { return title(domain.RoleStudent) }
func (studentDashboard) Theme() Theme { return Theme{Accent: "blue"} }

func (studentDashboard) Navigation() []NavItem {
	return []NavItem{home(domain.RoleStudent), profile}
}

func (d studentDashboard) Summary(ctx context.Context, src Source) (*Summary, error) {
	courses, err := src.ForStudent(ctx, d.user.ID)
	if err != nil {
		return nil, err
	}

	capacity, completed := 0, 0
	for _, c := range courses {
		capacity += c.MaxStudents
		if domain.DeriveStatus(c) == domain.CourseStatusCompleted {
			completed++
		}
	}

	return &Summary{
		Stats: []Stat{
			{Label: "Enrolled Courses", Value: strconv.Itoa(len(courses))},
			{Label: "Total Capacity", Value: strconv.Itoa(capacity)},
			{Label: "Completion Rate", Value: fmt.Sprintf("%d%%", CompletionRate(completed, len(courses)))},
		},
		Courses: courses,
	}, nil
}

// CompletionRate returns completed/total as a rounded percentage, 0 when
// total is 0.
func CompletionRate(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

