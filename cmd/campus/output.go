package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/bissquit/campus/internal/dashboard"
	"github.com/bissquit/campus/internal/domain"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func teacherName(c domain.Course) string {
	if c.Teacher == nil {
		return "-"
	}
	return c.Teacher.FullName()
}

func printCourses(w io.Writer, list []domain.Course) {
	if len(list) == 0 {
		_, _ = fmt.Fprintln(w, "No courses")
		return
	}
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tSEATS\tTEACHER")
	for _, c := range list {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\n",
			c.ID, c.Title, domain.DeriveStatus(c), c.EnrolledCount(), c.MaxStudents, teacherName(c))
	}
	_ = tw.Flush()
}

func printCourse(w io.Writer, c *domain.Course) {
	tw := newTable(w)
	_, _ = fmt.Fprintf(tw, "ID:\t%s\n", c.ID)
	_, _ = fmt.Fprintf(tw, "Title:\t%s\n", c.Title)
	_, _ = fmt.Fprintf(tw, "Description:\t%s\n", c.Description)
	_, _ = fmt.Fprintf(tw, "Status:\t%s\n", domain.DeriveStatus(*c))
	_, _ = fmt.Fprintf(tw, "Teacher:\t%s\n", teacherName(*c))
	_, _ = fmt.Fprintf(tw, "Seats:\t%d/%d\n", c.EnrolledCount(), c.MaxStudents)
	if c.StartDate != nil {
		_, _ = fmt.Fprintf(tw, "Starts:\t%s\n", c.StartDate.Format(dateLayout))
	}
	if c.EndDate != nil {
		_, _ = fmt.Fprintf(tw, "Ends:\t%s\n", c.EndDate.Format(dateLayout))
	}
	_ = tw.Flush()

	if len(c.EnrolledStudents) > 0 {
		_, _ = fmt.Fprintln(w, "\nEnrolled students:")
		printUsers(w, c.EnrolledStudents)
	}
}

func printUsers(w io.Writer, list []domain.User) {
	if len(list) == 0 {
		_, _ = fmt.Fprintln(w, "No users")
		return
	}
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tAGE GROUP")
	for _, u := range list {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.FullName(), u.Email, u.AgeGroup)
	}
	_ = tw.Flush()
}

func printUser(w io.Writer, u *domain.User) {
	tw := newTable(w)
	_, _ = fmt.Fprintf(tw, "ID:\t%s\n", u.ID)
	_, _ = fmt.Fprintf(tw, "Name:\t%s\n", u.FullName())
	_, _ = fmt.Fprintf(tw, "Email:\t%s\n", u.Email)
	_, _ = fmt.Fprintf(tw, "Role:\t%s\n", u.Role)
	_, _ = fmt.Fprintf(tw, "Age group:\t%s\n", u.AgeGroup)
	_ = tw.Flush()
}

func printEnrollments(w io.Writer, list []domain.Enrollment) {
	if len(list) == 0 {
		_, _ = fmt.Fprintln(w, "No enrollments")
		return
	}
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "ID\tSTUDENT\tSTATUS\tENROLLED")
	for _, e := range list {
		student := "-"
		if e.Student != nil {
			student = e.Student.FullName()
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, student, e.Status, e.EnrolledAt.Format(dateLayout))
	}
	_ = tw.Flush()
}

func printDashboard(w io.Writer, v dashboard.Variant, s *dashboard.Summary) {
	_, _ = fmt.Fprintf(w, "%s\n\n", v.Title())

	for _, item := range v.Navigation() {
		_, _ = fmt.Fprintf(w, "  %s (%s)\n", item.Label, item.Route)
	}
	_, _ = fmt.Fprintln(w)

	tw := newTable(w)
	for _, stat := range s.Stats {
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", stat.Label, stat.Value)
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintln(w)

	printCourses(w, s.Courses)
}
