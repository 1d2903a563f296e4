package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/bissquit/campus/internal/app"
	"github.com/bissquit/campus/internal/config"
	"github.com/bissquit/campus/internal/courses"
	"github.com/bissquit/campus/internal/domain"
	"github.com/bissquit/campus/internal/identity"
	"github.com/bissquit/campus/internal/version"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errNotLoggedIn = errors.New("not logged in, run: campus login -email EMAIL")
)

const dateLayout = "2006-01-02"

type commandLine struct {
	stdout  io.Writer
	stderr  io.Writer
	stdinFd int

	config  *config.Config
	console *app.Console
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprint(cli.stderr, `Usage: campus [-config FILE] COMMAND [flags]

Commands:
  login -email EMAIL                 log in; the password is prompted
  register -email EMAIL -first NAME -last NAME -age GROUP [-role student|educator]
  logout                             forget the session and cached data
  whoami                             show the logged-in user
  dashboard                          show the dashboard for your role
  courses list [-teacher ID] [-student ID]
  courses show -id ID
  courses create -title T -description D -teacher ID [-max N] [-publish] [-start DATE] [-end DATE]
  courses publish -id ID [-draft]
  courses delete -id ID
  courses enrollments -id ID
  enroll -course ID [-student ID]    enroll a student (yourself by default)
  unenroll -course ID [-student ID]
  complete -enrollment ID            mark an enrollment as completed
  users teachers|students            list users by role
  users update -id ID [-first NAME] [-last NAME] [-email EMAIL] [-age GROUP]
  users delete -id ID
  sandbox                            serve an in-memory API sandbox
  version                            print the version
`)
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	global := cli.flagSet("campus")
	configPath := global.String("config", os.Getenv("CAMPUS_CONFIG"), "path to a YAML config file")
	global.Usage = cli.printUsage
	if err := global.Parse(args[1:]); err != nil {
		return errHelp
	}

	rest := global.Args()
	if len(rest) == 0 {
		cli.printUsage()
		return errHelp
	}
	cmd, cmdArgs := rest[0], rest[1:]

	if cmd == "version" {
		_, _ = fmt.Fprintln(cli.stdout, version.String())
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	cli.config = cfg

	if cmd == "sandbox" {
		return cli.sandbox(ctx)
	}

	console, err := app.NewConsole(ctx, cfg, app.ConsoleOptions{Out: cli.stdout, LogOut: cli.stderr})
	if err != nil {
		return err
	}
	defer func() { _ = console.Close() }()
	cli.console = console
	ctx = console.Context(ctx)

	switch cmd {
	case "login":
		return cli.login(ctx, cmdArgs)
	case "register":
		return cli.register(ctx, cmdArgs)
	case "logout":
		return cli.logout(ctx)
	}

	if !console.Session.IsAuthenticated() {
		return errNotLoggedIn
	}

	switch cmd {
	case "whoami":
		return cli.whoami()
	case "dashboard":
		return cli.dashboard(ctx)
	case "courses":
		return cli.courses(ctx, cmdArgs)
	case "enroll":
		return cli.enroll(ctx, cmdArgs, true)
	case "unenroll":
		return cli.enroll(ctx, cmdArgs, false)
	case "complete":
		return cli.complete(ctx, cmdArgs)
	case "users":
		return cli.users(ctx, cmdArgs)
	}

	cli.printUsage()
	return errHelp
}

func (cli *commandLine) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.stderr)
	return fs
}

// parse parses args into fs and checks that every named flag is set.
func (cli *commandLine) parse(fs *flag.FlagSet, args []string, required ...string) error {
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	for _, name := range required {
		if fs.Lookup(name).Value.String() == "" {
			_, _ = fmt.Fprintf(cli.stderr, "flag -%s is required\n", name)
			fs.Usage()
			return errHelp
		}
	}
	return nil
}

func (cli *commandLine) readPassword(prompt string) (string, error) {
	_, _ = fmt.Fprint(cli.stderr, prompt)
	pwd, err := readPasswordFunc(cli.stdinFd)
	_, _ = fmt.Fprintln(cli.stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pwd), nil
}

func (cli *commandLine) login(ctx context.Context, args []string) error {
	fs := cli.flagSet("login")
	email := fs.String("email", "", "account email")
	if err := cli.parse(fs, args, "email"); err != nil {
		return err
	}

	password, err := cli.readPassword("Password: ")
	if err != nil {
		return err
	}

	res, err := cli.console.Identity.Login(ctx, identity.LoginInput{Email: *email, Password: password})
	if err != nil {
		return errors.New(identity.FailureMessage(err, identity.LoginFailedMessage))
	}

	_, _ = fmt.Fprintf(cli.stdout, "Logged in as %s (%s)\n", res.User.FullName(), res.User.Role)
	return nil
}

func (cli *commandLine) register(ctx context.Context, args []string) error {
	fs := cli.flagSet("register")
	email := fs.String("email", "", "account email")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	age := fs.String("age", "", "age group: "+strings.Join(domain.AgeGroups, ", "))
	role := fs.String("role", string(domain.RoleStudent), "student or educator")
	if err := cli.parse(fs, args, "email", "first", "last", "age"); err != nil {
		return err
	}

	password, err := cli.readPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := cli.readPassword("Confirm password: ")
	if err != nil {
		return err
	}

	res, err := cli.console.Identity.Register(ctx, identity.RegisterInput{
		Email:           *email,
		Password:        password,
		ConfirmPassword: confirm,
		FirstName:       *first,
		LastName:        *last,
		AgeGroup:        *age,
		Role:            domain.Role(*role),
	})
	if err != nil {
		return errors.New(identity.FailureMessage(err, identity.RegistrationFailedMessage))
	}

	_, _ = fmt.Fprintf(cli.stdout, "Registered %s as %s. Log in to continue.\n", res.User.Email, res.User.Role)
	return nil
}

func (cli *commandLine) logout(ctx context.Context) error {
	if _, err := cli.console.Identity.Logout(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cli.stdout, "Logged out")
	return nil
}

func (cli *commandLine) whoami() error {
	user, err := cli.console.Identity.Current()
	if err != nil {
		return errNotLoggedIn
	}
	printUser(cli.stdout, user)
	return nil
}

func (cli *commandLine) dashboard(ctx context.Context) error {
	variant, summary, err := cli.console.Dashboard(ctx)
	if err != nil {
		return err
	}
	printDashboard(cli.stdout, variant, summary)
	return nil
}

func (cli *commandLine) courses(ctx context.Context, args []string) error {
	if len(args) == 0 {
		cli.printUsage()
		return errHelp
	}
	svc := cli.console.Courses
	sub, args := args[0], args[1:]

	switch sub {
	case "list":
		fs := cli.flagSet("courses list")
		teacher := fs.String("teacher", "", "only courses taught by this teacher")
		student := fs.String("student", "", "only courses this student is enrolled in")
		if err := cli.parse(fs, args); err != nil {
			return err
		}

		var list []domain.Course
		var err error
		switch {
		case *teacher != "":
			list, err = svc.ForTeacher(ctx, *teacher)
		case *student != "":
			list, err = svc.ForStudent(ctx, *student)
		default:
			list, err = svc.List(ctx)
		}
		if err != nil {
			return err
		}
		printCourses(cli.stdout, list)
		return nil

	case "show":
		fs := cli.flagSet("courses show")
		id := fs.String("id", "", "course id")
		if err := cli.parse(fs, args, "id"); err != nil {
			return err
		}
		course, err := svc.Get(ctx, *id)
		if err != nil {
			return err
		}
		printCourse(cli.stdout, course)
		return nil

	case "create":
		fs := cli.flagSet("courses create")
		title := fs.String("title", "", "course title")
		description := fs.String("description", "", "course description")
		teacher := fs.String("teacher", "", "teacher id")
		maxStudents := fs.Int("max", domain.DefaultMaxStudents, "maximum number of students")
		publish := fs.Bool("publish", false, "publish immediately")
		start := fs.String("start", "", "start date, YYYY-MM-DD")
		end := fs.String("end", "", "end date, YYYY-MM-DD")
		if err := cli.parse(fs, args); err != nil {
			return err
		}

		startDate, err := parseDate(*start)
		if err != nil {
			return fmt.Errorf("invalid -start: %w", err)
		}
		endDate, err := parseDate(*end)
		if err != nil {
			return fmt.Errorf("invalid -end: %w", err)
		}

		course, err := svc.Create(ctx, courses.CreateInput{
			Title:       *title,
			Description: *description,
			MaxStudents: *maxStudents,
			IsPublished: *publish,
			StartDate:   startDate,
			EndDate:     endDate,
			TeacherID:   *teacher,
		})
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cli.stdout, "Created course %s\n", course.ID)
		return nil

	case "publish":
		fs := cli.flagSet("courses publish")
		id := fs.String("id", "", "course id")
		draft := fs.Bool("draft", false, "unpublish instead")
		if err := cli.parse(fs, args, "id"); err != nil {
			return err
		}
		_, err := svc.Publish(ctx, *id, !*draft)
		return err

	case "delete":
		fs := cli.flagSet("courses delete")
		id := fs.String("id", "", "course id")
		if err := cli.parse(fs, args, "id"); err != nil {
			return err
		}
		return svc.Delete(ctx, *id)

	case "enrollments":
		fs := cli.flagSet("courses enrollments")
		id := fs.String("id", "", "course id")
		if err := cli.parse(fs, args, "id"); err != nil {
			return err
		}
		enrollments, err := svc.Enrollments(ctx, *id)
		if err != nil {
			return err
		}
		printEnrollments(cli.stdout, enrollments)
		return nil
	}

	cli.printUsage()
	return errHelp
}

func (cli *commandLine) enroll(ctx context.Context, args []string, enroll bool) error {
	name := "unenroll"
	if enroll {
		name = "enroll"
	}
	fs := cli.flagSet(name)
	courseID := fs.String("course", "", "course id")
	studentID := fs.String("student", "", "student id; defaults to the logged-in student")
	if err := cli.parse(fs, args, "course"); err != nil {
		return err
	}

	if *studentID == "" {
		if user := cli.console.Session.User(); user != nil && user.Role == domain.RoleStudent {
			*studentID = user.ID
		}
	}

	course, err := cli.console.Courses.Get(ctx, *courseID)
	if err != nil {
		return err
	}

	if enroll {
		_, err = cli.console.Enrollment.AttemptEnroll(ctx, course, *studentID)
	} else {
		err = cli.console.Enrollment.AttemptUnenroll(ctx, course, *studentID)
	}
	return err
}

func (cli *commandLine) complete(ctx context.Context, args []string) error {
	fs := cli.flagSet("complete")
	id := fs.String("enrollment", "", "enrollment id")
	if err := cli.parse(fs, args, "enrollment"); err != nil {
		return err
	}
	_, err := cli.console.Enrollment.MarkCompleted(ctx, *id)
	return err
}

func (cli *commandLine) users(ctx context.Context, args []string) error {
	if len(args) == 0 {
		cli.printUsage()
		return errHelp
	}
	svc := cli.console.Courses
	sub, args := args[0], args[1:]

	switch sub {
	case "teachers", "students":
		fetch := svc.Teachers
		if sub == "students" {
			fetch = svc.Students
		}
		list, err := fetch(ctx)
		if err != nil {
			return err
		}
		printUsers(cli.stdout, list)
		return nil

	case "update":
		fs := cli.flagSet("users update")
		id := fs.String("id", "", "user id")
		first := fs.String("first", "", "new first name")
		last := fs.String("last", "", "new last name")
		email := fs.String("email", "", "new email")
		age := fs.String("age", "", "new age group")
		if err := cli.parse(fs, args, "id"); err != nil {
			return err
		}

		user, err := svc.UpdateUser(ctx, *id, domain.UpdateUserRequest{
			FirstName: optional(*first),
			LastName:  optional(*last),
			Email:     optional(*email),
			AgeGroup:  optional(*age),
		})
		if err != nil {
			return err
		}
		printUser(cli.stdout, user)
		return nil

	case "delete":
		fs := cli.flagSet("users delete")
		id := fs.String("id", "", "user id")
		if err := cli.parse(fs, args, "id"); err != nil {
			return err
		}
		return svc.DeleteUser(ctx, *id)
	}

	cli.printUsage()
	return errHelp
}

// sandbox serves the API until ctx is cancelled.
func (cli *commandLine) sandbox(ctx context.Context) error {
	server, err := app.NewServer(ctx, cli.config, cli.stderr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
