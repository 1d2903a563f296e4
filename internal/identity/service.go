// Package identity handles login, registration and logout against the
// remote API and the local session.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bissquit/campus/internal/api"
	"github.com/bissquit/campus/internal/domain"
	"github.com/bissquit/campus/internal/pkg/ctxlog"
	"github.com/bissquit/campus/internal/pkg/validate"
	"github.com/bissquit/campus/internal/session"
)

// Routes.
const (
	EntryRoute     = "/"
	DashboardRoute = "/dashboard"
)

// Messages shown when the server gives no better explanation.
const (
	LoginFailedMessage        = "Login failed. Please check your credentials."
	RegistrationFailedMessage = "Registration failed. Please try again."
)

// Identity errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = session.ErrNotAuthenticated
)

// API is the subset of the REST client the service needs.
type API interface {
	Login(ctx context.Context, email, password string) (*domain.LoginResponse, error)
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
}

// SessionStore persists the access token and user.
type SessionStore interface {
	Save(token string, user domain.User) error
	Clear() error
	User() *domain.User
	IsAuthenticated() bool
}

// CachePurger drops every cached query.
type CachePurger interface {
	Purge(ctx context.Context) error
}

// Service implements the identity operations.
type Service struct {
	api       API
	session   SessionStore
	cache     CachePurger
	validator *validate.Validator
}

// NewService creates a new identity service.
func NewService(api API, store SessionStore, cache CachePurger) *Service {
	return &Service{
		api:       api,
		session:   store,
		cache:     cache,
		validator: validate.New(),
	}
}

// LoginInput contains data for login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is the logged-in user and where to send them.
type LoginResult struct {
	User  domain.User
	Route string
}

// Login authenticates and persists the session.
func (s *Service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	input.Email = strings.TrimSpace(input.Email)
	if err := s.validator.Struct(input, nil); err != nil {
		return nil, err
	}

	resp, err := s.api.Login(ctx, input.Email, input.Password)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("login failed", "email", input.Email, "error", err)
		var reqErr *api.RequestError
		if errors.As(err, &reqErr) && reqErr.IsUnauthorized() {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if err := s.session.Save(resp.AccessToken, resp.User); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	ctxlog.FromContext(ctx).Info("logged in", "user_id", resp.User.ID, "role", resp.User.Role)
	return &LoginResult{User: resp.User, Route: DashboardPath(resp.User.Role)}, nil
}

// RegisterInput contains data for registration.
type RegisterInput struct {
	Email           string      `json:"email" validate:"required,email"`
	Password        string      `json:"password" validate:"required,min=8"`
	ConfirmPassword string      `json:"confirmPassword" validate:"eqfield=Password"`
	FirstName       string      `json:"firstName" validate:"required"`
	LastName        string      `json:"lastName" validate:"required"`
	AgeGroup        string      `json:"ageGroup" validate:"required,age_group"`
	Role            domain.Role `json:"role" validate:"required,self_role"`
}

var registerMessages = map[string]string{
	"password":        "Password must be at least 8 characters",
	"confirmPassword": "Passwords do not match",
	"ageGroup":        "Please select an age group",
	"role":            "Role must be student or educator",
}

// RegisterResult is the created user and where to send them.
type RegisterResult struct {
	User  domain.User
	Route string
}

// Register creates an account. It does not log in. An empty role means
// student.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	input.Email = strings.TrimSpace(input.Email)
	if input.Role == "" {
		input.Role = domain.RoleStudent
	}
	if err := s.validator.Struct(input, registerMessages); err != nil {
		return nil, err
	}

	user, err := s.api.Register(ctx, domain.RegisterRequest{
		Email:     input.Email,
		Password:  input.Password,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		AgeGroup:  input.AgeGroup,
		Role:      input.Role,
	})
	if err != nil {
		ctxlog.FromContext(ctx).Warn("registration failed", "email", input.Email, "error", err)
		return nil, fmt.Errorf("register: %w", err)
	}

	return &RegisterResult{User: *user, Route: DashboardPath(user.Role)}, nil
}

// Logout clears the session and every cached query, and returns the entry
// route. Both steps are attempted even if one fails.
func (s *Service) Logout(ctx context.Context) (string, error) {
	var errs []error
	if err := s.session.Clear(); err != nil {
		errs = append(errs, fmt.Errorf("clear session: %w", err))
	}
	if s.cache != nil {
		if err := s.cache.Purge(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	ctxlog.FromContext(ctx).Info("logged out")
	return EntryRoute, errors.Join(errs...)
}

// Current returns the logged-in user.
func (s *Service) Current() (*domain.User, error) {
	if !s.session.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	user := s.session.User()
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	return user, nil
}

// DashboardPath returns the dashboard route for role.
func DashboardPath(role domain.Role) string {
	if role.IsValid() {
		return DashboardRoute + "/" + string(role)
	}
	return DashboardRoute
}

// FailureMessage returns the message to show for a failed login or
// registration.
func FailureMessage(err error, fallback string) string {
	var verrs validate.Errors
	if errors.As(err, &verrs) {
		return verrs.Error()
	}
	if errors.Is(err, ErrInvalidCredentials) {
		return LoginFailedMessage
	}
	return api.MessageOr(err, fallback)
}
