package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/campus/internal/domain"
	"github.com/bissquit/campus/internal/pkg/ctxlog"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// AuthConfig configures token issuing.
type AuthConfig struct {
	Secret        string
	TokenDuration time.Duration
	BcryptCost    int // 0 uses bcrypt.DefaultCost
}

// Claims are the access token claims. The subject is the user id.
type Claims struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator registers users, checks passwords and issues HS256 access
// tokens.
type Authenticator struct {
	secret   []byte
	duration time.Duration
	cost     int
	store    *Store
	now      func() time.Time
}

// NewAuthenticator creates a new authenticator.
func NewAuthenticator(cfg AuthConfig, store *Store) *Authenticator {
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Authenticator{
		secret:   []byte(cfg.Secret),
		duration: cfg.TokenDuration,
		cost:     cfg.BcryptCost,
		store:    store,
		now:      time.Now,
	}
}

// Register creates a user with a hashed password.
func (a *Authenticator) Register(ctx context.Context, req domain.RegisterRequest) (domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.cost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := a.store.CreateUser(domain.User{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		AgeGroup:  req.AgeGroup,
		Role:      req.Role,
	}, hash)
	if err != nil {
		return domain.User{}, err
	}

	ctxlog.FromContext(ctx).Info("user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Login checks the password and issues an access token.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*domain.LoginResponse, error) {
	user, hash, err := a.store.Credentials(email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		ctxlog.FromContext(ctx).Debug("password mismatch", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	token, err := a.issue(user)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResponse{AccessToken: token, User: user}, nil
}

// ValidateToken implements httputil.TokenValidator. The role is read from
// the store, so tokens of deleted users stop working.
func (a *Authenticator) ValidateToken(_ context.Context, token string) (string, domain.Role, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return "", "", ErrInvalidToken
	}

	user, err := a.store.User(claims.Subject)
	if err != nil {
		return "", "", ErrInvalidToken
	}
	return user.ID, user.Role, nil
}

// SeedAdmin creates the admin account unless the email is already taken.
func (a *Authenticator) SeedAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := a.Register(ctx, domain.RegisterRequest{
		Email:     email,
		Password:  password,
		FirstName: "Admin",
		LastName:  "User",
		AgeGroup:  "36+",
		Role:      domain.RoleAdmin,
	})
	if errors.Is(err, ErrEmailTaken) {
		return nil
	}
	return err
}

func (a *Authenticator) issue(user domain.User) (string, error) {
	now := a.now()
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.duration)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
