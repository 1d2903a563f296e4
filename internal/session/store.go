// Package session persists the signed-in user between invocations.
//
// A Store is opened once at startup and cleared on logout. It holds the
// access token and a cached copy of the user record returned at login.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bissquit/campus/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// ErrNotAuthenticated is returned when an operation needs a session.
var ErrNotAuthenticated = errors.New("not logged in")

type fileData struct {
	AccessToken string          `json:"accessToken,omitempty"`
	User        json.RawMessage `json:"user,omitempty"`
}

// Store is a file-backed session.
type Store struct {
	path string
	now  func() time.Time

	mu    sync.RWMutex
	token string
	user  *domain.User
}

// Open reads the session file at path. A missing file yields an empty
// session. A user record that cannot be parsed is dropped and logged.
func Open(path string) (*Store, error) {
	s := &Store{path: path, now: time.Now}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var data fileData
	if err := json.Unmarshal(raw, &data); err != nil {
		slog.Warn("discarding unreadable session file", "path", path, "error", err)
		return s, nil
	}

	s.token = data.AccessToken
	if len(data.User) > 0 {
		var user domain.User
		if err := json.Unmarshal(data.User, &user); err != nil {
			slog.Warn("error parsing stored user", "path", path, "error", err)
		} else {
			s.user = &user
		}
	}

	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Token returns the access token, or "" when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the cached user, or nil.
func (s *Store) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Role returns the cached user's role, or "" when unknown.
func (s *Store) Role() domain.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.Role
}

// IsAuthenticated reports whether a usable token is stored.
// JWTs with an exp claim in the past do not count.
func (s *Store) IsAuthenticated() bool {
	token := s.Token()
	if token == "" {
		return false
	}
	exp, ok := tokenExpiry(token)
	if !ok {
		return true
	}
	return s.now().Before(exp)
}

// Save replaces the session with token and user and writes it to disk.
func (s *Store) Save(token string, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	if err := s.write(fileData{AccessToken: token, User: userJSON}); err != nil {
		return err
	}

	s.token = token
	s.user = &user
	return nil
}

// Clear removes both the token and the user record.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.user = nil

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

func (s *Store) write(data fileData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	return nil
}

// tokenExpiry reads the exp claim without verifying the signature;
// the server stays the authority on token validity.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
