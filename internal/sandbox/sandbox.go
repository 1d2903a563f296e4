package sandbox

import (
	"context"
	"fmt"

	"github.com/bissquit/campus/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// Config configures a sandbox.
type Config struct {
	Auth          AuthConfig
	AdminEmail    string
	AdminPassword string
}

// Sandbox bundles the store, the authenticator and the HTTP handler.
type Sandbox struct {
	Store   *Store
	Auth    *Authenticator
	handler *Handler
}

// New creates a sandbox and seeds the admin account.
func New(ctx context.Context, cfg Config) (*Sandbox, error) {
	store := NewStore()
	auth := NewAuthenticator(cfg.Auth, store)

	if err := auth.SeedAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}

	return &Sandbox{
		Store:   store,
		Auth:    auth,
		handler: NewHandler(store, auth),
	}, nil
}

// Mount registers the API routes on r. Everything except /auth requires a
// bearer token.
func (s *Sandbox) Mount(r chi.Router) {
	s.handler.RegisterPublicRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(httputil.AuthMiddleware(s.Auth))
		s.handler.RegisterRoutes(r)
	})
}
