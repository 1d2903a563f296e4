package api

import (
	"context"

	"github.com/bissquit/campus/internal/domain"
)

// Register creates an account. It does not sign in.
func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	var user domain.User
	if err := c.post(ctx, "/auth/register", "/auth/register", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges credentials for an access token and the user record.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.LoginResponse, error) {
	var resp domain.LoginResponse
	err := c.post(ctx, "/auth/login", "/auth/login", domain.LoginRequest{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
