package api

import (
	"context"

	"github.com/bissquit/campus/internal/domain"
)

// Teachers lists all educators.
func (c *Client) Teachers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := c.get(ctx, "/users/teachers/all", "/users/teachers/all", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Students lists all students.
func (c *Client) Students(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := c.get(ctx, "/users/students/all", "/users/students/all", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser updates profile fields of a user.
func (c *Client) UpdateUser(ctx context.Context, id string, req domain.UpdateUserRequest) (*domain.User, error) {
	var user domain.User
	if err := c.put(ctx, "/users/{id}", "/users/"+segment(id), req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.delete(ctx, "/users/{id}", "/users/"+segment(id), nil)
}
