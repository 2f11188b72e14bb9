package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Login exchanges credentials for a bearer token and the user record.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	var out LoginResponse
	if strings.TrimSpace(username) == "" || password == "" {
		return out, fmt.Errorf("login: username and password are required: %w", ErrValidation)
	}
	err := c.do(ctx, "login", http.MethodPost, "/api/auth/login",
		LoginRequest{Username: username, Password: password}, &out)
	return out, err
}

// Register creates a student account and logs it in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (LoginResponse, error) {
	var out LoginResponse
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return out, fmt.Errorf("register: username and password are required: %w", ErrValidation)
	}
	if !strings.Contains(req.Email, "@") {
		return out, fmt.Errorf("register: invalid email %q: %w", req.Email, ErrValidation)
	}
	err := c.do(ctx, "register", http.MethodPost, "/api/auth/register", req, &out)
	return out, err
}

// Me returns the account behind the current token. Session restore calls
// this to validate a credential loaded from disk.
func (c *Client) Me(ctx context.Context) (User, error) {
	var out User
	err := c.do(ctx, "me", http.MethodGet, "/api/auth/me", nil, &out)
	return out, err
}

// Logout tells the backend to drop the token. Best effort: the local
// credential is cleared whether or not this succeeds.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, "logout", http.MethodPost, "/api/auth/logout", nil, nil)
}
