package api

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Auth endpoints are public: a 401 from them is surfaced directly and
// never recurses into the refresh protocol.

// SignIn exchanges credentials for a token pair.
func (c *Client) SignIn(ctx context.Context, req SignInRequest) (*AuthResponse, error) {
	var result AuthResponse
	if err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/auth/sign_in",
		Body:   req,
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SignUp registers a new account and signs it in.
func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (*AuthResponse, error) {
	var result AuthResponse
	if err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/auth/sign_up",
		Body:   req,
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RefreshToken exchanges a refresh token for a new access token. Any
// non-success response is a refresh failure.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	var result AuthResponse
	if err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
		Body:   RefreshRequest{RefreshToken: refreshToken},
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SignOut revokes the session server-side.
func (c *Client) SignOut(ctx context.Context) error {
	return c.Do(ctx, &Request{
		Method:       http.MethodPost,
		Path:         "/auth/sign_out",
		RequiresAuth: true,
	}, nil)
}

// GetProfile fetches the signed-in account.
func (c *Client) GetProfile(ctx context.Context) (*UserPayload, error) {
	var result UserPayload
	if err := c.Do(ctx, &Request{
		Method:       http.MethodGet,
		Path:         "/profile",
		RequiresAuth: true,
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateProfile applies a partial profile update.
func (c *Client) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*UserPayload, error) {
	var result UserPayload
	if err := c.Do(ctx, &Request{
		Method:       http.MethodPatch,
		Path:         "/profile",
		Body:         req,
		RequiresAuth: true,
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListSessions returns sessions overlapping the [from, to) window.
func (c *Client) ListSessions(ctx context.Context, from, to time.Time) ([]SessionPayload, error) {
	query := url.Values{}
	if !from.IsZero() {
		query.Set("from", from.Format(time.RFC3339))
	}
	if !to.IsZero() {
		query.Set("to", to.Format(time.RFC3339))
	}
	var result []SessionPayload
	if err := c.Do(ctx, &Request{
		Method:       http.MethodGet,
		Path:         "/sessions",
		Query:        query,
		RequiresAuth: true,
	}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateSession books a focus session. The idempotency key lets the
// server recognize duplicate retries of the same booking.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest, idempotencyKey string) (*SessionPayload, error) {
	var result SessionPayload
	if err := c.Do(ctx, &Request{
		Method:         http.MethodPost,
		Path:           "/sessions",
		Body:           req,
		RequiresAuth:   true,
		IdempotencyKey: idempotencyKey,
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteSession cancels a booked session.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.Do(ctx, &Request{
		Method:       http.MethodDelete,
		Path:         joinPath("sessions", sessionID),
		RequiresAuth: true,
	}, nil)
}
