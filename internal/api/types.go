package api

import "time"

// UserPayload is the wire representation of an account.
type UserPayload struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	TimeZone    string    `json:"time_zone"`
	CreatedAt   time.Time `json:"created_at"`
}

// SignInRequest is the body of POST /auth/sign_in.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpRequest is the body of POST /auth/sign_up.
type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	TimeZone    string `json:"time_zone,omitempty"`
}

// AuthResponse is returned by sign-in, sign-up and refresh. The refresh
// endpoint may omit the rotated refresh token and the profile payload.
type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	User         *UserPayload `json:"user,omitempty"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UpdateProfileRequest is the body of PATCH /profile. Pointer fields
// distinguish "leave unchanged" from "set to empty".
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	TimeZone    *string `json:"time_zone,omitempty"`
}

// SessionPayload is the wire representation of a booked focus session.
type SessionPayload struct {
	ID              string    `json:"id"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	SessionType     string    `json:"session_type"`
	Status          string    `json:"status"`
	PartnerName     string    `json:"partner_name,omitempty"`
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	SessionType     string    `json:"session_type,omitempty"`
}
