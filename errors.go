package pairdesk

import (
	"errors"
	"fmt"
	"time"

	"github.com/pairdesk/client-go/internal/api"
	"github.com/pairdesk/client-go/internal/auth"
)

// Sentinel errors for errors.Is() checks.
var (
	// ErrClientClosed is returned when operations are attempted on a closed client.
	ErrClientClosed = errors.New("client has been closed")

	// ErrNotSignedIn is returned by operations that need a session when none is held.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrUnauthorized is returned when credentials are invalid and refresh is exhausted.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited is returned when the API rate limit is exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrTimeout is returned when a request exceeds its deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrNoConnection is returned when the transport reports no connectivity.
	ErrNoConnection = errors.New("no internet connection")
)

// ErrorKind classifies a failed exchange. The set is closed; unknown
// HTTP statuses map to KindBadStatus with the raw code attached.
type ErrorKind string

const (
	// KindBadURL: the request could not be constructed.
	KindBadURL ErrorKind = "bad_url"
	// KindDecoding: the response body did not match the expected shape.
	KindDecoding ErrorKind = "decoding"
	// KindUnauthorized: 401, or refresh exhausted.
	KindUnauthorized ErrorKind = "unauthorized"
	// KindValidation: 422 with field-level errors.
	KindValidation ErrorKind = "validation"
	// KindBadStatus: any other non-success status.
	KindBadStatus ErrorKind = "bad_status"
	// KindServerError: 5xx.
	KindServerError ErrorKind = "server_error"
	// KindRateLimited: 429, carries the server's Retry-After.
	KindRateLimited ErrorKind = "rate_limited"
	// KindTimeout: the request exceeded its deadline.
	KindTimeout ErrorKind = "timeout"
	// KindNoConnection: the transport reported no connectivity.
	KindNoConnection ErrorKind = "no_internet_connection"
	// KindNetwork: any other transport-level failure.
	KindNetwork ErrorKind = "network_error"
)

// PairdeskError is implemented by all SDK errors.
type PairdeskError interface {
	error
	PairdeskError() // marker method
}

// APIError is a classified request failure.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	// RetryAfter is the server-requested delay. Set for KindRateLimited.
	RetryAfter time.Duration
	// Fields holds field-level validation messages. Set for KindValidation.
	Fields map[string][]string

	err error
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Message != "":
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s (%d)", e.Kind, e.StatusCode)
	case e.err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	default:
		return string(e.Kind)
	}
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.err
}

// Retryable reports whether the failure kind is eligible for retry.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case KindServerError, KindRateLimited, KindTimeout, KindNetwork:
		return true
	default:
		return false
	}
}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	switch e.Kind {
	case KindUnauthorized:
		return target == ErrUnauthorized
	case KindRateLimited:
		return target == ErrRateLimited
	case KindTimeout:
		return target == ErrTimeout
	case KindNoConnection:
		return target == ErrNoConnection
	}
	return false
}

// PairdeskError implements the PairdeskError interface.
func (e *APIError) PairdeskError() {}

// wrapError converts internal classified errors to public errors at the
// package boundary, so errors.Is() checks work with public sentinels.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return &APIError{
			Kind:       ErrorKind(apiErr.Kind),
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			RetryAfter: apiErr.RetryAfter,
			Fields:     apiErr.Fields,
			err:        apiErr.Err,
		}
	}

	if errors.Is(err, auth.ErrNoRefreshToken) {
		return &APIError{Kind: KindUnauthorized, Message: "no refresh token", err: err}
	}

	return err
}
