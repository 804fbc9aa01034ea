package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Kind is the closed set of failure classifications. Every failed
// exchange produces exactly one Kind; callers branch on it rather than
// on raw status codes.
type Kind string

const (
	// KindBadURL means the request could not be constructed.
	KindBadURL Kind = "bad_url"
	// KindDecoding means the response body did not match the expected shape.
	KindDecoding Kind = "decoding"
	// KindUnauthorized means a 401, or refresh exhausted.
	KindUnauthorized Kind = "unauthorized"
	// KindValidation means a 422 with field-level errors.
	KindValidation Kind = "validation"
	// KindBadStatus means any other non-success status.
	KindBadStatus Kind = "bad_status"
	// KindServerError means a 5xx.
	KindServerError Kind = "server_error"
	// KindRateLimited means a 429, carrying the server's Retry-After.
	KindRateLimited Kind = "rate_limited"
	// KindTimeout means the request exceeded its deadline.
	KindTimeout Kind = "timeout"
	// KindNoConnection means the transport reported no connectivity.
	KindNoConnection Kind = "no_internet_connection"
	// KindNetwork means any other transport-level failure.
	KindNetwork Kind = "network_error"
)

// defaultRetryAfter applies when a 429 carries no Retry-After header.
const defaultRetryAfter = 60 * time.Second

// Error is a classified request failure.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	// RetryAfter is the server-requested delay. Set for KindRateLimited.
	RetryAfter time.Duration
	// Fields holds field-level validation messages. Set for KindValidation.
	Fields map[string][]string
	// Err is the underlying transport or decode error, if any.
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode > 0 && e.Message != "":
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s (%d)", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	default:
		return string(e.Kind)
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure kind is eligible for retry.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindServerError, KindRateLimited, KindTimeout, KindNetwork:
		return true
	default:
		return false
	}
}

// errorBody is the wire shape of an error response.
type errorBody struct {
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func (b *errorBody) message() string {
	if b.Error != "" {
		return b.Error
	}
	return b.Message
}

// Classify maps a non-success HTTP response into a classified error.
// Pure: the same status, headers and body always yield an equal Error.
// Total over status codes 1-599; unknown codes fall back to
// KindBadStatus carrying the raw code.
func Classify(statusCode int, header http.Header, body []byte) *Error {
	var parsed errorBody
	_ = json.Unmarshal(body, &parsed)
	msg := parsed.message()

	switch {
	case statusCode == http.StatusUnauthorized:
		return &Error{Kind: KindUnauthorized, StatusCode: statusCode, Message: msg}
	case statusCode == http.StatusUnprocessableEntity:
		return &Error{Kind: KindValidation, StatusCode: statusCode, Message: msg, Fields: parsed.Errors}
	case statusCode == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, StatusCode: statusCode, Message: msg, RetryAfter: retryAfter(header)}
	case statusCode >= 500 && statusCode <= 599:
		return &Error{Kind: KindServerError, StatusCode: statusCode, Message: msg}
	default:
		return &Error{Kind: KindBadStatus, StatusCode: statusCode, Message: msg}
	}
}

// ClassifyTransport maps a transport-level failure into a classified
// error. The original error stays reachable through Unwrap, so callers
// can still match context.Canceled and friends with errors.Is.
func ClassifyTransport(err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Err: err}
	case isNoConnection(err):
		return &Error{Kind: KindNoConnection, Err: err}
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return &Error{Kind: KindTimeout, Err: err}
		}
		return &Error{Kind: KindNetwork, Err: err}
	}
}

// isNoConnection reports whether the failure indicates missing
// connectivity rather than a transient network hiccup.
func isNoConnection(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return false
}

// retryAfter parses the Retry-After header in seconds. Absence or an
// unparseable value defaults to 60s.
func retryAfter(header http.Header) time.Duration {
	raw := header.Get("Retry-After")
	if raw == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}
