package api

import (
	"net/url"
	"strings"
)

// Request describes one HTTP exchange. Immutable once built; a new
// descriptor is constructed per call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is serialized to JSON when non-nil.
	Body any
	// RequiresAuth attaches the bearer token and enables the
	// refresh-and-retry protocol. Public endpoints (sign-in, sign-up,
	// refresh itself) leave this false so a 401 can never recurse into
	// another refresh.
	RequiresAuth bool
	// IdempotencyKey, when set, is sent as the Idempotency-Key header.
	// Callers supply it on non-idempotent mutations only.
	IdempotencyKey string
}

// resolve joins the base URL, path and query string.
func (r *Request) resolve(baseURL string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(r.Path)
	if err != nil {
		return "", err
	}
	u := base.ResolveReference(ref)
	if u.Scheme == "" || u.Host == "" {
		return "", &url.Error{Op: "parse", URL: baseURL + r.Path, Err: errMissingHost}
	}
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}
	return u.String(), nil
}

var errMissingHost = &missingHostError{}

type missingHostError struct{}

func (*missingHostError) Error() string { return "missing scheme or host" }

// joinPath escapes a single path segment into a route template. Used by
// endpoint methods that interpolate resource IDs.
func joinPath(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return "/" + strings.Join(escaped, "/")
}
