// Package api implements the HTTP request pipeline: request
// construction, bearer-token attachment with proactive refresh, the
// single 401 refresh-and-retry protocol, error classification into the
// failure taxonomy, and TLS public-key pinning.
package api
