// Package pairdesk provides a Go client SDK for the PairDesk focus
// session API.
//
// The client maintains a short-lived access token and a longer-lived
// refresh token, transparently recovering from expired-credential
// failures: concurrent requests that hit a 401 share a single refresh
// call and each retries exactly once with the new token. Failures are
// classified into a stable taxonomy, and transient kinds can be retried
// with the bounded backoff policy.
//
// Basic usage:
//
//	client, err := pairdesk.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	user, err := client.SignIn(ctx, "you@example.com", "password")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sessions, err := client.ListSessions(ctx, pairdesk.ListSessionsParams{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Hello", user.DisplayName, "- upcoming:", len(sessions))
package pairdesk
