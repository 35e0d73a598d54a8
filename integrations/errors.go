package integrations

import "errors"

// Sentinel errors the HTTP layer maps to status codes. Messages are stable;
// callers match with errors.Is.
var (
	// ErrUnauthenticated is returned when no authenticated user is attached to
	// the request, or a webhook delivery fails signature verification.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrValidation is returned for malformed or incomplete input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a workspace or repository the caller named
	// does not exist or is not visible to them.
	ErrNotFound = errors.New("not found")

	// ErrEnsureWebhook is the single opaque error returned when webhook
	// reconciliation fails against GitHub or during persistence. Details stay
	// in the logs.
	ErrEnsureWebhook = errors.New("failed to ensure webhook")
)
