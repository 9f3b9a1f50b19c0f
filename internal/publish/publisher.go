// Package publish declares the cross-platform publisher contract: validate
// credentials, send a new message, edit an existing one, and close.
// Platform-specific implementations live in its subpackages.
package publish

import "context"

// NotFoundError marks an Edit failure where the target message no longer
// exists on the platform — treated by callers as a silent skip, not a
// retry-worthy error.
type NotFoundError struct {
	Platform string
	ID       string
}

func (e NotFoundError) Error() string {
	return e.Platform + ": message " + e.ID + " not found"
}

// AuthError marks a Validate failure due to bad or revoked credentials.
type AuthError struct {
	Platform string
	Cause    error
}

func (e AuthError) Error() string {
	return e.Platform + ": credential validation failed: " + e.Cause.Error()
}

func (e AuthError) Unwrap() error { return e.Cause }

// Publisher is the semantic contract every destination's concrete adapter
// implements.
type Publisher interface {
	// Validate calls the platform's identity check (e.g. getMe/auth.test).
	Validate(ctx context.Context) error

	// Send posts content to identifier and returns the platform message id.
	Send(ctx context.Context, identifier string, content any) (platformID string, err error)

	// Edit updates platformID's content on identifier. A platform "not
	// modified" response is treated as success; "not found" returns
	// NotFoundError, which callers treat as a silent skip.
	Edit(ctx context.Context, identifier, platformID string, content any) error

	// Close releases any held connections (bot sessions, HTTP clients).
	Close() error
}

// maxRetries is the publisher-wide retry budget: one retry on failure,
// then log and skip — never block the event pipeline.
const maxRetries = 2

// WithRetry runs op, retrying once on failure before giving up. A
// NotFoundError is never retried — it is not a transient failure.
func WithRetry(op func() error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		var nf NotFoundError
		if asNotFound(err, &nf) {
			return err
		}
	}
	return err
}

func asNotFound(err error, target *NotFoundError) bool {
	nf, ok := err.(NotFoundError)
	if ok {
		*target = nf
	}
	return ok
}
