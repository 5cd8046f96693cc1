package gatekeeper

import "errors"

// Registration and recovery errors. All are synchronous and recoverable
// by retrying; none of them mutate durable state.
var (
	// ErrConfirmationMismatch means the confirmation capture did not
	// reproduce the first capture closely enough to be trusted.
	ErrConfirmationMismatch = errors.New("gatekeeper: confirmation does not match pattern")

	// ErrAlreadyRegistered means a real identity already exists; it must
	// be wiped or recovered before registering again.
	ErrAlreadyRegistered = errors.New("gatekeeper: identity already registered")

	// ErrNoIdentity means the operation needs a registered identity.
	ErrNoIdentity = errors.New("gatekeeper: no registered identity")
)
