package matchmaker

import "errors"

var (
	ErrInvalidPreference      = errors.New("invalid preference")
	ErrInvalidTimeout         = errors.New("match timeout must be positive")
	ErrExistingPendingRequest = errors.New("user already has a pending match request")
	ErrNoPendingRequest       = errors.New("no pending match request")
	ErrPoolUnavailable        = errors.New("match pool unavailable")
	ErrMalformedBusEvent      = errors.New("malformed bus event")
	ErrShuttingDown           = errors.New("matchmaker is shutting down")
)
