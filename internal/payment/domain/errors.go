package domain

import "errors"

var (
	// ErrGatewayUnavailable covers transport and protocol failures talking to
	// the card gateway. Callers retry with a fresh attempt, never by
	// replaying a request the gateway may have partially processed.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrBINNotRecognized is distinct from unavailability: the gateway
	// answered, it just does not know the prefix.
	ErrBINNotRecognized = errors.New("bin not recognized by gateway")

	ErrInvalidBIN    = errors.New("bin must be exactly six digits")
	ErrInvalidAmount = errors.New("amount must be positive with at most two fraction digits")

	ErrAttemptNotFound = errors.New("payment attempt not found")

	// ErrAttemptExpired rejects late finalization of a swept attempt.
	ErrAttemptExpired = errors.New("payment attempt expired")
)
