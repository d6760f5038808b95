package domain

import "errors"

var (
	ErrInvalidPolicy = errors.New("invalid policy")
	// ErrKeyUnavailable is returned when a counter key cannot be derived
	// from the request.
	ErrKeyUnavailable = errors.New("rate-limit key unavailable")
	ErrNotBlocked     = errors.New("ip is not blocked")
	// ErrServerBusy means no concurrency slot freed up in time.
	ErrServerBusy = errors.New("no free request slot")
)
