package domain

import (
	"fmt"
	"time"
)

// Key identifies a counter, e.g. "auth|1.2.3.4|a@b.com".
type Key string

// Scope names a rate-limit profile.
type Scope string

const (
	ScopeAuth      Scope = "auth"
	ScopeAPI       Scope = "api"
	ScopeSensitive Scope = "sensitive"
	ScopePublic    Scope = "public"
)

// Code is the machine-readable reason sent to clients on rejection.
type Code string

const (
	CodeRateLimitExceeded   Code = "RATE_LIMIT_EXCEEDED"
	CodeIPBlocked           Code = "IP_BLOCKED"
	CodeRequestTooLarge     Code = "REQUEST_TOO_LARGE"
	CodeDDoSProtection      Code = "DDOS_PROTECTION"
	CodeOriginNotAllowed    Code = "ORIGIN_NOT_ALLOWED"
	CodeServerBusy          Code = "SERVER_BUSY"
	CodeSecurityUnavailable Code = "SECURITY_UNAVAILABLE"
)

// Identity sentinels used when the request carries no identity. They pool
// every anonymous caller of an IP into a single bucket per profile.
const (
	AnonymousIdentity = "anonymous"
	UnknownIdentity   = "unknown"
)

// Valid reports whether s is a non-empty run of letters, digits, '-' and
// '_'. Counter keys rely on a scope never containing '|' or ':'.
func (s Scope) Valid() bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// Policy is a fixed-window rate-limit profile.
type Policy struct {
	Scope   Scope
	Window  time.Duration
	Max     int
	Message string
}

func (p Policy) Validate() error {
	if !p.Scope.Valid() {
		return fmt.Errorf("%w: scope %q must be letters, digits, '-' or '_'", ErrInvalidPolicy, p.Scope)
	}
	if p.Window <= 0 {
		return fmt.Errorf("%w: %s window must be > 0", ErrInvalidPolicy, p.Scope)
	}
	if p.Max <= 0 {
		return fmt.Errorf("%w: %s max must be > 0", ErrInvalidPolicy, p.Scope)
	}
	return nil
}

// SlowDownPolicy adds Delay per request above DelayAfter within Window,
// never more than MaxDelay.
type SlowDownPolicy struct {
	Scope      Scope
	Window     time.Duration
	DelayAfter int
	Delay      time.Duration
	MaxDelay   time.Duration
}

func (p SlowDownPolicy) Validate() error {
	if !p.Scope.Valid() {
		return fmt.Errorf("%w: slow-down scope %q must be letters, digits, '-' or '_'", ErrInvalidPolicy, p.Scope)
	}
	if p.Window <= 0 {
		return fmt.Errorf("%w: %s slow-down window must be > 0", ErrInvalidPolicy, p.Scope)
	}
	if p.DelayAfter < 0 || p.Delay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("%w: %s slow-down values must be >= 0", ErrInvalidPolicy, p.Scope)
	}
	return nil
}

// WindowCounter is the state of one fixed window.
type WindowCounter struct {
	Count       int
	WindowStart time.Time
}

// Expired reports whether a hit at now starts a new window.
func (c WindowCounter) Expired(window time.Duration, now time.Time) bool {
	return now.Sub(c.WindowStart) > window
}

// BurstCounter counts requests of one IP over the short burst window.
type BurstCounter struct {
	Count       int
	WindowStart time.Time
}

// SuspicionRecord accumulates penalties for one IP.
type SuspicionRecord struct {
	Count    int
	LastSeen time.Time
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is only set when the request is rejected.
	RetryAfter time.Duration
}
