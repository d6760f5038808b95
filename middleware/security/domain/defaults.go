package domain

import "time"

const (
	DefaultSuspicionThreshold = 50
	DefaultPenalty            = 1
	DefaultBurstPenalty       = 10
	DefaultBurstWindow        = 10 * time.Second
	DefaultBurstMax           = 200
	DefaultSweepMaxAge        = time.Hour
	DefaultMaxBodyBytes       = 10 << 20
)

func AuthPolicy() Policy {
	return Policy{
		Scope:   ScopeAuth,
		Window:  15 * time.Minute,
		Max:     5,
		Message: "Too many authentication attempts, please try again later.",
	}
}

func APIPolicy() Policy {
	return Policy{
		Scope:   ScopeAPI,
		Window:  15 * time.Minute,
		Max:     100,
		Message: "Too many requests, please try again later.",
	}
}

func SensitivePolicy() Policy {
	return Policy{
		Scope:   ScopeSensitive,
		Window:  time.Hour,
		Max:     10,
		Message: "Too many sensitive operations, please try again later.",
	}
}

func PublicPolicy() Policy {
	return Policy{
		Scope:   ScopePublic,
		Window:  15 * time.Minute,
		Max:     500,
		Message: "Too many requests from this IP, please try again later.",
	}
}

func APISlowDown() SlowDownPolicy {
	return SlowDownPolicy{
		Scope:      ScopeAPI,
		Window:     15 * time.Minute,
		DelayAfter: 50,
		Delay:      500 * time.Millisecond,
		MaxDelay:   20 * time.Second,
	}
}

func PublicSlowDown() SlowDownPolicy {
	return SlowDownPolicy{
		Scope:      ScopePublic,
		Window:     15 * time.Minute,
		DelayAfter: 100,
		Delay:      250 * time.Millisecond,
		MaxDelay:   10 * time.Second,
	}
}

// DefaultPolicies returns the four rate-limit profiles keyed by scope.
func DefaultPolicies() map[Scope]Policy {
	return map[Scope]Policy{
		ScopeAuth:      AuthPolicy(),
		ScopeAPI:       APIPolicy(),
		ScopeSensitive: SensitivePolicy(),
		ScopePublic:    PublicPolicy(),
	}
}

// DefaultSlowDowns returns the slow-down profiles keyed by scope.
func DefaultSlowDowns() map[Scope]SlowDownPolicy {
	return map[Scope]SlowDownPolicy{
		ScopeAPI:    APISlowDown(),
		ScopePublic: PublicSlowDown(),
	}
}
