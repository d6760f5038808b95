package domain

import (
	"context"
	"time"
)

// StatsEvent records one decision taken by the middleware.
//
// Code is empty for allowed requests. Route is the matched router pattern,
// not the raw path, and Method is one of the standard methods or OTHER, so
// both stay bounded. Tracking Key or IP per event in a shared backend still
// grows one series per client.
type StatsEvent struct {
	Key     Key
	IP      string
	Scope   Scope
	Allowed bool
	Code    Code

	Method string
	Route  string

	At time.Time
}

// StatsStore persists decision statistics. Callers treat it as best-effort:
// an error never fails the request.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
