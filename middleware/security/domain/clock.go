package domain

import (
	"context"
	"time"
)

type Clock interface {
	Now() time.Time
}

// Sleeper suspends the caller for d. It returns ctx.Err() when the context
// ends first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Ticker is the minimum of time.Ticker the sweeper needs, so tests can send
// ticks by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}
