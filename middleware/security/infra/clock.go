package infra

import (
	"context"
	"time"

	"security-gateway/middleware/security/domain"
)

// SystemClock is the wall clock. It implements domain.Clock and
// domain.Sleeper.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type ticker struct{ t *time.Ticker }

func (t ticker) C() <-chan time.Time { return t.t.C }
func (t ticker) Stop()               { t.t.Stop() }

// NewTicker wraps time.NewTicker as a domain.Ticker.
func NewTicker(d time.Duration) domain.Ticker {
	return ticker{t: time.NewTicker(d)}
}
