package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"security-gateway/middleware/security/domain"
)

// Sweeper evicts stale per-IP state. It does not schedule itself: the host
// process calls Sweep, or hands Run a ticker.
type Sweeper struct {
	Targets []domain.Sweepable
	MaxAge  time.Duration
	Clock   domain.Clock
	Logger  *slog.Logger
}

func (s Sweeper) Sweep(ctx context.Context) (domain.SweepStats, error) {
	maxAge := s.MaxAge
	if maxAge <= 0 {
		maxAge = domain.DefaultSweepMaxAge
	}
	at := now(s.Clock)

	var (
		total domain.SweepStats
		errs  []error
	)
	for _, t := range s.Targets {
		if t == nil {
			continue
		}
		st, err := t.Sweep(ctx, at, maxAge)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total = total.Add(st)
	}
	return total, errors.Join(errs...)
}

// Run sweeps on every tick until ctx is done, then stops the ticker.
func (s Sweeper) Run(ctx context.Context, t domain.Ticker) {
	defer t.Stop()
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			st, err := s.Sweep(ctx)
			if err != nil {
				log.Error("security sweep failed", "error", err)
			}
			if st.Total() > 0 {
				log.Debug("security sweep done",
					"suspicion", st.Suspicion,
					"burst", st.Burst,
					"windows", st.Windows,
					"idle", st.Idle,
				)
			}
		}
	}
}
