package security

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"security-gateway/middleware/security/application"
	"security-gateway/middleware/security/domain"
	"security-gateway/middleware/security/infra"
)

type ConcurrencyOptions struct {
	Max            int
	AcquireTimeout time.Duration
	Logger         *slog.Logger
}

// ConcurrencyMiddleware caps in-flight requests at Max. A request that waits
// longer than AcquireTimeout for a slot gets 503 SERVER_BUSY; one whose
// client disconnects while waiting gets nothing. Max <= 0 disables the cap.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	pool := infra.NewChanPool(opts.Max)
	svc := application.ConcurrencyService{
		Pool:           pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			if err != nil {
				if errors.Is(err, domain.ErrServerBusy) {
					log.Warn("server busy", "in_flight", pool.InFlight(), "capacity", pool.Capacity(), "path", r.URL.Path)
					writeRejection(w, newRejection(http.StatusServiceUnavailable, domain.CodeServerBusy,
						"Server is busy, please try again shortly."))
				}
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
