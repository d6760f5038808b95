package security

import (
	"net/http"
)

// Guard is the outermost Shield check. A blocked IP is refused with 403
// IP_BLOCKED before any counter is touched; otherwise the burst guard runs
// and a flood is refused with 429 DDOS_PROTECTION. The resolved client IP is
// stored in the request context for the inner middlewares.
func (s *Shield) Guard() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := s.clientIP(r)
			r = r.WithContext(withClientIP(r.Context(), ip))
			ctx := r.Context()

			blocked, err := s.reputation.IsBlocked(ctx, ip)
			if err != nil {
				s.fault(w, r, next, "blocked lookup", err)
				return
			}
			if blocked {
				s.reject(w, r, ip, "", "", blockedRejection())
				return
			}

			dec, err := s.burst.Check(ctx, ip)
			if err != nil {
				s.fault(w, r, next, "burst check", err)
				return
			}
			if !dec.Allowed {
				if dec.Blocked {
					s.log.Warn("ip blocked", "ip", ip, "reason", "burst", "threshold", s.threshold())
				}
				s.reject(w, r, ip, "", "", burstRejection(), "count", dec.Count)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
