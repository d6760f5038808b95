package security

import (
	"net/http"

	"security-gateway/middleware/security/domain"
)

// SlowDown delays requests past the policy's soft threshold. It never
// rejects. A client that goes away while waiting is not served.
func (s *Shield) SlowDown(p domain.SlowDownPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := s.clientIP(r)
			key := slowKey(p.Scope, ip)

			delay, count, err := s.slow.Delay(r.Context(), p, key)
			if err != nil {
				s.fault(w, r, next, "slow-down", err)
				return
			}
			if delay > 0 {
				s.log.Debug("request delayed", "ip", ip, "scope", string(p.Scope), "count", count, "delay", delay)
				if err := s.opts.Sleeper.Sleep(r.Context(), delay); err != nil {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
