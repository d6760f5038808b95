package security

import (
	"net/http"

	"security-gateway/middleware/security/domain"
)

const (
	HeaderRateLimitLimit     = "RateLimit-Limit"
	HeaderRateLimitRemaining = "RateLimit-Remaining"
	HeaderRateLimitReset     = "RateLimit-Reset"
)

// RateLimit enforces a fixed-window policy keyed by (scope, client IP,
// identity from kf). The limit, remaining and reset headers are set on every
// counted request. The request over the limit gets 429 RATE_LIMIT_EXCEEDED
// with retryAfter and costs the IP one suspicion point.
func (s *Shield) RateLimit(p domain.Policy, kf KeyFunc) func(http.Handler) http.Handler {
	if kf == nil {
		kf = DefaultKeyFunc(p.Scope)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := s.clientIP(r)

			identity, err := s.identity(kf, r)
			if err != nil {
				s.fault(w, r, next, "rate-limit key", err)
				return
			}
			key := buildKey(p.Scope, ip, identity)

			dec, err := s.limiter.Decide(r.Context(), p, key)
			if err != nil {
				s.fault(w, r, next, "rate-limit decide", err)
				return
			}

			h := w.Header()
			h.Set(HeaderRateLimitLimit, formatInt(dec.Limit))
			h.Set(HeaderRateLimitRemaining, formatInt(dec.Remaining))
			h.Set(HeaderRateLimitReset, formatSeconds(dec.ResetAt.Sub(s.opts.Clock.Now())))

			if !dec.Allowed {
				s.penalize(r.Context(), ip, s.opts.Penalty)
				msg := p.Message
				if msg == "" {
					msg = "Too many requests, please try again later."
				}
				rj := newRejection(http.StatusTooManyRequests, domain.CodeRateLimitExceeded, msg).
					withRetryAfter(dec.RetryAfter)
				s.reject(w, r, ip, p.Scope, key, rj, "scope", string(p.Scope), "key", string(key))
				return
			}

			s.record(r.Context(), r, domain.StatsEvent{Key: key, IP: ip, Scope: p.Scope})
			next.ServeHTTP(w, r)
		})
	}
}
