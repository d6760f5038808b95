// Package security provides net/http middlewares that protect an API from
// abuse.
//
// Layers:
//
//   - domain: contracts and types (no net/http)
//   - application: use cases (rate limit, slow-down, reputation, burst, sweep)
//   - infra: in-memory and Redis stores, stats, token buckets, clock
//   - security (this package): HTTP middlewares, client IP / identity
//     extraction and translation of decisions into status codes and JSON
//
// Request flow through a Shield:
//
//  1. Guard: a blocked IP gets 403 IP_BLOCKED before anything else runs;
//     a burst over 200 requests in 10s gets 429 DDOS_PROTECTION and a
//     heavy suspicion penalty
//  2. RateLimit: fixed window per profile, 429 RATE_LIMIT_EXCEEDED with
//     retryAfter; every rejection adds suspicion to the IP
//  3. SlowDown: injects latency past a soft threshold, never rejects
//  4. the next handler (e.g. a reverse proxy)
//
// BodyLimit, SecurityHeaders, CORS and ConcurrencyMiddleware are standalone.
// Mount SecurityHeaders first and Guard right after it so a blocked IP never
// reaches CORS or BodyLimit. ConcurrencyMiddleware belongs around the final
// handler only; wrapped around SlowDown it lets delayed requests hold slots.
//
// State lives in the domain.Store handed to New; nothing is global. The
// stale-entry sweep is exposed via Shield.Sweeper and must be scheduled by
// the host process.
package security
