// Package application holds the use cases of the anti-abuse layer: the
// fixed-window rate limiter, the slow-down controller, the IP reputation
// tracker, the burst guard, the cleanup sweeper and the concurrency slots.
//
// It depends only on domain and knows nothing about net/http. For example
// RateLimiter.Decide(ctx, policy, key) returns a domain.Decision.
package application
