package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"security-gateway/middleware/security/application"
	"security-gateway/middleware/security/domain"
	"security-gateway/middleware/security/infra"
)

// FailurePolicy decides what happens to a request when a check cannot be
// computed (store error, key function error or panic).
type FailurePolicy string

const (
	// FailOpen logs the fault and serves the request.
	FailOpen FailurePolicy = "fail-open"
	// FailClosed answers 503 SECURITY_UNAVAILABLE.
	FailClosed FailurePolicy = "fail-closed"
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", FailOpen:
		return FailOpen, nil
	case FailClosed:
		return FailClosed, nil
	}
	return "", fmt.Errorf("unknown failure policy %q", s)
}

type Options struct {
	// Store holds counters, bursts, suspicion and blocks. Required.
	Store domain.Store
	Stats domain.StatsStore

	Clock   domain.Clock
	Sleeper domain.Sleeper
	Logger  *slog.Logger

	TrustXForwardedFor bool
	// IPFunc overrides client IP resolution.
	IPFunc func(r *http.Request) string

	// Policies and SlowDowns default to domain.DefaultPolicies and
	// domain.DefaultSlowDowns. A scope without a slow-down policy is
	// never delayed.
	Policies  map[domain.Scope]domain.Policy
	SlowDowns map[domain.Scope]domain.SlowDownPolicy
	// KeyFuncs overrides DefaultKeyFunc per scope.
	KeyFuncs map[domain.Scope]KeyFunc

	SuspicionThreshold int
	Penalty            int

	BurstWindow  time.Duration
	BurstMax     int
	BurstPenalty int

	SweepMaxAge time.Duration

	FailurePolicy FailurePolicy

	// LogLimiter throttles rejection logs per IP and code. Defaults to one
	// line per second with a burst of 5. Set DisableLogThrottle to log all.
	LogLimiter         *infra.TokenBuckets
	DisableLogThrottle bool
}

// Shield wires the rate limiter, slow-down controller, reputation tracker
// and burst guard around one injected store.
type Shield struct {
	opts Options
	log  *slog.Logger

	limiter    application.RateLimiter
	slow       application.SlowDown
	reputation application.Reputation
	burst      application.BurstGuard
}

func New(opts Options) (*Shield, error) {
	if opts.Store == nil {
		return nil, errors.New("security: store is required")
	}
	if opts.Clock == nil {
		opts.Clock = infra.SystemClock{}
	}
	if opts.Sleeper == nil {
		opts.Sleeper = infra.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Policies == nil {
		opts.Policies = domain.DefaultPolicies()
	} else {
		opts.Policies = maps.Clone(opts.Policies)
	}
	if opts.SlowDowns == nil {
		opts.SlowDowns = domain.DefaultSlowDowns()
	} else {
		opts.SlowDowns = maps.Clone(opts.SlowDowns)
	}
	if opts.IPFunc == nil {
		trust := opts.TrustXForwardedFor
		opts.IPFunc = func(r *http.Request) string { return ClientIP(r, trust) }
	}
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = FailOpen
	}
	if opts.LogLimiter == nil && !opts.DisableLogThrottle {
		opts.LogLimiter = infra.NewTokenBuckets(1, 5)
	}

	for scope, p := range opts.Policies {
		if p.Scope == "" {
			p.Scope = scope
			opts.Policies[scope] = p
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	for scope, p := range opts.SlowDowns {
		if p.Scope == "" {
			p.Scope = scope
			opts.SlowDowns[scope] = p
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}

	rep := application.Reputation{
		Store:     opts.Store,
		Clock:     opts.Clock,
		Threshold: opts.SuspicionThreshold,
	}
	return &Shield{
		opts:       opts,
		log:        opts.Logger.With("component", "security"),
		limiter:    application.RateLimiter{Store: opts.Store, Clock: opts.Clock},
		slow:       application.SlowDown{Store: opts.Store, Clock: opts.Clock},
		reputation: rep,
		burst: application.BurstGuard{
			Store:      opts.Store,
			Reputation: rep,
			Clock:      opts.Clock,
			Window:     opts.BurstWindow,
			Max:        opts.BurstMax,
			Penalty:    opts.BurstPenalty,
		},
	}, nil
}

// Reputation exposes the tracker for operator actions (unblock, listing).
func (s *Shield) Reputation() application.Reputation { return s.reputation }

// Sweeper returns a sweeper over the store, the log throttle and extra.
// Schedule it with Sweeper.Run and a ticker.
func (s *Shield) Sweeper(extra ...domain.Sweepable) application.Sweeper {
	targets := []domain.Sweepable{s.opts.Store}
	if s.opts.LogLimiter != nil {
		targets = append(targets, s.opts.LogLimiter)
	}
	targets = append(targets, extra...)
	return application.Sweeper{
		Targets: targets,
		MaxAge:  s.opts.SweepMaxAge,
		Clock:   s.opts.Clock,
		Logger:  s.log,
	}
}

// Policy returns the configured policy of scope.
func (s *Shield) Policy(scope domain.Scope) (domain.Policy, bool) {
	p, ok := s.opts.Policies[scope]
	return p, ok
}

// Profile returns the rate-limit middleware of scope followed by its
// slow-down middleware, if one is configured. It panics on an unknown
// scope, which is a wiring bug.
func (s *Shield) Profile(scope domain.Scope) func(http.Handler) http.Handler {
	p, ok := s.opts.Policies[scope]
	if !ok {
		panic(fmt.Sprintf("security: no policy for scope %q", scope))
	}
	rl := s.RateLimit(p, s.keyFunc(scope))
	sd, ok := s.opts.SlowDowns[scope]
	if !ok {
		return rl
	}
	slow := s.SlowDown(sd)
	return func(next http.Handler) http.Handler {
		return rl(slow(next))
	}
}

func (s *Shield) keyFunc(scope domain.Scope) KeyFunc {
	if kf, ok := s.opts.KeyFuncs[scope]; ok && kf != nil {
		return kf
	}
	return DefaultKeyFunc(scope)
}

func (s *Shield) clientIP(r *http.Request) string {
	if ip, ok := ClientIPFrom(r.Context()); ok {
		return ip
	}
	return s.opts.IPFunc(r)
}

// identity runs kf, turning a panic into domain.ErrKeyUnavailable.
func (s *Shield) identity(kf KeyFunc, r *http.Request) (id string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: panic: %v", domain.ErrKeyUnavailable, rec)
		}
	}()
	return kf(r)
}

// fault applies the failure policy to a check that could not complete.
func (s *Shield) fault(w http.ResponseWriter, r *http.Request, next http.Handler, op string, err error) {
	s.log.Error("security check failed",
		"op", op,
		"policy", string(s.opts.FailurePolicy),
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	if s.opts.FailurePolicy == FailClosed {
		writeRejection(w, unavailableRejection())
		return
	}
	next.ServeHTTP(w, r)
}

func (s *Shield) reject(w http.ResponseWriter, r *http.Request, ip string, scope domain.Scope, key domain.Key, rj Rejection, attrs ...any) {
	s.record(r.Context(), r, domain.StatsEvent{
		Key:   key,
		IP:    ip,
		Scope: scope,
		Code:  rj.Code,
	})
	s.logRejection(r, ip, rj.Code, attrs...)
	writeRejection(w, rj)
}

func (s *Shield) logRejection(r *http.Request, ip string, code domain.Code, attrs ...any) {
	if s.opts.LogLimiter != nil && !s.opts.LogLimiter.AllowAt(ip+"|"+string(code), s.opts.Clock.Now()) {
		return
	}
	args := append([]any{
		"code", string(code),
		"ip", ip,
		"method", r.Method,
		"path", r.URL.Path,
	}, attrs...)
	s.log.Warn("request rejected", args...)
}

func (s *Shield) record(ctx context.Context, r *http.Request, ev domain.StatsEvent) {
	if s.opts.Stats == nil {
		return
	}
	ev.Allowed = ev.Code == ""
	ev.Method = statsMethod(r.Method)
	ev.Route = routePattern(r)
	ev.At = s.opts.Clock.Now()
	if err := s.opts.Stats.Record(ctx, ev); err != nil {
		s.log.Debug("stats record failed", "error", err)
	}
}

// routePattern is the chi pattern matched for r. Decisions taken before
// routing, or under a router other than chi, are grouped as unrouted.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unrouted"
}

func statsMethod(m string) string {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodOptions, http.MethodConnect, http.MethodTrace:
		return m
	}
	return "OTHER"
}

func (s *Shield) penalize(ctx context.Context, ip string, weight int) {
	blocked, err := s.reputation.Penalize(ctx, ip, weight)
	if err != nil {
		s.log.Error("suspicion update failed", "ip", ip, "error", err)
		return
	}
	if blocked {
		s.log.Warn("ip blocked", "ip", ip, "threshold", s.threshold())
	}
}

func (s *Shield) threshold() int {
	if s.opts.SuspicionThreshold > 0 {
		return s.opts.SuspicionThreshold
	}
	return domain.DefaultSuspicionThreshold
}
