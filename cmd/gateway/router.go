package main

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"security-gateway/internal/config"
	"security-gateway/middleware/security"
	"security-gateway/middleware/security/domain"
)

// newRouter puts the security chain in front of upstream. Route prefixes
// pick the profile; the most specific prefix wins, anything else is public.
//
// The guard runs before CORS and the body limit so a blocked IP always sees
// IP_BLOCKED. The concurrency cap only wraps upstream: a request parked in
// slow-down must not hold a slot.
func newRouter(cfg *config.Config, shield *security.Shield, upstream http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(security.SecurityHeaders(security.HeaderOptions{}))
	r.Use(shield.Guard())
	r.Use(security.CORS(security.CORSOptions{AllowedOrigins: cfg.Server.AllowedOrigins}))
	r.Use(security.BodyLimit(cfg.Security.MaxBodyBytes))
	if cfg.Security.IdentityHeader != "" || cfg.Security.EmailHeader != "" {
		r.Use(security.IdentityFromHeaders(cfg.Security.IdentityHeader, cfg.Security.EmailHeader))
	}

	proxied := security.ConcurrencyMiddleware(security.ConcurrencyOptions{
		Max:            cfg.Concurrency.Max,
		AcquireTimeout: cfg.Concurrency.AcquireTimeout,
	})(upstream)

	mount := func(prefixes []string, scope domain.Scope) {
		mw := shield.Profile(scope)
		for _, p := range prefixes {
			p = "/" + strings.Trim(p, "/")
			r.With(mw).Handle(p, proxied)
			r.With(mw).Handle(p+"/*", proxied)
		}
	}
	mount(cfg.Security.Routes.Auth, domain.ScopeAuth)
	mount(cfg.Security.Routes.Sensitive, domain.ScopeSensitive)
	mount(cfg.Security.Routes.API, domain.ScopeAPI)

	r.With(shield.Profile(domain.ScopePublic)).Handle("/*", proxied)
	return r
}
