package security

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"security-gateway/middleware/security/domain"
)

type CORSOptions struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	MaxAgeSeconds  int
}

func (o CORSOptions) withDefaults() CORSOptions {
	if len(o.AllowedMethods) == 0 {
		o.AllowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(o.AllowedHeaders) == 0 {
		o.AllowedHeaders = []string{"Content-Type", "Authorization", "Accept", "Origin", "X-Requested-With", "X-Request-ID"}
	}
	exposed := []string{HeaderRateLimitLimit, HeaderRateLimitRemaining, HeaderRateLimitReset, "Retry-After"}
	for _, h := range o.ExposedHeaders {
		if !slices.Contains(exposed, h) {
			exposed = append(exposed, h)
		}
	}
	o.ExposedHeaders = exposed
	if o.MaxAgeSeconds == 0 {
		o.MaxAgeSeconds = 86400
	}
	return o
}

// CORS allows the listed origins with credentials. Requests without an
// Origin header (curl, server-to-server, same-origin navigation) pass
// untouched; an origin outside the list gets 403 ORIGIN_NOT_ALLOWED.
// Preflight requests from allowed origins are answered with 204.
func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	opts = opts.withDefaults()
	methods := strings.Join(opts.AllowedMethods, ", ")
	headers := strings.Join(opts.AllowedHeaders, ", ")
	exposed := strings.Join(opts.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(opts.MaxAgeSeconds)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			if !slices.Contains(opts.AllowedOrigins, origin) {
				writeRejection(w, newRejection(http.StatusForbidden, domain.CodeOriginNotAllowed,
					"Origin "+origin+" is not allowed."))
				return
			}

			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", exposed)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				h.Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
