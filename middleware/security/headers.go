package security

import "net/http"

// HeaderOptions overrides the values SecurityHeaders sends. Empty fields keep
// the defaults.
type HeaderOptions struct {
	FrameOptions          string
	ReferrerPolicy        string
	PermissionsPolicy     string
	ContentSecurityPolicy string
}

func (o HeaderOptions) withDefaults() HeaderOptions {
	if o.FrameOptions == "" {
		o.FrameOptions = "DENY"
	}
	if o.ReferrerPolicy == "" {
		o.ReferrerPolicy = "strict-origin-when-cross-origin"
	}
	if o.PermissionsPolicy == "" {
		o.PermissionsPolicy = "camera=(), microphone=(), geolocation=()"
	}
	if o.ContentSecurityPolicy == "" {
		o.ContentSecurityPolicy = "default-src 'self'; img-src 'self' data: blob:; style-src 'self' 'unsafe-inline'; frame-ancestors 'none'"
	}
	return o
}

// SecurityHeaders sets the fixed security headers on every response,
// rejections included, and removes X-Powered-By even when the next handler
// (e.g. a reverse proxy) copies it from upstream.
func SecurityHeaders(opts HeaderOptions) func(http.Handler) http.Handler {
	opts = opts.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", opts.FrameOptions)
			h.Set("X-XSS-Protection", "1; mode=block")
			h.Set("Referrer-Policy", opts.ReferrerPolicy)
			h.Set("Permissions-Policy", opts.PermissionsPolicy)
			h.Set("Content-Security-Policy", opts.ContentSecurityPolicy)
			h.Del("X-Powered-By")

			next.ServeHTTP(&scrubWriter{ResponseWriter: w}, r)
		})
	}
}

// scrubWriter drops X-Powered-By right before the header is sent.
type scrubWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (sw *scrubWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.wroteHeader = true
		sw.Header().Del("X-Powered-By")
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *scrubWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.WriteHeader(http.StatusOK)
	}
	return sw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach Flush and friends.
func (sw *scrubWriter) Unwrap() http.ResponseWriter { return sw.ResponseWriter }
