package security

import (
	"net/http"

	"security-gateway/middleware/security/domain"
)

// BodyLimit refuses requests whose declared Content-Length exceeds max with
// 413 REQUEST_TOO_LARGE, without reading the body. Bodies of unknown length
// are wrapped with http.MaxBytesReader so reading past max fails.
// max <= 0 uses domain.DefaultMaxBodyBytes.
func BodyLimit(max int64) func(http.Handler) http.Handler {
	if max <= 0 {
		max = domain.DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > max {
				writeRejection(w, tooLargeRejection(max))
				return
			}
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, max)
			}
			next.ServeHTTP(w, r)
		})
	}
}
