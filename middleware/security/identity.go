package security

import (
	"context"
	"net/http"
	"strings"
)

// Identity is the authenticated caller, attached by the authentication
// layer. The middlewares only read it.
type Identity struct {
	ID    string
	Email string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// IdentityFromHeaders attaches an Identity taken from headers set by a
// trusted upstream authentication proxy. Requests without either header
// pass through untouched.
func IdentityFromHeaders(idHeader, emailHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id Identity
			if idHeader != "" {
				id.ID = strings.TrimSpace(r.Header.Get(idHeader))
			}
			if emailHeader != "" {
				id.Email = strings.TrimSpace(r.Header.Get(emailHeader))
			}
			if id.ID == "" && id.Email == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
