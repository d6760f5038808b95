package security

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"security-gateway/middleware/security/domain"
)

// KeyFunc returns the identity part of a counter key. An empty string keys
// by IP alone. Errors are internal faults and go through the Shield's
// FailurePolicy.
type KeyFunc func(r *http.Request) (string, error)

// IPKey keys by client IP only.
func IPKey(*http.Request) (string, error) { return "", nil }

// UserKey keys by the attached identity: user id, then email, then
// domain.AnonymousIdentity.
func UserKey(r *http.Request) (string, error) {
	if id, ok := IdentityFrom(r.Context()); ok {
		if id.ID != "" {
			return id.ID, nil
		}
		if id.Email != "" {
			return normalizeEmail(id.Email), nil
		}
	}
	return domain.AnonymousIdentity, nil
}

// EmailKey keys login attempts by the email they target. It prefers the
// attached identity and otherwise reads at most maxBytes of a JSON or form
// body; the body is restored for the next handler. Without an email the key
// falls back to domain.UnknownIdentity.
func EmailKey(maxBytes int64) KeyFunc {
	if maxBytes <= 0 {
		maxBytes = 64 << 10
	}
	return func(r *http.Request) (string, error) {
		if id, ok := IdentityFrom(r.Context()); ok && id.Email != "" {
			return normalizeEmail(id.Email), nil
		}
		email, err := emailFromBody(r, maxBytes)
		if err != nil {
			return "", err
		}
		if email == "" {
			return domain.UnknownIdentity, nil
		}
		return email, nil
	}
}

type replayBody struct {
	io.Reader
	io.Closer
}

func emailFromBody(r *http.Request, limit int64) (string, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", nil
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, limit))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", domain.ErrKeyUnavailable, err)
	}
	r.Body = replayBody{Reader: io.MultiReader(bytes.NewReader(buf), r.Body), Closer: r.Body}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		vals, err := url.ParseQuery(string(buf))
		if err != nil {
			return "", nil
		}
		return normalizeEmail(vals.Get("email")), nil
	default:
		var payload struct {
			Email string `json:"email"`
		}
		// a malformed body is the handler's problem, not ours
		if err := json.Unmarshal(buf, &payload); err != nil {
			return "", nil
		}
		return normalizeEmail(payload.Email), nil
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DefaultKeyFunc returns the key function each built-in profile uses.
func DefaultKeyFunc(scope domain.Scope) KeyFunc {
	switch scope {
	case domain.ScopeAuth:
		return EmailKey(0)
	case domain.ScopeAPI:
		return UserKey
	default:
		return IPKey
	}
}

// buildKey joins the parts with '|', which appears in neither a scope nor
// an IP. The identity comes last, so whatever it contains cannot shift the
// boundaries.
func buildKey(scope domain.Scope, ip, identity string) domain.Key {
	if identity == "" {
		return domain.Key(string(scope) + "|" + ip)
	}
	return domain.Key(string(scope) + "|" + ip + "|" + identity)
}

// slowKey namespaces slow-down counters. ':' never appears in a valid scope,
// so these keys cannot match a rate-limit key.
func slowKey(scope domain.Scope, ip string) domain.Key {
	return domain.Key("slow:" + string(buildKey(scope, ip, "")))
}
