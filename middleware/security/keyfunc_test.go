package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"security-gateway/middleware/security/domain"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		name     string
		remote   string
		xff      string
		trustXFF bool
		want     string
	}{
		{"remote addr host", "10.0.0.9:5555", "", false, "10.0.0.9"},
		{"xff ignored when untrusted", "10.0.0.9:5555", "1.2.3.4", false, "10.0.0.9"},
		{"xff first hop when trusted", "10.0.0.9:5555", "1.2.3.4, 5.6.7.8", true, "1.2.3.4"},
		{"garbage xff falls back", "10.0.0.9:5555", "not-an-ip", true, "10.0.0.9"},
		{"ipv4 mapped ipv6", "[::ffff:192.0.2.1]:80", "", false, "192.0.2.1"},
		{"ipv6", "[2001:db8::1]:80", "", false, "2001:db8::1"},
		{"no port", "192.0.2.7", "", false, "192.0.2.7"},
		{"empty", "", "", false, domain.UnknownIdentity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			assert.Equal(t, tc.want, ClientIP(r, tc.trustXFF))
		})
	}
}

func TestEmailKey(t *testing.T) {
	kf := EmailKey(0)

	cases := []struct {
		name        string
		contentType string
		body        string
		want        string
	}{
		{"json", "application/json", `{"email":"User@Example.com"}`, "user@example.com"},
		{"form", "application/x-www-form-urlencoded", "email=a%40b.com&password=x", "a@b.com"},
		{"missing email", "application/json", `{"password":"x"}`, domain.UnknownIdentity},
		{"malformed", "application/json", `{"email":`, domain.UnknownIdentity},
		{"empty body", "", "", domain.UnknownIdentity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "http://example/api/auth/login", strings.NewReader(tc.body))
			if tc.contentType != "" {
				r.Header.Set("Content-Type", tc.contentType)
			}

			got, err := kf(r)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			rest, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.Equal(t, tc.body, string(rest))
		})
	}
}

func TestEmailKey_ReadsOnlyPrefixAndRestoresAll(t *testing.T) {
	body := `{"email":"a@b.com"}` + strings.Repeat(" ", 100)
	r := httptest.NewRequest(http.MethodPost, "http://example/", strings.NewReader(body))

	got, err := EmailKey(8)(r)
	require.NoError(t, err)
	assert.Equal(t, domain.UnknownIdentity, got)

	rest, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(rest))
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestEmailKey_ReadErrorIsUnavailable(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "http://example/", failingBody{})
	_, err := EmailKey(0)(r)
	assert.ErrorIs(t, err, domain.ErrKeyUnavailable)
}

func TestEmailKey_PrefersIdentity(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "http://example/", strings.NewReader(`{"email":"x@y.com"}`))
	r = r.WithContext(WithIdentity(r.Context(), Identity{Email: "Me@Example.com"}))

	got, err := EmailKey(0)(r)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", got)
}

func TestUserKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	got, err := UserKey(r)
	require.NoError(t, err)
	assert.Equal(t, domain.AnonymousIdentity, got)

	got, err = UserKey(r.WithContext(WithIdentity(r.Context(), Identity{ID: "u1", Email: "a@b.com"})))
	require.NoError(t, err)
	assert.Equal(t, "u1", got)

	got, err = UserKey(r.WithContext(WithIdentity(r.Context(), Identity{Email: "A@b.com"})))
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", got)
}

func TestBuildKey(t *testing.T) {
	assert.Equal(t, domain.Key("sensitive|1.2.3.4"), buildKey(domain.ScopeSensitive, "1.2.3.4", ""))
	assert.Equal(t, domain.Key("auth|1.2.3.4|a@b.com"), buildKey(domain.ScopeAuth, "1.2.3.4", "a@b.com"))
}

func TestBuildKey_IPv6AndColonsDoNotCollide(t *testing.T) {
	assert.NotEqual(t, buildKey(domain.ScopeAuth, "::", "1:x"), buildKey(domain.ScopeAuth, "::1", "x"))
	assert.NotEqual(t, buildKey(domain.ScopeAPI, "::1", ""), buildKey(domain.ScopeAPI, "::", "1"))
	assert.NotEqual(t, slowKey(domain.ScopeAPI, "1.2.3.4"), buildKey(domain.ScopeAPI, "1.2.3.4", ""))
}

func TestIdentityFromHeaders(t *testing.T) {
	var (
		got Identity
		ok  bool
	)
	h := IdentityFromHeaders("X-User-Id", "X-User-Email")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = IdentityFrom(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.False(t, ok)

	r = httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.Header.Set("X-User-Id", " 42 ")
	r.Header.Set("X-User-Email", "a@b.com")
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.True(t, ok)
	assert.Equal(t, Identity{ID: "42", Email: "a@b.com"}, got)
}
