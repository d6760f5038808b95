package security

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"security-gateway/middleware/security/infra"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingSleeper records requested delays instead of sleeping.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return s.err
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

type fixture struct {
	shield  *Shield
	store   *infra.MemoryStore
	clock   *testClock
	sleeper *recordingSleeper
}

func newFixture(t *testing.T, mutate func(*Options)) fixture {
	t.Helper()
	f := fixture{
		store:   infra.NewMemoryStore(),
		clock:   newTestClock(),
		sleeper: &recordingSleeper{},
	}
	opts := Options{
		Store:              f.store,
		Clock:              f.clock,
		Sleeper:            f.sleeper,
		Logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		DisableLogThrottle: true,
	}
	if mutate != nil {
		mutate(&opts)
	}
	s, err := New(opts)
	require.NoError(t, err)
	f.shield = s
	return f
}

type counter struct {
	mu    sync.Mutex
	calls int
}

func (c *counter) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.calls++
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
}

func (c *counter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func send(h http.Handler, method, path, ip, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, "http://example"+path, rd)
	r.RemoteAddr = ip + ":40000"
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeRejection(t *testing.T, w *httptest.ResponseRecorder) Rejection {
	t.Helper()
	var rj Rejection
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&rj))
	return rj
}
