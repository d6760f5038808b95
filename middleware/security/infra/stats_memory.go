package infra

import (
	"context"
	"sync"

	"security-gateway/middleware/security/domain"
)

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

// MemoryStatsStore counts decisions in memory. Useful for tests and
// single-instance deployments.
//
// It never expires anything; per-IP tracking is off by default.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byCode  map[domain.Code]int64
	byScope map[domain.Scope]Counters
	byRoute map[string]Counters
	byIP    map[string]Counters

	trackIPs bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackIPs(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackIPs = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byCode:  make(map[domain.Code]int64),
		byScope: make(map[domain.Scope]Counters),
		byRoute: make(map[string]Counters),
		byIP:    make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func bump(m map[string]Counters, k string, allowed bool) {
	c := m[k]
	if allowed {
		c.Allowed++
	} else {
		c.Denied++
	}
	m[k] = c
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Allowed {
		s.total.Allowed++
	} else {
		s.total.Denied++
		s.byCode[ev.Code]++
	}
	if ev.Scope != "" {
		c := s.byScope[ev.Scope]
		if ev.Allowed {
			c.Allowed++
		} else {
			c.Denied++
		}
		s.byScope[ev.Scope] = c
	}
	bump(s.byRoute, ev.Method+" "+ev.Route, ev.Allowed)
	if s.trackIPs && ev.IP != "" {
		bump(s.byIP, ev.IP, ev.Allowed)
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByCode() map[domain.Code]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Code]int64, len(s.byCode))
	for k, v := range s.byCode {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByScope() map[domain.Scope]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Scope]Counters, len(s.byScope))
	for k, v := range s.byScope {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByIP() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byIP))
	for k, v := range s.byIP {
		out[k] = v
	}
	return out
}
