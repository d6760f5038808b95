package infra

import (
	"context"
	"sort"
	"sync"
	"time"

	"security-gateway/middleware/security/domain"
)

var _ domain.Store = (*MemoryStore)(nil)

// MemoryStore keeps all anti-abuse state in process memory behind one
// mutex. Every read-modify-write happens under the lock, so two concurrent
// hits on the same key never read the same count.
//
// Nothing is persisted: a restart forgives every block and counter.
type MemoryStore struct {
	mu        sync.Mutex
	windows   map[domain.Key]*windowEntry
	bursts    map[string]*domain.BurstCounter
	suspicion map[string]*domain.SuspicionRecord
	blocked   map[string]time.Time
}

type windowEntry struct {
	domain.WindowCounter
	window time.Duration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows:   make(map[domain.Key]*windowEntry),
		bursts:    make(map[string]*domain.BurstCounter),
		suspicion: make(map[string]*domain.SuspicionRecord),
		blocked:   make(map[string]time.Time),
	}
}

func (s *MemoryStore) Increment(_ context.Context, key domain.Key, window time.Duration, now time.Time) (domain.WindowCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.windows[key]
	if !ok || ent.Expired(window, now) {
		ent = &windowEntry{WindowCounter: domain.WindowCounter{WindowStart: now}, window: window}
		s.windows[key] = ent
	}
	ent.window = window
	ent.Count++
	return ent.WindowCounter, nil
}

func (s *MemoryStore) HitBurst(_ context.Context, ip string, window time.Duration, now time.Time) (domain.BurstCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.bursts[ip]
	if !ok || now.Sub(c.WindowStart) > window {
		c = &domain.BurstCounter{WindowStart: now}
		s.bursts[ip] = c
	}
	c.Count++
	return *c, nil
}

// Burst returns the current burst counter of ip.
func (s *MemoryStore) Burst(ip string) (domain.BurstCounter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.bursts[ip]
	if !ok {
		return domain.BurstCounter{}, false
	}
	return *c, true
}

func (s *MemoryStore) IsBlocked(_ context.Context, ip string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blocked[ip]
	return ok, nil
}

func (s *MemoryStore) AddSuspicion(_ context.Context, ip string, weight int, now time.Time) (domain.SuspicionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.suspicion[ip]
	if !ok {
		rec = &domain.SuspicionRecord{}
		s.suspicion[ip] = rec
	}
	rec.Count += weight
	rec.LastSeen = now
	return *rec, nil
}

func (s *MemoryStore) Suspicion(_ context.Context, ip string) (domain.SuspicionRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.suspicion[ip]
	if !ok {
		return domain.SuspicionRecord{}, false, nil
	}
	return *rec, true, nil
}

func (s *MemoryStore) Block(_ context.Context, ip string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blocked[ip]; !ok {
		s.blocked[ip] = now
	}
	delete(s.suspicion, ip)
	return nil
}

func (s *MemoryStore) Unblock(_ context.Context, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocked, ip)
	return nil
}

func (s *MemoryStore) Blocked(_ context.Context) ([]string, error) {
	s.mu.Lock()
	out := make([]string, 0, len(s.blocked))
	for ip := range s.blocked {
		out = append(out, ip)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out, nil
}

// Sweep evicts suspicion records not touched and burst counters not
// restarted for longer than maxAge. Rate-limit windows that already expired
// are dropped as well; the next hit would have reset them anyway.
// The blocked set is never swept.
func (s *MemoryStore) Sweep(_ context.Context, now time.Time, maxAge time.Duration) (domain.SweepStats, error) {
	var st domain.SweepStats

	s.mu.Lock()
	defer s.mu.Unlock()

	for ip, rec := range s.suspicion {
		if now.Sub(rec.LastSeen) > maxAge {
			delete(s.suspicion, ip)
			st.Suspicion++
		}
	}
	for ip, c := range s.bursts {
		if now.Sub(c.WindowStart) > maxAge {
			delete(s.bursts, ip)
			st.Burst++
		}
	}
	for k, ent := range s.windows {
		if ent.Expired(ent.window, now) {
			delete(s.windows, k)
			st.Windows++
		}
	}
	return st, nil
}
