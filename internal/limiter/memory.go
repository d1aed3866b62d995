package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	failures     *rate.Limiter
	blockedUntil time.Time
	seen         time.Time
}

// Memory is a process-local limiter. Each (username, ip) key gets a token
// bucket refilling maxFails tokens per window; a failure that finds the
// bucket empty blocks the key for blockFor.
type Memory struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

var _ Limiter = (*Memory)(nil)

// NewMemory constructs an in-memory limiter.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	if maxFails < 1 {
		maxFails = 1
	}
	return &Memory{
		buckets:  make(map[string]*bucket),
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		now:      time.Now,
	}
}

func key(username string, ipHash []byte) string { return username + "\x00" + string(ipHash) }

// Allow reports whether the key is currently unblocked.
func (m *Memory) Allow(_ context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.evictLocked(now)
	b, ok := m.buckets[key(username, ipHash)]
	if !ok || !b.blockedUntil.After(now) {
		return true, 0, nil
	}
	return false, b.blockedUntil.Sub(now), nil
}

// Success forgets the key.
func (m *Memory) Success(_ context.Context, username string, ipHash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets, key(username, ipHash))
	return nil
}

// Failure spends a token and blocks the key once the bucket is dry.
func (m *Memory) Failure(_ context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	k := key(username, ipHash)
	b, ok := m.buckets[k]
	if !ok {
		every := rate.Every(m.window / time.Duration(m.maxFails))
		// the failure that empties the bucket triggers the block
		b = &bucket{failures: rate.NewLimiter(every, m.maxFails-1)}
		m.buckets[k] = b
	}
	b.seen = now
	if b.failures.AllowN(now, 1) {
		return false, 0, nil
	}
	b.blockedUntil = now.Add(m.blockFor)
	return true, m.blockFor, nil
}

// evictLocked drops idle, unblocked keys so the map cannot grow without bound.
func (m *Memory) evictLocked(now time.Time) {
	if len(m.buckets) < 1024 {
		return
	}
	for k, b := range m.buckets {
		if !b.blockedUntil.After(now) && now.Sub(b.seen) > m.window {
			delete(m.buckets, k)
		}
	}
}
