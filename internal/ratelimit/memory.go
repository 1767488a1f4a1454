package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	count     int
	resetTime time.Time
}

// MemoryLimiter keeps buckets in process memory. A restart clears all limits.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	maxKeys int
	now     func() time.Time
}

// NewMemoryLimiter creates a limiter holding at most maxKeys buckets.
// maxKeys <= 0 leaves the table unbounded apart from periodic sweeps.
func NewMemoryLimiter(maxKeys int) *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		maxKeys: maxKeys,
		now:     time.Now,
	}
}

// Check implements Limiter.
func (m *MemoryLimiter) Check(_ context.Context, key string, window time.Duration, limit int) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok || !now.Before(b.resetTime) {
		if !ok {
			m.makeRoomLocked(now)
		}
		b = &bucket{count: 1, resetTime: now.Add(window)}
		m.buckets[key] = b
		return Result{Allowed: true, Remaining: limit - 1, ResetTime: b.resetTime, Limit: limit}
	}

	b.count++
	if b.count > limit {
		return Result{Allowed: false, Remaining: 0, ResetTime: b.resetTime, Limit: limit}
	}
	return Result{Allowed: true, Remaining: limit - b.count, ResetTime: b.resetTime, Limit: limit}
}

// makeRoomLocked frees one slot when the table is at capacity: expired
// buckets go first, then the bucket whose window ends soonest.
func (m *MemoryLimiter) makeRoomLocked(now time.Time) {
	if m.maxKeys <= 0 || len(m.buckets) < m.maxKeys {
		return
	}
	m.sweepLocked(now)
	if len(m.buckets) < m.maxKeys {
		return
	}
	var (
		victim   string
		earliest time.Time
	)
	for k, b := range m.buckets {
		if victim == "" || b.resetTime.Before(earliest) {
			victim, earliest = k, b.resetTime
		}
	}
	delete(m.buckets, victim)
}

func (m *MemoryLimiter) sweepLocked(now time.Time) int {
	removed := 0
	for k, b := range m.buckets {
		if !now.Before(b.resetTime) {
			delete(m.buckets, k)
			removed++
		}
	}
	return removed
}

// Sweep drops every bucket whose window has ended and returns how many were removed.
func (m *MemoryLimiter) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.now())
}

// Len returns the number of live buckets.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// Run sweeps every interval until ctx is cancelled.
func (m *MemoryLimiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
