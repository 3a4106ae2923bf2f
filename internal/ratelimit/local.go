package ratelimit

import (
	"context"
	"sync"
	"time"
)

type localCounter struct {
	count     int64
	expiresAt time.Time
}

// LocalStore keeps counters in process memory. Suitable for single-process
// deployments and tests; counters are not shared across instances.
type LocalStore struct {
	mu       sync.Mutex
	counters map[string]*localCounter
	now      func() time.Time

	sweepOnce sync.Once
	stop      chan struct{}
}

// NewLocalStore creates an in-memory counter store.
func NewLocalStore() *LocalStore {
	return &LocalStore{
		counters: make(map[string]*localCounter),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

// Incr counts one hit for key, resetting the counter when its window expired.
func (s *LocalStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.counters[key]
	if !ok || now.After(c.expiresAt) {
		c = &localCounter{expiresAt: now.Add(window)}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

// StartSweep launches a background goroutine that drops expired counters so
// an idle principal does not leak memory. Safe to call once; stops when the
// context is done.
func (s *LocalStore) StartSweep(ctx context.Context, interval time.Duration) {
	s.sweepOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.sweep()
				case <-ctx.Done():
					return
				case <-s.stop:
					return
				}
			}
		}()
	})
}

func (s *LocalStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, c := range s.counters {
		if now.After(c.expiresAt) {
			delete(s.counters, key)
		}
	}
}

// Close stops the sweep goroutine.
func (s *LocalStore) Close() {
	close(s.stop)
}
