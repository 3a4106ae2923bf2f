// Package ratelimit enforces per-principal event quotas over a fixed window.
//
// Counters live in a CounterStore so a horizontally scaled deployment can share
// them through Redis while single-process deployments and tests keep them in
// memory. Handlers see the same Limiter either way.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrRateLimited is returned when a principal exceeds its quota for an event.
var ErrRateLimited = errors.New("rate limited")

// CounterStore increments windowed counters. Incr must be atomic: the first
// hit of a fresh window creates the counter and schedules its expiry.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter checks event quotas before domain handlers run.
type Limiter struct {
	store  CounterStore
	quota  int64
	window time.Duration
	log    *zerolog.Logger
}

// NewLimiter builds a limiter over the given counter store.
func NewLimiter(store CounterStore, quota int, window time.Duration, logger *zerolog.Logger) *Limiter {
	return &Limiter{
		store:  store,
		quota:  int64(quota),
		window: window,
		log:    logger,
	}
}

// Allow counts one hit for (principal, event) and returns ErrRateLimited when
// the count for the current window exceeds the quota. A counter store failure
// fails open: the hit is allowed and the error logged, since a broken Redis
// must not take chat down with it.
func (l *Limiter) Allow(ctx context.Context, principal, event string) error {
	if l == nil || l.quota <= 0 {
		return nil
	}

	key := fmt.Sprintf("rl:%s:%s", principal, event)
	count, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		if l.log != nil {
			l.log.Warn().Err(err).Str("key", key).Msg("rate limit store unavailable, allowing")
		}
		return nil
	}
	if count > l.quota {
		return ErrRateLimited
	}
	return nil
}
