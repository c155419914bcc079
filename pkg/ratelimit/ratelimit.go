// Package ratelimit counts requests per caller key against a fixed quota per window.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/chromecollective/marketplace-backend/pkg/redis"
	"golang.org/x/time/rate"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter admits or rejects one request for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Policy is a quota of Limit requests per Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

func (p Policy) validate() error {
	if p.Limit <= 0 {
		return errors.New("rate limit must be positive")
	}
	if p.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	return nil
}

// WindowCounter is the fixed-window primitive of pkg/redis.
type WindowCounter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (redis.Window, error)
}

// Redis enforces the policy with a shared fixed-window counter, so every API instance
// sees the same quota.
type Redis struct {
	store  WindowCounter
	scope  string
	policy Policy
}

// NewRedis returns a limiter whose counters live under scope.
func NewRedis(store WindowCounter, scope string, policy Policy) (*Redis, error) {
	if store == nil {
		return nil, errors.New("redis store is required")
	}
	if err := policy.validate(); err != nil {
		return nil, err
	}
	return &Redis{store: store, scope: scope, policy: policy}, nil
}

func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	win, err := r.store.FixedWindowAllow(ctx, r.scope+":"+key, int64(r.policy.Limit), r.policy.Window)
	if err != nil {
		return Decision{}, err
	}
	d := Decision{Allowed: win.Allowed, Remaining: int64(r.policy.Limit) - win.Count}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !win.Allowed {
		d.RetryAfter = win.ResetIn
	}
	return d, nil
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Local enforces the policy in-process with one token bucket per key. Buckets refill
// at Limit per Window with a burst of Limit. Used when redis is not configured.
type Local struct {
	policy Policy
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*localEntry
}

func NewLocal(policy Policy) (*Local, error) {
	if err := policy.validate(); err != nil {
		return nil, err
	}
	return &Local{policy: policy, now: time.Now, entries: map[string]*localEntry{}}, nil
}

func (l *Local) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.evictIdleLocked(now)
	entry, ok := l.entries[key]
	if !ok {
		every := rate.Every(l.policy.Window / time.Duration(l.policy.Limit))
		entry = &localEntry{limiter: rate.NewLimiter(every, l.policy.Limit)}
		l.entries[key] = entry
	}
	entry.lastSeen = now

	res := entry.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: delay}, nil
	}
	remaining := int64(math.Floor(entry.limiter.TokensAt(now)))
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining}, nil
}

// evictIdleLocked drops buckets untouched for a full window; they would be full again.
func (l *Local) evictIdleLocked(now time.Time) {
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) > l.policy.Window {
			delete(l.entries, key)
		}
	}
}
