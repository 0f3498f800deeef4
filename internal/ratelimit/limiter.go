// Package ratelimit implements the in-process fixed-window token-bucket
// limiter from spec.md §4.2, generalized from the teacher's per-checker
// TokenBucket (internal/checker/base_checker.go) — a mutex-protected bucket
// struct — to a single shared instance holding one bucket per string key.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

type bucket struct {
	count   int
	resetAt time.Time
}

// Limiter is a process-local, non-persisted fixed-window rate limiter.
// Per spec.md §5, it is intentionally per-instance: horizontal scaling
// multiplies the effective global rate by instance count.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	// softCap triggers eviction of expired buckets on every consume once the
	// map grows past it. Defaults to 8000.
	softCap int

	// metrics mirrors allow/deny counts cross-instance. Never consulted for
	// the allow/deny decision itself.
	metrics MetricsSink
}

// New creates a Limiter with the default soft eviction cap and a disabled
// metrics sink.
func New() *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		softCap: 8000,
		metrics: &noopMetricsSink{},
	}
}

// SetMetrics attaches a cross-instance metrics sink. Passing nil restores the
// no-op sink.
func (l *Limiter) SetMetrics(m MetricsSink) {
	if m == nil {
		m = &noopMetricsSink{}
	}
	l.metrics = m
}

// Decision is the outcome of a Consume call.
type Decision struct {
	Allowed       bool
	Remaining     int
	RetryAfterSec int
	ResetAt       time.Time
}

// Consume attempts to take `weight` tokens from the bucket identified by key
// within a limit/windowMs fixed window. Misconfigured calls (empty key,
// non-positive limit or windowMs) soft-fail-open.
func (l *Limiter) Consume(key string, limit int, windowMs int, weight int) Decision {
	if key == "" || limit <= 0 || windowMs <= 0 {
		return Decision{Allowed: true, Remaining: limit, RetryAfterSec: 0}
	}
	if weight <= 0 {
		weight = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.evictIfCrowded(now)

	b, ok := l.buckets[key]
	if !ok || !b.resetAt.After(now) {
		b = &bucket{count: 0, resetAt: now.Add(time.Duration(windowMs) * time.Millisecond)}
		l.buckets[key] = b
	}

	if b.count+weight > limit {
		retryAfter := int(math.Ceil(b.resetAt.Sub(now).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		l.metrics.RecordDeny(key)
		return Decision{Allowed: false, Remaining: limit - b.count, RetryAfterSec: retryAfter, ResetAt: b.resetAt}
	}

	b.count += weight
	l.metrics.RecordAllow(key)
	return Decision{Allowed: true, Remaining: limit - b.count, RetryAfterSec: 0, ResetAt: b.resetAt}
}

func (l *Limiter) evictIfCrowded(now time.Time) {
	if len(l.buckets) <= l.softCap {
		return
	}
	for k, b := range l.buckets {
		if !b.resetAt.After(now) {
			delete(l.buckets, k)
		}
	}
}
