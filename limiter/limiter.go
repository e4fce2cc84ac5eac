// Package limiter provides per-item retry delay strategies for work
// queues. All limiters are safe for concurrent use.
package limiter

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter computes how long an item must wait before its next delivery
// and tracks per-item retry history.
type Limiter[T comparable] interface {
	// When returns the delay before the item may be delivered again,
	// recording one more attempt for it.
	When(item T) time.Duration
	// Forget clears the item's retry history.
	Forget(item T)
	// NumRequeues returns how many attempts When has recorded for the
	// item since it was last forgotten.
	NumRequeues(item T) int
}

// Compile-time interface checks.
var (
	_ Limiter[string] = (*TokenBucket[string])(nil)
	_ Limiter[string] = (*Exponential[string])(nil)
	_ Limiter[string] = (*FastSlow[string])(nil)
	_ Limiter[string] = (*MaxOf[string])(nil)
)

// Default returns the composition a control-loop consumer usually wants:
// per-item exponential backoff from 5ms to 1000s combined with an overall
// 10 qps / burst 100 token bucket.
func Default[T comparable]() Limiter[T] {
	return NewMaxOf[T](
		NewExponential[T](5*time.Millisecond, 1000*time.Second),
		NewTokenBucket[T](10, 100),
	)
}

// ──────────────────────────────────────────────────
// TokenBucket
// ──────────────────────────────────────────────────

// TokenBucket delays items through a token bucket shared by all of them:
// up to burst deliveries are admitted immediately, refilling at qps tokens
// per second. It keeps no per-item state; NumRequeues always reports zero.
type TokenBucket[T comparable] struct {
	limiter *rate.Limiter
}

// NewTokenBucket creates a token-bucket limiter.
func NewTokenBucket[T comparable](qps float64, burst int) *TokenBucket[T] {
	return &TokenBucket[T]{limiter: rate.NewLimiter(rate.Limit(qps), burst)}
}

// When returns the wait required to admit one token.
func (t *TokenBucket[T]) When(_ T) time.Duration {
	return t.limiter.Reserve().Delay()
}

// Forget is a no-op; the bucket is global, not per-item.
func (t *TokenBucket[T]) Forget(_ T) {}

// NumRequeues always returns 0.
func (t *TokenBucket[T]) NumRequeues(_ T) int { return 0 }

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles an item's delay on every attempt.
// Delay = min(base * 2^k, max), where k counts prior attempts, so the
// first When returns base.
type Exponential[T comparable] struct {
	base time.Duration
	max  time.Duration

	mu       sync.Mutex
	failures map[T]int
}

// NewExponential creates an exponential backoff limiter.
func NewExponential[T comparable](base, maxDelay time.Duration) *Exponential[T] {
	return &Exponential[T]{
		base:     base,
		max:      maxDelay,
		failures: make(map[T]int),
	}
}

// When returns base * 2^attempts, capped at max.
func (e *Exponential[T]) When(item T) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp := e.failures[item]
	e.failures[item] = exp + 1

	// Compute in floating point so the cap applies before the duration
	// representation can overflow.
	backoff := float64(e.base.Nanoseconds()) * math.Pow(2, float64(exp))
	if backoff > math.MaxInt64 || time.Duration(backoff) > e.max {
		return e.max
	}
	return time.Duration(backoff)
}

// Forget resets the item's attempt count.
func (e *Exponential[T]) Forget(item T) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.failures, item)
}

// NumRequeues returns the item's attempt count.
func (e *Exponential[T]) NumRequeues(item T) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failures[item]
}

// ──────────────────────────────────────────────────
// FastSlow
// ──────────────────────────────────────────────────

// FastSlow returns fast for an item's first maxFast attempts and slow
// afterwards. The attempt counter keeps growing past the threshold.
type FastSlow[T comparable] struct {
	fast    time.Duration
	slow    time.Duration
	maxFast int

	mu       sync.Mutex
	failures map[T]int
}

// NewFastSlow creates a fast/slow threshold limiter.
func NewFastSlow[T comparable](fast, slow time.Duration, maxFast int) *FastSlow[T] {
	return &FastSlow[T]{
		fast:     fast,
		slow:     slow,
		maxFast:  maxFast,
		failures: make(map[T]int),
	}
}

// When returns fast while the item's attempt count is within maxFast,
// slow once it exceeds it.
func (f *FastSlow[T]) When(item T) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failures[item]++
	if f.failures[item] <= f.maxFast {
		return f.fast
	}
	return f.slow
}

// Forget resets the item's attempt count.
func (f *FastSlow[T]) Forget(item T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, item)
}

// NumRequeues returns the item's attempt count.
func (f *FastSlow[T]) NumRequeues(item T) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures[item]
}

// ──────────────────────────────────────────────────
// MaxOf
// ──────────────────────────────────────────────────

// MaxOf combines several limiters, charging every one of them on each
// When and returning the worst (largest) delay. Forget clears the item in
// every sub-limiter; NumRequeues reports the highest count any sub-limiter
// holds.
type MaxOf[T comparable] struct {
	limiters []Limiter[T]
}

// NewMaxOf creates a limiter returning the maximum delay of its parts.
func NewMaxOf[T comparable](limiters ...Limiter[T]) *MaxOf[T] {
	return &MaxOf[T]{limiters: limiters}
}

// When charges every sub-limiter and returns the largest delay.
func (m *MaxOf[T]) When(item T) time.Duration {
	var worst time.Duration
	for _, l := range m.limiters {
		if d := l.When(item); d > worst {
			worst = d
		}
	}
	return worst
}

// Forget clears the item in every sub-limiter.
func (m *MaxOf[T]) Forget(item T) {
	for _, l := range m.limiters {
		l.Forget(item)
	}
}

// NumRequeues returns the highest attempt count across sub-limiters.
func (m *MaxOf[T]) NumRequeues(item T) int {
	var most int
	for _, l := range m.limiters {
		if n := l.NumRequeues(item); n > most {
			most = n
		}
	}
	return most
}
