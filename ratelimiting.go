package workq

import (
	"time"

	"github.com/xraph/workq/limiter"
)

// RateLimitingQueue composes a DelayingQueue with a limiter.Limiter:
// AddRateLimited delivers an item after whatever delay the limiter
// computes from the item's failure history.
//
// Retry bookkeeping and in-flight tracking are deliberately separate
// lifecycles: Forget clears only the limiter's history, and the caller
// still owes a Done once processing completes.
type RateLimitingQueue[T comparable] struct {
	delaying *DelayingQueue[T]
	limiter  limiter.Limiter[T]
}

// NewRateLimiting creates a RateLimitingQueue with its own DelayingQueue.
// A nil limiter selects limiter.Default.
func NewRateLimiting[T comparable](l limiter.Limiter[T], opts ...Option) *RateLimitingQueue[T] {
	if l == nil {
		l = limiter.Default[T]()
	}
	return &RateLimitingQueue[T]{
		delaying: NewDelaying[T](opts...),
		limiter:  l,
	}
}

// Add delivers item immediately.
func (q *RateLimitingQueue[T]) Add(item T) { q.delaying.Add(item) }

// AddAfter delivers item once duration has elapsed.
func (q *RateLimitingQueue[T]) AddAfter(item T, duration time.Duration) {
	q.delaying.AddAfter(item, duration)
}

// AddRateLimited delivers item after the limiter's computed delay,
// recording one more attempt for it.
func (q *RateLimitingQueue[T]) AddRateLimited(item T) {
	q.delaying.AddAfter(item, q.limiter.When(item))
}

// Forget clears the item's retry history. It does not call Done.
func (q *RateLimitingQueue[T]) Forget(item T) { q.limiter.Forget(item) }

// NumRequeues returns how many times item has been rate-limited since it
// was last forgotten.
func (q *RateLimitingQueue[T]) NumRequeues(item T) int {
	return q.limiter.NumRequeues(item)
}

// Len returns the number of immediately available items.
func (q *RateLimitingQueue[T]) Len() int { return q.delaying.Len() }

// Get blocks until an item is available or the queue is shutting down.
func (q *RateLimitingQueue[T]) Get() (item T, shutdown bool) { return q.delaying.Get() }

// Done marks item as finished processing.
func (q *RateLimitingQueue[T]) Done(item T) { q.delaying.Done(item) }

// ShutDown stops delivery and discards pending items.
func (q *RateLimitingQueue[T]) ShutDown() { q.delaying.ShutDown() }

// ShutDownWithDrain stops delivery and blocks until in-flight work
// completes.
func (q *RateLimitingQueue[T]) ShutDownWithDrain() { q.delaying.ShutDownWithDrain() }

// ShuttingDown reports whether shutdown has begun.
func (q *RateLimitingQueue[T]) ShuttingDown() bool { return q.delaying.ShuttingDown() }
