package workq

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// set is a map-backed membership set.
type set[T comparable] map[T]struct{}

func (s set[T]) has(item T) bool {
	_, ok := s[item]
	return ok
}

func (s set[T]) insert(item T) { s[item] = struct{}{} }

func (s set[T]) delete(item T) { delete(s, item) }

// Queue is an ordered, deduplicating work queue with blocking consumption.
// Safe for any number of concurrent producers and consumers.
//
// Adding an item that is already pending is a no-op. Adding an item that a
// consumer is currently processing marks it dirty again; Done re-queues it,
// so an update arriving mid-processing is never dropped and no two
// consumers ever hold the same item at once. Distinct items are delivered
// in first-Add order.
type Queue[T comparable] struct {
	cond *sync.Cond

	// queue holds the items visible to consumers, in first-Add order.
	// Every queued item is also dirty; no item appears twice.
	queue []T

	// dirty is the set of items that need processing.
	dirty set[T]

	// processing is the set of items currently checked out by consumers.
	processing set[T]

	shuttingDown bool
	drain        bool

	metrics *queueMetrics[T]

	clock        clock.WithTicker
	updatePeriod time.Duration
}

// New creates an empty Queue.
func New[T comparable](opts ...Option) *Queue[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	q := &Queue[T]{
		cond:         sync.NewCond(&sync.Mutex{}),
		dirty:        set[T]{},
		processing:   set[T]{},
		clock:        o.clock,
		updatePeriod: o.updatePeriod,
		metrics:      newQueueMetrics[T](o.provider, o.name, o.clock),
	}
	if q.metrics != nil {
		go q.updateUnfinishedWorkLoop()
	}
	return q
}

// Add marks item as needing processing. No-op if the item is already
// pending or the queue is shutting down.
func (q *Queue[T]) Add(item T) {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	if q.shuttingDown {
		return
	}
	if q.dirty.has(item) {
		return
	}

	q.metrics.add(item)

	q.dirty.insert(item)
	if q.processing.has(item) {
		// Re-added while a consumer holds it; Done will re-queue.
		return
	}

	q.queue = append(q.queue, item)
	q.cond.Signal()
}

// Len returns the number of items visible to consumers. Items being
// processed are not counted.
func (q *Queue[T]) Len() int {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	return len(q.queue)
}

// Get blocks until an item is available or the queue is shutting down.
// When shutdown is true the caller must stop consuming; item is the zero
// value in that case. The caller must eventually call Done(item).
func (q *Queue[T]) Get() (item T, shutdown bool) {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	for len(q.queue) == 0 && !q.shuttingDown {
		q.cond.Wait()
	}
	if len(q.queue) == 0 {
		// Shutting down with nothing left to hand out.
		return item, true
	}

	item = q.queue[0]
	var zero T
	q.queue[0] = zero // release the reference
	q.queue = q.queue[1:]

	q.metrics.get(item)

	q.processing.insert(item)
	q.dirty.delete(item)

	return item, false
}

// Done marks item as finished processing. If the item was re-added while
// it was being processed it is put back on the queue for re-delivery.
// Calling Done without a matching Get is a harmless no-op.
func (q *Queue[T]) Done(item T) {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	q.metrics.done(item)

	q.processing.delete(item)
	if q.dirty.has(item) {
		q.queue = append(q.queue, item)
		q.cond.Signal()
	} else if len(q.processing) == 0 {
		// Last in-flight item finished; wake any drain waiter.
		q.cond.Broadcast()
	}
}

// ShutDown begins shutdown. Pending items are discarded, further Adds are
// ignored, and blocked Get calls return with shutdown true once the queue
// is empty. Idempotent.
func (q *Queue[T]) ShutDown() {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	q.drain = false
	q.shuttingDown = true
	q.cond.Broadcast()
}

// ShutDownWithDrain begins shutdown like ShutDown but blocks the caller
// until all pending and in-flight items have been processed. Consumers
// keep receiving queued items during the drain; external Adds are ignored
// but re-delivery of in-flight items still happens. A concurrent ShutDown
// cancels the drain and unblocks the caller.
func (q *Queue[T]) ShutDownWithDrain() {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	q.drain = true
	q.shuttingDown = true
	q.cond.Broadcast()

	for (len(q.queue) > 0 || len(q.processing) > 0) && q.drain {
		q.cond.Wait()
	}
}

// ShuttingDown reports whether ShutDown or ShutDownWithDrain was called.
func (q *Queue[T]) ShuttingDown() bool {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	return q.shuttingDown
}

// updateUnfinishedWorkLoop periodically recomputes the unfinished-work
// gauges while the queue is alive. Runs only when metrics are enabled.
func (q *Queue[T]) updateUnfinishedWorkLoop() {
	t := q.clock.NewTicker(q.updatePeriod)
	defer t.Stop()
	for range t.C() {
		q.cond.L.Lock()
		shuttingDown := q.shuttingDown
		q.cond.L.Unlock()
		if shuttingDown {
			return
		}
		q.metrics.updateUnfinishedWork()
	}
}
