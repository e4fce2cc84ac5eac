package workq

import (
	"container/heap"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

const (
	// pendingCapacity bounds the AddAfter submission channel. Producers
	// submitting faster than the scheduling loop drains get backpressure.
	pendingCapacity = 1000

	// heartbeatInterval bounds worst-case scheduling latency when a timer
	// misbehaves (suspend/resume, stepped clocks).
	heartbeatInterval = 10 * time.Second
)

// waitFor holds an item parked until its ready time.
type waitFor[T any] struct {
	item    T
	readyAt time.Time

	// index is the entry's position in the heap, maintained by Swap.
	index int
}

// waitQueue is a min-heap of waitFor entries ordered by readyAt.
type waitQueue[T any] []*waitFor[T]

func (pq waitQueue[T]) Len() int { return len(pq) }

func (pq waitQueue[T]) Less(i, j int) bool {
	return pq[i].readyAt.Before(pq[j].readyAt)
}

func (pq waitQueue[T]) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *waitQueue[T]) Push(x any) {
	n := len(*pq)
	entry := x.(*waitFor[T])
	entry.index = n
	*pq = append(*pq, entry)
}

func (pq *waitQueue[T]) Pop() any {
	old := *pq
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil // allow GC
	entry.index = -1
	*pq = old[:n-1]
	return entry
}

// Peek returns the soonest-due entry without removing it.
func (pq waitQueue[T]) Peek() *waitFor[T] { return pq[0] }

// DelayingQueue wraps a Queue with the ability to deliver an item no
// earlier than a requested duration from now. A single background
// goroutine owns the min-heap of parked items; producers reach it only
// through a bounded channel, so AddAfter never contends on the heap.
//
// Two AddAfter calls for the same item park two heap entries; the base
// queue's dedup collapses the double delivery when they fire.
type DelayingQueue[T comparable] struct {
	base *Queue[T]

	clock     clock.WithTicker
	heartbeat clock.Ticker

	stopCh   chan struct{}
	stopOnce sync.Once

	waitingForAddCh chan *waitFor[T]
}

// NewDelaying creates a DelayingQueue with its own base Queue.
func NewDelaying[T comparable](opts ...Option) *DelayingQueue[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	q := &DelayingQueue[T]{
		base:            New[T](opts...),
		clock:           o.clock,
		heartbeat:       o.clock.NewTicker(heartbeatInterval),
		stopCh:          make(chan struct{}),
		waitingForAddCh: make(chan *waitFor[T], pendingCapacity),
	}
	go q.waitingLoop()
	return q
}

// Add delivers item immediately.
func (q *DelayingQueue[T]) Add(item T) { q.base.Add(item) }

// Len returns the number of immediately available items. Parked items are
// not counted until they come due.
func (q *DelayingQueue[T]) Len() int { return q.base.Len() }

// Get blocks until an item is available or the queue is shutting down.
func (q *DelayingQueue[T]) Get() (item T, shutdown bool) { return q.base.Get() }

// Done marks item as finished processing.
func (q *DelayingQueue[T]) Done(item T) { q.base.Done(item) }

// ShuttingDown reports whether shutdown has begun.
func (q *DelayingQueue[T]) ShuttingDown() bool { return q.base.ShuttingDown() }

// ShutDown stops the scheduling loop and shuts down the base queue.
// Parked items that have not come due are discarded.
func (q *DelayingQueue[T]) ShutDown() {
	q.stopWaitingLoop()
	q.base.ShutDown()
}

// ShutDownWithDrain stops the scheduling loop, discards parked items, and
// drains the base queue, blocking until in-flight work completes.
func (q *DelayingQueue[T]) ShutDownWithDrain() {
	q.stopWaitingLoop()
	q.base.ShutDownWithDrain()
}

func (q *DelayingQueue[T]) stopWaitingLoop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
		q.heartbeat.Stop()
	})
}

// AddAfter delivers item to the queue once duration has elapsed.
// Non-positive durations deliver immediately.
func (q *DelayingQueue[T]) AddAfter(item T, duration time.Duration) {
	if q.base.ShuttingDown() {
		return
	}

	q.base.metrics.retry()

	if duration <= 0 {
		q.base.Add(item)
		return
	}

	select {
	case <-q.stopCh:
	case q.waitingForAddCh <- &waitFor[T]{item: item, readyAt: q.clock.Now().Add(duration)}:
	}
}

// waitingLoop is the sole owner of the wait heap. It promotes due entries
// into the base queue, sleeps on a timer armed for the heap minimum, and
// wakes for new submissions, the heartbeat, or shutdown.
func (q *DelayingQueue[T]) waitingLoop() {
	// Selected when the heap is empty: blocks forever.
	never := make(<-chan time.Time)

	var nextReadyTimer clock.Timer
	defer func() {
		if nextReadyTimer != nil {
			nextReadyTimer.Stop()
		}
	}()

	waiting := &waitQueue[T]{}
	heap.Init(waiting)

	for {
		if q.base.ShuttingDown() {
			return
		}

		now := q.clock.Now()

		// Promote everything that is due.
		for waiting.Len() > 0 {
			entry := waiting.Peek()
			if entry.readyAt.After(now) {
				break
			}
			entry = heap.Pop(waiting).(*waitFor[T])
			q.base.Add(entry.item)
		}

		// Arm a timer for the soonest remaining entry.
		nextReady := never
		if waiting.Len() > 0 {
			if nextReadyTimer != nil {
				nextReadyTimer.Stop()
			}
			entry := waiting.Peek()
			nextReadyTimer = q.clock.NewTimer(entry.readyAt.Sub(now))
			nextReady = nextReadyTimer.C()
		}

		select {
		case <-q.stopCh:
			return

		case <-q.heartbeat.C():
			// Re-check the heap even though no timer fired.

		case <-nextReady:
			// The head entry is due; promoted on the next pass.

		case entry := <-q.waitingForAddCh:
			q.park(waiting, entry)

			// Batch whatever else is already submitted before sleeping
			// again.
			drained := false
			for !drained {
				select {
				case entry := <-q.waitingForAddCh:
					q.park(waiting, entry)
				default:
					drained = true
				}
			}
		}
	}
}

// park inserts a submission into the heap, or delivers it immediately if
// it is already due.
func (q *DelayingQueue[T]) park(waiting *waitQueue[T], entry *waitFor[T]) {
	if entry.readyAt.After(q.clock.Now()) {
		heap.Push(waiting, entry)
		return
	}
	q.base.Add(entry.item)
}
