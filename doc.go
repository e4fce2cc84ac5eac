// Package workq provides in-process, thread-safe work queues for
// control-loop style consumers: many producers and many workers coordinate
// over a stream of deduplicated items, with optional time-delayed
// re-enqueue and failure-driven rate limiting.
//
// Workq is designed as a library, not a service. Import it, create a queue,
// and run workers against it.
//
// # Quick Start
//
//	q := workq.NewRateLimiting[string](nil)
//
//	go func() {
//	    for {
//	        item, shutdown := q.Get()
//	        if shutdown {
//	            return
//	        }
//	        if err := reconcile(item); err != nil {
//	            q.AddRateLimited(item)
//	        } else {
//	            q.Forget(item)
//	        }
//	        q.Done(item)
//	    }
//	}()
//
//	q.Add("cluster/object")
//
// # Architecture
//
// The queues form three explicit composition tiers. Queue is the
// foundation: an ordered, deduplicating queue with blocking Get. An item
// added while a worker is already processing it is re-delivered after that
// worker calls Done, so updates are never lost and no two workers ever hold
// the same item. DelayingQueue owns a Queue and adds AddAfter, parking
// items in a timer-driven min-heap until they are due. RateLimitingQueue
// owns a DelayingQueue and a limiter.Limiter, computing each retry delay
// from the item's failure history.
//
// Clocks are injectable (k8s.io/utils/clock) so delay behavior is testable
// without wall-clock waits, and a metrics.Provider can be attached to
// observe depth, add rate, queue latency, work duration and unfinished
// work without coupling the queues to an export format.
package workq
