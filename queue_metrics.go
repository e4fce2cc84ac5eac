package workq

import (
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/xraph/workq/metrics"
)

// queueMetrics translates queue state transitions into Recorder calls and
// keeps the per-item timestamps needed for the latency and work-duration
// histograms. A nil *queueMetrics disables all bookkeeping.
//
// It has its own lock, independent of the queue lock: the unfinished-work
// updater reads the timestamps without touching queue state.
type queueMetrics[T comparable] struct {
	clock clock.PassiveClock
	rec   metrics.Recorder

	mu              sync.Mutex
	addTimes        map[T]time.Time
	processingTimes map[T]time.Time
}

func newQueueMetrics[T comparable](provider metrics.Provider, name string, c clock.PassiveClock) *queueMetrics[T] {
	if provider == nil {
		return nil
	}
	return &queueMetrics[T]{
		clock:           c,
		rec:             provider.ForQueue(name),
		addTimes:        map[T]time.Time{},
		processingTimes: map[T]time.Time{},
	}
}

func (m *queueMetrics[T]) add(item T) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rec.Add()
	if _, ok := m.addTimes[item]; !ok {
		m.addTimes[item] = m.clock.Now()
	}
}

func (m *queueMetrics[T]) get(item T) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rec.Get()
	m.processingTimes[item] = m.clock.Now()
	if t, ok := m.addTimes[item]; ok {
		m.rec.Latency(m.clock.Since(t))
		delete(m.addTimes, item)
	}
}

func (m *queueMetrics[T]) done(item T) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.processingTimes[item]; ok {
		m.rec.WorkDuration(m.clock.Since(t))
		delete(m.processingTimes, item)
	}
}

func (m *queueMetrics[T]) retry() {
	if m == nil {
		return
	}
	m.rec.Retry()
}

func (m *queueMetrics[T]) updateUnfinishedWork() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var total, longest time.Duration
	for _, t := range m.processingTimes {
		age := m.clock.Since(t)
		total += age
		if age > longest {
			longest = age
		}
	}
	m.rec.UnfinishedWork(total)
	m.rec.LongestRunning(longest)
}
