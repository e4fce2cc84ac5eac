// Package metrics defines the observability surface of the work queues.
// A Provider hands out one Recorder per named queue; the queues call the
// Recorder on every state transition. The OTel-backed provider exports the
// signals through OpenTelemetry; NoopProvider discards everything.
package metrics

import "time"

// Provider creates Recorders for named queues.
type Provider interface {
	// ForQueue returns the Recorder for the queue with the given name.
	ForQueue(name string) Recorder
}

// Recorder receives queue state transitions. Implementations must be safe
// for concurrent use; calls happen on the queues' hot paths.
type Recorder interface {
	// Add is called when an item is accepted into the queue.
	Add()
	// Get is called when an item is handed to a consumer.
	Get()
	// Latency records how long an item waited between Add and Get.
	Latency(d time.Duration)
	// WorkDuration records how long a consumer held an item between Get
	// and Done.
	WorkDuration(d time.Duration)
	// Retry is called when an item is scheduled for delayed delivery.
	Retry()
	// UnfinishedWork reports the summed age of all items currently being
	// processed.
	UnfinishedWork(d time.Duration)
	// LongestRunning reports the age of the oldest item currently being
	// processed.
	LongestRunning(d time.Duration)
}

// NoopProvider discards every signal.
type NoopProvider struct{}

// ForQueue returns a Recorder that does nothing.
func (NoopProvider) ForQueue(string) Recorder { return noopRecorder{} }

type noopRecorder struct{}

func (noopRecorder) Add() {}

func (noopRecorder) Get() {}

func (noopRecorder) Latency(time.Duration) {}

func (noopRecorder) WorkDuration(time.Duration) {}

func (noopRecorder) Retry() {}

func (noopRecorder) UnfinishedWork(time.Duration) {}

func (noopRecorder) LongestRunning(time.Duration) {}
