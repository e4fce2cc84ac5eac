package workq

import (
	"time"

	"k8s.io/utils/clock"

	"github.com/xraph/workq/metrics"
)

// Option configures a queue.
type Option func(*options)

type options struct {
	name         string
	clock        clock.WithTicker
	provider     metrics.Provider
	updatePeriod time.Duration
}

func defaultOptions() options {
	return options{
		clock:        clock.RealClock{},
		updatePeriod: 500 * time.Millisecond,
	}
}

// WithName sets the queue name reported to the metrics provider.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithClock injects the clock used for delays, timers and latency
// measurement. Tests inject a fake clock to control time.
func WithClock(c clock.WithTicker) Option {
	return func(o *options) { o.clock = c }
}

// WithMetricsProvider attaches a metrics provider to the queue. Without
// one, no signals are recorded and no bookkeeping is kept.
func WithMetricsProvider(p metrics.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithMetricsUpdatePeriod sets how often the unfinished-work gauges are
// recomputed while items are being processed.
func WithMetricsUpdatePeriod(d time.Duration) Option {
	return func(o *options) { o.updatePeriod = d }
}
