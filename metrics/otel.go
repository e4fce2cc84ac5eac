package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for workq metrics.
const meterName = "github.com/xraph/workq"

// Compile-time interface checks.
var (
	_ Provider = (*OTelProvider)(nil)
	_ Provider = NoopProvider{}
)

// OTelProvider exports queue signals through OpenTelemetry.
//
// Instruments (each carrying a queue=<name> attribute):
//   - workq.queue.depth (Int64UpDownCounter): items awaiting a consumer
//   - workq.queue.adds (Int64Counter): total items accepted
//   - workq.queue.retries (Int64Counter): total delayed deliveries
//   - workq.queue.latency (Float64Histogram): Add-to-Get wait in seconds
//   - workq.queue.work_duration (Float64Histogram): Get-to-Done time in
//     seconds
//   - workq.queue.unfinished_work (Float64Gauge): summed age of in-flight
//     items in seconds
//   - workq.queue.longest_running_processor (Float64Gauge): age of the
//     oldest in-flight item in seconds
type OTelProvider struct {
	meter metric.Meter
}

// NewOTelProvider uses the global MeterProvider. If none is configured,
// noop instruments are used and recording becomes a pass-through.
func NewOTelProvider() *OTelProvider {
	return NewOTelProviderWithMeter(otel.Meter(meterName))
}

// NewOTelProviderWithMeter allows injecting a specific meter for testing.
func NewOTelProviderWithMeter(meter metric.Meter) *OTelProvider {
	return &OTelProvider{meter: meter}
}

// ForQueue creates the instrument set for one queue.
func (p *OTelProvider) ForQueue(name string) Recorder {
	// Instrument creation errors leave noop instruments behind, so the
	// recorder degrades gracefully per the OTel API contract.
	depth, _ := p.meter.Int64UpDownCounter("workq.queue.depth",
		metric.WithDescription("Number of items waiting for a consumer"),
		metric.WithUnit("{item}"),
	)
	adds, _ := p.meter.Int64Counter("workq.queue.adds",
		metric.WithDescription("Total number of items accepted by the queue"),
		metric.WithUnit("{item}"),
	)
	retries, _ := p.meter.Int64Counter("workq.queue.retries",
		metric.WithDescription("Total number of delayed deliveries scheduled"),
		metric.WithUnit("{item}"),
	)
	latency, _ := p.meter.Float64Histogram("workq.queue.latency",
		metric.WithDescription("Time an item waited in the queue before a consumer picked it up"),
		metric.WithUnit("s"),
	)
	work, _ := p.meter.Float64Histogram("workq.queue.work_duration",
		metric.WithDescription("Time a consumer spent processing an item"),
		metric.WithUnit("s"),
	)
	unfinished, _ := p.meter.Float64Gauge("workq.queue.unfinished_work",
		metric.WithDescription("Summed age of all items currently being processed"),
		metric.WithUnit("s"),
	)
	longest, _ := p.meter.Float64Gauge("workq.queue.longest_running_processor",
		metric.WithDescription("Age of the oldest item currently being processed"),
		metric.WithUnit("s"),
	)

	return &otelRecorder{
		depth:      depth,
		adds:       adds,
		retries:    retries,
		latency:    latency,
		work:       work,
		unfinished: unfinished,
		longest:    longest,
		attrs:      metric.WithAttributes(attribute.String("queue", name)),
	}
}

type otelRecorder struct {
	depth      metric.Int64UpDownCounter
	adds       metric.Int64Counter
	retries    metric.Int64Counter
	latency    metric.Float64Histogram
	work       metric.Float64Histogram
	unfinished metric.Float64Gauge
	longest    metric.Float64Gauge
	attrs      metric.MeasurementOption
}

func (r *otelRecorder) Add() {
	ctx := context.Background()
	r.adds.Add(ctx, 1, r.attrs)
	r.depth.Add(ctx, 1, r.attrs)
}

func (r *otelRecorder) Get() {
	r.depth.Add(context.Background(), -1, r.attrs)
}

func (r *otelRecorder) Latency(d time.Duration) {
	r.latency.Record(context.Background(), d.Seconds(), r.attrs)
}

func (r *otelRecorder) WorkDuration(d time.Duration) {
	r.work.Record(context.Background(), d.Seconds(), r.attrs)
}

func (r *otelRecorder) Retry() {
	r.retries.Add(context.Background(), 1, r.attrs)
}

func (r *otelRecorder) UnfinishedWork(d time.Duration) {
	r.unfinished.Record(context.Background(), d.Seconds(), r.attrs)
}

func (r *otelRecorder) LongestRunning(d time.Duration) {
	r.longest.Record(context.Background(), d.Seconds(), r.attrs)
}
