// Package worker runs a fixed-size pool of consumer goroutines against a
// rate-limited work queue, with panic isolation and retry handling. It is
// the control-loop consumer shape the queues are designed for.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/workq"
)

// Handler processes one item. Returning an error schedules the item for a
// rate-limited retry; returning nil clears its retry history.
type Handler[T comparable] func(ctx context.Context, item T) error

// Queue is the retrying queue surface the pool consumes. Satisfied by
// *workq.RateLimitingQueue.
type Queue[T comparable] interface {
	Get() (item T, shutdown bool)
	Done(item T)
	AddRateLimited(item T)
	Forget(item T)
	NumRequeues(item T) int
	ShutDown()
}

// Pool manages a set of concurrent worker goroutines that pull items from
// a queue and run them through the handler.
type Pool[T comparable] struct {
	queue       Queue[T]
	handler     Handler[T]
	concurrency int
	maxRetries  int
	logger      *slog.Logger

	mu      sync.Mutex
	running bool
}

// PoolOption configures a Pool.
type PoolOption func(p *poolConfig)

type poolConfig struct {
	concurrency int
	maxRetries  int
	logger      *slog.Logger
}

// WithConcurrency sets the number of concurrent worker goroutines.
func WithConcurrency(n int) PoolOption {
	return func(p *poolConfig) { p.concurrency = n }
}

// WithMaxRetries drops an item after it has been rate-limited n times
// without a successful handle. Zero retries forever.
func WithMaxRetries(n int) PoolOption {
	return func(p *poolConfig) { p.maxRetries = n }
}

// WithLogger sets the structured logger for the pool.
func WithLogger(l *slog.Logger) PoolOption {
	return func(p *poolConfig) { p.logger = l }
}

// NewPool creates a worker pool over the given queue and handler.
func NewPool[T comparable](q Queue[T], h Handler[T], opts ...PoolOption) (*Pool[T], error) {
	if h == nil {
		return nil, workq.ErrNilHandler
	}

	cfg := poolConfig{
		concurrency: 4,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Pool[T]{
		queue:       q,
		handler:     h,
		concurrency: cfg.concurrency,
		maxRetries:  cfg.maxRetries,
		logger:      cfg.logger,
	}, nil
}

// Run starts the workers and blocks until the queue shuts down.
// Cancelling ctx shuts the queue down, which drains the workers.
func (p *Pool[T]) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return workq.ErrPoolRunning
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	p.logger.Info("worker pool starting", slog.Int("concurrency", p.concurrency))

	stop := context.AfterFunc(ctx, p.queue.ShutDown)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.concurrency; i++ {
		g.Go(func() error {
			for p.processNext(ctx) {
			}
			return nil
		})
	}
	err := g.Wait()

	p.logger.Info("worker pool stopped")
	return err
}

// processNext handles one item. Returns false once the queue reports
// shutdown.
func (p *Pool[T]) processNext(ctx context.Context) bool {
	item, shutdown := p.queue.Get()
	if shutdown {
		return false
	}
	defer p.queue.Done(item)

	err := p.handle(ctx, item)
	switch {
	case err == nil:
		p.queue.Forget(item)

	case p.maxRetries > 0 && p.queue.NumRequeues(item) >= p.maxRetries:
		p.logger.Error("dropping item, retries exhausted",
			slog.Any("item", item),
			slog.Int("retries", p.queue.NumRequeues(item)),
			slog.String("error", err.Error()),
		)
		p.queue.Forget(item)

	default:
		p.queue.AddRateLimited(item)
	}
	return true
}

// handle invokes the handler, converting a panic into an error so one bad
// item cannot take down a worker goroutine or poison the queue.
func (p *Pool[T]) handle(ctx context.Context, item T) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("handler panicked",
				slog.Any("item", item),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			retErr = fmt.Errorf("panic handling item: %v", r)
		}
	}()
	return p.handler(ctx, item)
}
