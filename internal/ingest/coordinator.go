// Package ingest drives an artist ingestion from request to persisted record,
// reporting each stage to a progress notifier.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/justestif/artist-pulse/internal/aggregate"
	"github.com/justestif/artist-pulse/internal/metrics"
	"github.com/justestif/artist-pulse/internal/model"
	"github.com/justestif/artist-pulse/internal/progress"
)

// State is a step of the per-run state machine.
type State string

// Run states.
const (
	StateValidating  State = "VALIDATING"
	StateAggregating State = "AGGREGATING"
	StatePersisting  State = "PERSISTING"
	StateDone        State = "DONE"
	StateFailed      State = "FAILED"
)

// Defaults for the worker pool.
const (
	DefaultWorkers   = 4
	DefaultQueueSize = 100
)

// Aggregator merges provider data for a request.
type Aggregator interface {
	Aggregate(ctx context.Context, req aggregate.Request) (*model.IngestionResult, error)
}

// Persister stores an aggregated result.
type Persister interface {
	Persist(ctx context.Context, res *model.IngestionResult) (*model.PersistedArtist, error)
}

// Coordinator runs ingestions on a bounded queue served by a fixed set of workers.
type Coordinator struct {
	agg       Aggregator
	persister Persister
	notifier  progress.Notifier
	locker    Locker
	logger    *zap.Logger

	workers   int
	queueSize int
	queue     chan task
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type task struct {
	req     aggregate.Request
	release func()
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWorkers sets the number of concurrent ingestions.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithQueueSize sets how many requests may wait for a worker.
func WithQueueSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithLocker replaces the in-process locker, e.g. with a RedisLocker.
func WithLocker(l Locker) Option {
	return func(c *Coordinator) {
		c.locker = l
	}
}

// New creates a Coordinator and starts its workers.
func New(agg Aggregator, persister Persister, notifier progress.Notifier, logger *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		agg:       agg,
		persister: persister,
		notifier:  notifier,
		locker:    NewLocalLocker(),
		logger:    logger.With(zap.String("pkg", "ingest")),
		workers:   DefaultWorkers,
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.queue = make(chan task, c.queueSize)
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}
	return c
}

// Submit validates req and queues it. It returns a *ValidationError for bad
// input and ErrAlreadyRunning when the same artist is already in flight; in
// that case the caller can follow the existing run's progress.
func (c *Coordinator) Submit(ctx context.Context, req aggregate.Request) error {
	release, err := c.begin(ctx, req)
	if err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		c.abort(req, release, ErrShuttingDown)
		return ErrShuttingDown
	}

	select {
	case c.queue <- task{req: req, release: release}:
		metrics.QueueDepth.Inc()
		return nil
	default:
		c.abort(req, release, ErrQueueFull)
		return ErrQueueFull
	}
}

// Run performs an ingestion synchronously on the caller's goroutine.
// Canceling ctx does not stop a run that has started.
func (c *Coordinator) Run(ctx context.Context, req aggregate.Request) (*model.PersistedArtist, error) {
	release, err := c.begin(ctx, req)
	if err != nil {
		return nil, err
	}
	defer release()
	return c.execute(ctx, req)
}

// BatchResult reports what SubmitBatch did with each request.
type BatchResult struct {
	Accepted []string        `json:"accepted"`
	Rejected []BatchRejected `json:"rejected"`
}

// BatchRejected describes one request SubmitBatch did not queue.
type BatchRejected struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// SubmitBatch submits every request. Requests joining a run already in
// flight count as accepted.
func (c *Coordinator) SubmitBatch(ctx context.Context, reqs []aggregate.Request) BatchResult {
	res := BatchResult{Accepted: []string{}, Rejected: []BatchRejected{}}
	for i, req := range reqs {
		err := c.Submit(ctx, req)
		if err == nil || errors.Is(err, ErrAlreadyRunning) {
			res.Accepted = append(res.Accepted, req.ID())
			continue
		}
		res.Rejected = append(res.Rejected, BatchRejected{Index: i, Error: UserMessage(err)})
	}
	return res
}

// Shutdown stops accepting work and waits for queued runs to finish.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for workers: %w", ctx.Err())
	}
}

// begin validates req, takes the artist lock and announces INIT.
func (c *Coordinator) begin(ctx context.Context, req aggregate.Request) (func(), error) {
	id := req.ID()
	c.transition(id, StateValidating)
	ctx = context.WithoutCancel(ctx)

	if err := Validate(req); err != nil {
		metrics.IngestionsTotal.WithLabelValues("invalid").Inc()
		// Report on the channel only if no run owns it.
		if id != "" {
			if release, lerr := c.locker.Acquire(ctx, id); lerr == nil {
				c.reset(ctx, id)
				c.fail(ctx, id, err)
				release()
			}
		}
		return nil, err
	}

	release, err := c.locker.Acquire(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			c.logger.Info("joining ingestion already in flight", zap.String("id", id))
		}
		return nil, err
	}

	c.reset(ctx, id)
	c.publish(ctx, progress.Update{
		CorrelationID: id,
		Stage:         progress.StageInit,
		Message:       "Starting ingestion",
		Details:       req.Name,
	})
	return release, nil
}

// abort fails a run that never reached a worker.
func (c *Coordinator) abort(req aggregate.Request, release func(), err error) {
	defer release()
	c.fail(context.Background(), req.ID(), err)
	metrics.IngestionsTotal.WithLabelValues("rejected").Inc()
}

func (c *Coordinator) worker(n int) {
	defer c.wg.Done()
	logger := c.logger.With(zap.Int("worker", n))

	for t := range c.queue {
		metrics.QueueDepth.Dec()
		c.runTask(logger, t)
	}
}

// runTask executes one queued request, containing any panic to the run.
func (c *Coordinator) runTask(logger *zap.Logger, t task) {
	defer t.release()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("ingestion panicked",
				zap.String("id", t.req.ID()),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			c.fail(context.Background(), t.req.ID(), fmt.Errorf("panic: %v", r))
			metrics.IngestionsTotal.WithLabelValues("failed").Inc()
		}
	}()

	if _, err := c.execute(context.Background(), t.req); err != nil {
		logger.Debug("ingestion finished with error", zap.String("id", t.req.ID()), zap.Error(err))
	}
}

// execute moves a validated, locked request through aggregation and persistence.
func (c *Coordinator) execute(ctx context.Context, req aggregate.Request) (*model.PersistedArtist, error) {
	// Clients going away must not leave persistence half done.
	ctx = context.WithoutCancel(ctx)
	id := req.ID()
	start := time.Now()
	defer func() {
		metrics.IngestionDuration.Observe(time.Since(start).Seconds())
	}()

	c.transition(id, StateAggregating)
	res, err := c.agg.Aggregate(ctx, req)
	if err != nil {
		c.fail(ctx, id, err)
		metrics.IngestionsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	c.transition(id, StatePersisting)
	c.publish(ctx, progress.Update{
		CorrelationID: id,
		Stage:         progress.StageStore,
		Message:       "Saving artist data",
		Progress:      75,
	})

	persisted, err := c.persister.Persist(ctx, res)
	if err != nil {
		c.fail(ctx, id, err)
		metrics.IngestionsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	c.transition(id, StateDone)
	c.publish(ctx, progress.Update{
		CorrelationID: id,
		Stage:         progress.StageComplete,
		Message:       "Artist data ingested",
		Details:       persisted.Slug,
		Progress:      100,
		Payload:       map[string]any{"data": persisted},
	})
	metrics.IngestionsTotal.WithLabelValues("done").Inc()
	c.logger.Info("ingestion complete",
		zap.String("id", id),
		zap.String("slug", persisted.Slug),
		zap.Duration("took", time.Since(start)),
	)
	return persisted, nil
}

func (c *Coordinator) fail(ctx context.Context, id string, err error) {
	c.transition(id, StateFailed)
	c.logger.Error("ingestion failed", zap.String("id", id), zap.Error(err))
	c.publish(ctx, progress.Update{
		CorrelationID: id,
		Stage:         progress.StageError,
		Message:       "Ingestion failed",
		Details:       UserMessage(err),
		Progress:      100,
	})
}

// reset clears a terminal snapshot a previous run may have left behind.
func (c *Coordinator) reset(ctx context.Context, id string) {
	if err := c.notifier.Reset(ctx, id); err != nil {
		c.logger.Warn("resetting progress", zap.String("id", id), zap.Error(err))
	}
}

func (c *Coordinator) publish(ctx context.Context, u progress.Update) {
	if err := c.notifier.Publish(ctx, u); err != nil {
		c.logger.Warn("publishing progress",
			zap.String("id", u.CorrelationID),
			zap.String("stage", string(u.Stage)),
			zap.Error(err),
		)
	}
}

func (c *Coordinator) transition(id string, s State) {
	c.logger.Debug("state", zap.String("id", id), zap.String("state", string(s)))
}
