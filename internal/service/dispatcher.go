package service

import (
	"context"
	"errors"
	"sync"

	"github.com/miso-46/AI-minutes/internal/logger"
	"github.com/miso-46/AI-minutes/internal/metrics"
	"github.com/panjf2000/ants/v2"
)

// ErrDispatcherFull is returned when the job queue is at capacity.
var ErrDispatcherFull = errors.New("pipeline queue is full")

// ErrDispatcherClosed is returned after Shutdown.
var ErrDispatcherClosed = errors.New("pipeline dispatcher is shut down")

// JobRunner starts background work detached from the caller.
type JobRunner interface {
	Go(ctx context.Context, task func(ctx context.Context)) error
}

// Dispatcher runs pipeline jobs on a bounded ants pool. Jobs wait in a
// buffered queue so that submitting never blocks a request.
type Dispatcher struct {
	pool   *ants.Pool
	queue  chan func()
	wg     sync.WaitGroup
	feeder sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a dispatcher with workers concurrent jobs and room
// for queueSize waiting ones.
func NewDispatcher(workers, queueSize int) (*Dispatcher, error) {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = workers * 16
	}

	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p interface{}) {
		logger.Error("Pipeline job panicked: %v", p)
	}))
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		pool:  pool,
		queue: make(chan func(), queueSize),
	}
	d.feeder.Add(1)
	go d.feed()
	return d, nil
}

func (d *Dispatcher) feed() {
	defer d.feeder.Done()
	for task := range d.queue {
		if err := d.pool.Submit(task); err != nil {
			logger.Error("Failed to hand job to worker pool: %v", err)
			d.wg.Done()
		}
	}
}

// Go queues task. The task receives a context that keeps ctx's values but is
// never cancelled with it.
func (d *Dispatcher) Go(ctx context.Context, task func(ctx context.Context)) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	jobCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	wrapped := func() {
		defer d.wg.Done()
		metrics.JobStarted()
		defer metrics.JobDone()
		task(jobCtx)
	}

	select {
	case d.queue <- wrapped:
		return nil
	default:
		d.wg.Done()
		return ErrDispatcherFull
	}
}

// Shutdown stops accepting jobs and waits for queued and running ones, or
// for ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.feeder.Wait()
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.pool.Release()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
