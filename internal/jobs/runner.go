// Package jobs runs background work enqueued by the route layer, decoupled
// from the request/response lifecycle. One worker drains the queue, so two
// triggered ingestion runs execute in order instead of racing.
package jobs

import (
	"context"
	"errors"
	"log"
	"sync"
)

// ErrQueueFull is returned when the queue cannot take another job.
var ErrQueueFull = errors.New("job queue is full")

// ErrStopped is returned when the runner is shutting down.
var ErrStopped = errors.New("job runner stopped")

type job struct {
	name string
	run  func(ctx context.Context)
}

// Runner is a bounded single-worker job queue with the usual
// Start/Stop lifecycle.
type Runner struct {
	logger *log.Logger
	queue  chan job
	done   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

func NewRunner(logger *log.Logger, queueSize int) *Runner {
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Runner{
		logger: logger,
		queue:  make(chan job, queueSize),
		done:   make(chan struct{}),
	}
}

func (r *Runner) Start() {
	r.wg.Add(1)
	go r.loop()
}

// Stop prevents new work and waits for the in-flight job to finish.
// Queued jobs that have not started are dropped.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.done)
	r.wg.Wait()
}

// Enqueue schedules fn to run on the worker. It never blocks; a full queue
// is an error the caller reports back.
func (r *Runner) Enqueue(name string, fn func(ctx context.Context)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrStopped
	}
	select {
	case r.queue <- job{name: name, run: fn}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (r *Runner) loop() {
	defer r.wg.Done()
	for {
		select {
		case j := <-r.queue:
			r.logger.Printf("Job %q started", j.name)
			j.run(context.Background())
			r.logger.Printf("Job %q finished", j.name)
		case <-r.done:
			return
		}
	}
}
