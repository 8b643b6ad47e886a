// Package executor provides a strictly serial task queue. Tasks run one at a
// time, in the order they were submitted, on a single worker goroutine.
//
// The executor has no notion of priority: it is a plain FIFO. Submitting never
// blocks on in-flight work, so a running task may submit more tasks; they are
// queued behind it.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrClosed settles submissions made after Close.
	ErrClosed = errors.New("executor: closed")
	// ErrTaskPanic wraps the value recovered from a panicking task.
	ErrTaskPanic = errors.New("executor: task panicked")
)

// Task is one unit of work. The context carries the submitter's values but is
// never cancelled by the executor.
type Task func(ctx context.Context) error

type entry struct {
	ctx        context.Context
	task       Task
	completion *Completion
}

// Stats is a point-in-time view of the executor.
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Pending   int    `json:"pending"`
	Running   bool   `json:"running"`
}

// Executor is a single-consumer FIFO. The zero value is not usable; call New.
type Executor struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []entry
	running bool
	closed  bool

	stopped chan struct{}

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64

	logger  *slog.Logger
	metrics *Metrics
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger used for task failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics reports queue depth, throughput and task durations into m.
func WithMetrics(m *Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// New creates an Executor and starts its worker.
func New(opts ...Option) *Executor {
	e := &Executor{
		stopped: make(chan struct{}),
		logger:  slog.Default(),
	}
	e.cond = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}

	go e.run()
	return e
}

// Submit appends task to the queue and returns its Completion. If Submit(A)
// returns before Submit(B) is called, A finishes before B starts. Concurrent
// submitters are serialized in the order they acquire the queue lock.
func (e *Executor) Submit(ctx context.Context, task Task) *Completion {
	if ctx == nil {
		ctx = context.Background()
	}
	c := newCompletion()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		c.resolve(ErrClosed)
		return c
	}
	e.queue = append(e.queue, entry{
		ctx:        context.WithoutCancel(ctx),
		task:       task,
		completion: c,
	})
	e.submitted.Add(1)
	e.metrics.observeSubmit(len(e.queue))
	e.cond.Signal()
	e.mu.Unlock()

	return c
}

// Stats reports counters and the current queue length.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	pending, running := len(e.queue), e.running
	e.mu.Unlock()

	return Stats{
		Submitted: e.submitted.Load(),
		Completed: e.completed.Load(),
		Failed:    e.failed.Load(),
		Pending:   pending,
		Running:   running,
	}
}

// Close stops accepting work, lets the worker drain what is already queued
// and waits for it to exit. If ctx ends first the drain continues in the
// background and ctx's error is returned.
func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()

	select {
	case <-e.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) run() {
	defer close(e.stopped)

	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		next := e.queue[0]
		e.queue[0] = entry{}
		e.queue = e.queue[1:]
		e.running = true
		e.metrics.observeStart(len(e.queue))
		e.mu.Unlock()

		e.execute(next)

		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}
}

func (e *Executor) execute(item entry) {
	start := time.Now()
	err := e.call(item)
	elapsed := time.Since(start)

	e.completed.Add(1)
	if err != nil {
		e.failed.Add(1)
		e.logger.Debug("Task failed", "duration", elapsed, "error", err)
	}
	e.metrics.observeDone(elapsed, err)
	item.completion.resolve(err)
}

func (e *Executor) call(item entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
			e.logger.Error("Recovered panic in task", "panic", r)
		}
	}()
	return item.task(item.ctx)
}
