package pubsub

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/nfrund/serialbus/internal/executor"
	"github.com/nfrund/serialbus/internal/topicmgr"
)

// Topic broadcasts values of type T to its subscribers through a shared
// executor. Subscribers are kept in registration order and never removed;
// registering the same function twice yields two entries.
type Topic[T any] struct {
	name      string
	priority  Priority
	batchSize int

	exec    *executor.Executor
	manager *topicmgr.Manager
	tracer  trace.Tracer
	logger  *slog.Logger

	mu   sync.RWMutex
	subs []Subscriber[T]
}

// Name returns the topic's catalogue name, empty for anonymous topics.
func (t *Topic[T]) Name() string {
	return t.name
}

// Priority returns the chunking mode fixed at creation.
func (t *Topic[T]) Priority() Priority {
	return t.priority
}

// BatchSize returns the group size used when the topic is Batched.
func (t *Topic[T]) BatchSize() int {
	return t.batchSize
}

// Len returns the number of registered subscribers.
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// Subscribe appends fn. It is visible to every Publish that starts after
// Subscribe returns.
func (t *Topic[T]) Subscribe(fn Subscriber[T]) {
	t.mu.Lock()
	t.subs = append(t.subs, fn)
	t.mu.Unlock()

	if t.manager != nil && t.name != "" {
		t.manager.RecordSubscribe(t.name)
	}
}

// Publish delivers value to a snapshot of the current subscribers and returns
// a Completion that settles once every job of this publish has run.
//
// An Immediate topic submits one job. A Batched topic submits its first group
// before Publish returns and each following group only after the previous
// group's job has finished, so unrelated work may be queued in between.
//
// Cancelling ctx does not stop delivery; its values reach the subscribers.
func (t *Topic[T]) Publish(ctx context.Context, value T) *executor.Completion {
	if ctx == nil {
		ctx = context.Background()
	}
	subs := t.snapshot()

	if t.manager != nil && t.name != "" {
		t.manager.RecordPublish(t.name)
	}
	if len(subs) == 0 {
		return executor.Resolved(nil)
	}

	if t.priority != Batched {
		t.logger.Debug("Publishing", "topic", t.label(), "subscribers", len(subs), "jobs", 1)
		return t.exec.Submit(ctx, t.job(subs, value, 0, 1, 0))
	}

	groups := partition(subs, t.batchSize)
	t.logger.Debug("Publishing", "topic", t.label(), "subscribers", len(subs), "jobs", len(groups))

	first := t.exec.Submit(ctx, t.job(groups[0], value, 0, len(groups), 0))
	if len(groups) == 1 {
		return first
	}

	return executor.Async(func() error {
		<-first.Done()
		err := first.Err()
		for i := 1; i < len(groups); i++ {
			next := t.exec.Submit(ctx, t.job(groups[i], value, i, len(groups), i*t.batchSize))
			<-next.Done()
			err = multierr.Append(err, next.Err())
		}
		return err
	})
}

func (t *Topic[T]) snapshot() []Subscriber[T] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.subs)
}

func (t *Topic[T]) label() string {
	if t.name == "" {
		return "anonymous"
	}
	return t.name
}
