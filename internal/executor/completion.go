package executor

import (
	"context"
	"sync"
)

// Completion is the settle-once handle returned for every submitted task.
// It is safe to wait on from any number of goroutines.
type Completion struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Resolved returns a Completion that is already settled with err.
func Resolved(err error) *Completion {
	c := newCompletion()
	c.resolve(err)
	return c
}

// Async runs fn on its own goroutine and settles the returned Completion
// with fn's result. It is how multi-step work (a batched publish) exposes
// a single handle to its caller.
func Async(fn func() error) *Completion {
	c := newCompletion()
	go func() {
		c.resolve(fn())
	}()
	return c
}

func (c *Completion) resolve(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// Done is closed once the task has finished.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Err returns the task's error. It is nil until Done is closed.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the task settles or ctx is done. Giving up on the wait
// does not cancel the task.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
