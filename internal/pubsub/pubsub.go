// Package pubsub implements typed topics whose subscribers all run on one
// shared serial executor.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nfrund/serialbus/internal/topicmgr"
)

// DefaultBatchSize is the number of subscribers a batched topic runs per job.
const DefaultBatchSize = 20

// ErrSubscriberPanic wraps the value recovered from a panicking subscriber.
var ErrSubscriberPanic = errors.New("pubsub: subscriber panicked")

// Priority selects how a publish is chopped into executor jobs. It does not
// move work ahead of anything already queued on the executor.
type Priority int

const (
	// Immediate runs every subscriber of a publish in a single job.
	Immediate Priority = iota
	// Batched runs subscribers in groups, one job per group, submitting the
	// next group only after the previous one has finished.
	Batched
)

// String returns the priority's catalogue name.
func (p Priority) String() string {
	switch p {
	case Immediate:
		return topicmgr.PriorityImmediate
	case Batched:
		return topicmgr.PriorityBatched
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority accepts "immediate"/"high" and "batched"/"low".
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case topicmgr.PriorityImmediate, "high":
		return Immediate, nil
	case topicmgr.PriorityBatched, "low":
		return Batched, nil
	default:
		return 0, fmt.Errorf("pubsub: unknown priority %q", s)
	}
}

// Subscriber handles one published value. Subscribers of a job run one after
// another; each call returns before the next one starts.
type Subscriber[T any] func(ctx context.Context, value T) error

// Func adapts a callback that cannot fail.
func Func[T any](fn func(T)) Subscriber[T] {
	return func(_ context.Context, value T) error {
		fn(value)
		return nil
	}
}
