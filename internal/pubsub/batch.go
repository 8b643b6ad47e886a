package pubsub

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/nfrund/serialbus/internal/executor"
)

// SubscriberError reports which subscriber of a topic failed.
type SubscriberError struct {
	Topic    string
	Position int // index in registration order
	Err      error
}

func (e *SubscriberError) Error() string {
	return fmt.Sprintf("pubsub: topic %s subscriber %d: %v", e.Topic, e.Position, e.Err)
}

func (e *SubscriberError) Unwrap() error {
	return e.Err
}

// partition splits items into consecutive groups of at most size, keeping
// order. The last group may be shorter.
func partition[S any](items []S, size int) [][]S {
	if size < 1 {
		size = 1
	}
	groups := make([][]S, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		groups = append(groups, items[start:end:end])
	}
	return groups
}

// job builds the executor task for one group. offset is the position of the
// group's first subscriber in the snapshot.
func (t *Topic[T]) job(subs []Subscriber[T], value T, index, total, offset int) executor.Task {
	return func(ctx context.Context) error {
		id := uuid.NewString()
		ctx, span := t.startJobSpan(ctx, id, index, total, len(subs))
		defer span.End()

		var err error
		for i, sub := range subs {
			if subErr := invoke(ctx, sub, value); subErr != nil {
				t.logger.Warn("Subscriber failed",
					"topic", t.label(),
					"job_id", id,
					"position", offset+i,
					"error", subErr,
				)
				err = multierr.Append(err, &SubscriberError{
					Topic:    t.label(),
					Position: offset + i,
					Err:      subErr,
				})
			}
		}

		recordJobResult(span, err)
		return err
	}
}

func invoke[T any](ctx context.Context, sub Subscriber[T], value T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSubscriberPanic, r)
		}
	}()
	return sub(ctx, value)
}
