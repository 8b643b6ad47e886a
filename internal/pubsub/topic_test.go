package pubsub_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/nfrund/serialbus/internal/executor"
	"github.com/nfrund/serialbus/internal/pubsub"
	"github.com/nfrund/serialbus/internal/topicmgr"
)

func newFactory(t *testing.T, opts ...pubsub.FactoryOption) *pubsub.Factory {
	t.Helper()
	exec := executor.New()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, exec.Close(ctx))
	})
	return pubsub.NewFactory(exec, opts...)
}

func waitFor(t *testing.T, c *executor.Completion) error {
	t.Helper()
	select {
	case <-c.Done():
		return c.Err()
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for publish")
		return nil
	}
}

// recorder collects subscriber calls in the order they happen and tracks
// how many run at once.
type recorder struct {
	mu        sync.Mutex
	calls     []string
	active    atomic.Int32
	maxActive atomic.Int32
}

func (r *recorder) subscriber(label string) pubsub.Subscriber[string] {
	return func(ctx context.Context, value string) error {
		n := r.active.Add(1)
		for {
			m := r.maxActive.Load()
			if n <= m || r.maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		r.mu.Lock()
		r.calls = append(r.calls, label)
		r.mu.Unlock()
		r.active.Add(-1)
		return nil
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func labels(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return out
}

func TestImmediatePublishIsOneJob(t *testing.T) {
	f := newFactory(t)
	topic := pubsub.MustNewTopic[string](f, pubsub.Immediate)

	rec := &recorder{}
	for _, l := range labels("s", 50) {
		topic.Subscribe(rec.subscriber(l))
	}

	require.NoError(t, waitFor(t, topic.Publish(context.Background(), "v")))
	assert.Equal(t, uint64(1), f.Executor().Stats().Submitted)
	assert.Equal(t, labels("s", 50), rec.snapshot())
}

func TestBatchedPublishSplitsIntoGroups(t *testing.T) {
	for _, n := range []int{1, 19, 20, 21, 40, 45, 100} {
		t.Run(fmt.Sprintf("%d subscribers", n), func(t *testing.T) {
			f := newFactory(t)
			topic := pubsub.MustNewTopic[string](f, pubsub.Batched)

			rec := &recorder{}
			for _, l := range labels("b", n) {
				topic.Subscribe(rec.subscriber(l))
			}

			require.NoError(t, waitFor(t, topic.Publish(context.Background(), "v")))
			want := (n + pubsub.DefaultBatchSize - 1) / pubsub.DefaultBatchSize
			assert.Equal(t, uint64(want), f.Executor().Stats().Submitted)
			assert.Equal(t, labels("b", n), rec.snapshot())
			assert.Equal(t, int32(1), rec.maxActive.Load())
		})
	}
}

func TestBatchedGroupsAreSubmittedOneAtATime(t *testing.T) {
	f := newFactory(t)
	topic := pubsub.MustNewTopic[string](f, pubsub.Batched, pubsub.WithBatchSize(2))

	var pendingSeen []int
	for i := 0; i < 6; i++ {
		topic.Subscribe(func(ctx context.Context, v string) error {
			pendingSeen = append(pendingSeen, f.Executor().Stats().Pending)
			return nil
		})
	}

	require.NoError(t, waitFor(t, topic.Publish(context.Background(), "v")))
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0}, pendingSeen, "no later group queued while one runs")
	assert.Equal(t, uint64(3), f.Executor().Stats().Submitted)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	f := newFactory(t)
	for _, p := range []pubsub.Priority{pubsub.Immediate, pubsub.Batched} {
		topic := pubsub.MustNewTopic[int](f, p)
		c := topic.Publish(context.Background(), 1)
		select {
		case <-c.Done():
		default:
			t.Fatalf("%s publish with no subscribers should settle immediately", p)
		}
		assert.NoError(t, c.Err())
	}
	assert.Equal(t, uint64(0), f.Executor().Stats().Submitted)
}

func TestSubscribeAfterSnapshotIsNotDelivered(t *testing.T) {
	f := newFactory(t)
	topic := pubsub.MustNewTopic[string](f, pubsub.Immediate)

	started := make(chan struct{})
	release := make(chan struct{})
	topic.Subscribe(func(ctx context.Context, v string) error {
		if v == "first" {
			close(started)
			<-release
		}
		return nil
	})

	var late atomic.Int32
	first := topic.Publish(context.Background(), "first")
	<-started
	topic.Subscribe(func(ctx context.Context, v string) error {
		late.Add(1)
		return nil
	})
	close(release)

	require.NoError(t, waitFor(t, first))
	assert.Equal(t, int32(0), late.Load())

	require.NoError(t, waitFor(t, topic.Publish(context.Background(), "second")))
	assert.Equal(t, int32(1), late.Load())
}

func TestDuplicateSubscribersAreKept(t *testing.T) {
	f := newFactory(t)
	topic := pubsub.MustNewTopic[int](f, pubsub.Immediate)

	var calls atomic.Int32
	fn := pubsub.Func(func(int) { calls.Add(1) })
	topic.Subscribe(fn)
	topic.Subscribe(fn)

	require.NoError(t, waitFor(t, topic.Publish(context.Background(), 1)))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, topic.Len())
}

func TestTopicsSharingAnExecutorNeverOverlap(t *testing.T) {
	f := newFactory(t)
	a := pubsub.MustNewTopic[string](f, pubsub.Immediate)
	b := pubsub.MustNewTopic[string](f, pubsub.Batched)

	rec := &recorder{}
	for _, l := range labels("a", 30) {
		a.Subscribe(rec.subscriber(l))
	}
	for _, l := range labels("b", 70) {
		b.Subscribe(rec.subscriber(l))
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- waitFor(t, a.Publish(context.Background(), "a"))
		}()
		go func() {
			defer wg.Done()
			errs <- waitFor(t, b.Publish(context.Background(), "b"))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), rec.maxActive.Load())
	assert.Len(t, rec.snapshot(), 10*30+10*70)
}

func TestImmediateJobRunsBetweenBatches(t *testing.T) {
	f := newFactory(t)
	a := pubsub.MustNewTopic[string](f, pubsub.Immediate)
	b := pubsub.MustNewTopic[string](f, pubsub.Batched)

	rec := &recorder{}
	for _, l := range labels("a", 3) {
		a.Subscribe(rec.subscriber(l))
	}

	aPublished := make(chan struct{})
	bLabels := labels("b", 45)
	b.Subscribe(func(ctx context.Context, v string) error {
		<-aPublished
		return rec.subscriber(bLabels[0])(ctx, v)
	})
	for _, l := range bLabels[1:] {
		b.Subscribe(rec.subscriber(l))
	}

	bDone := b.Publish(context.Background(), "b")
	aDone := a.Publish(context.Background(), "a")
	close(aPublished)

	require.NoError(t, waitFor(t, aDone))
	require.NoError(t, waitFor(t, bDone))

	var want []string
	want = append(want, bLabels[:20]...)
	want = append(want, labels("a", 3)...)
	want = append(want, bLabels[20:]...)
	assert.Equal(t, want, rec.snapshot())
}

func TestSubscriberFailure(t *testing.T) {
	f := newFactory(t)
	topic := pubsub.MustNewTopic[string](f, pubsub.Batched, pubsub.WithName("orders.failing"), pubsub.WithBatchSize(3))

	boom := errors.New("boom")
	var calls atomic.Int32
	for i := 0; i < 7; i++ {
		topic.Subscribe(func(ctx context.Context, v string) error {
			calls.Add(1)
			if i == 1 {
				return boom
			}
			if i == 4 {
				panic("bad subscriber")
			}
			return nil
		})
	}

	err := waitFor(t, topic.Publish(context.Background(), "v"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, pubsub.ErrSubscriberPanic)
	assert.Equal(t, int32(7), calls.Load(), "remaining subscribers and groups still run")

	var subErr *pubsub.SubscriberError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "orders.failing", subErr.Topic)
	assert.Equal(t, 1, subErr.Position)

	stats := f.Executor().Stats()
	assert.Equal(t, uint64(3), stats.Submitted)
	assert.Equal(t, uint64(2), stats.Failed)

	ran := false
	next := f.Executor().Submit(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, waitFor(t, next))
	assert.True(t, ran)
}

func TestReentrantPublish(t *testing.T) {
	f := newFactory(t)
	a := pubsub.MustNewTopic[string](f, pubsub.Immediate)
	b := pubsub.MustNewTopic[string](f, pubsub.Immediate)

	var order []string
	inner := make(chan *executor.Completion, 1)
	a.Subscribe(func(ctx context.Context, v string) error {
		order = append(order, "a")
		inner <- b.Publish(ctx, "from-a")
		order = append(order, "a-done")
		return nil
	})
	b.Subscribe(func(ctx context.Context, v string) error {
		order = append(order, "b:"+v)
		return nil
	})

	require.NoError(t, waitFor(t, a.Publish(context.Background(), "x")))
	require.NoError(t, waitFor(t, <-inner))
	assert.Equal(t, []string{"a", "a-done", "b:from-a"}, order)
}

func TestContextReachesSubscribers(t *testing.T) {
	f := newFactory(t)
	topic := pubsub.MustNewTopic[string](f, pubsub.Batched)

	type key struct{}
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "trace-me"))
	cancel()

	var got []any
	for i := 0; i < 25; i++ {
		topic.Subscribe(func(ctx context.Context, v string) error {
			got = append(got, ctx.Value(key{}))
			return ctx.Err()
		})
	}

	require.NoError(t, waitFor(t, topic.Publish(ctx, "v")), "cancellation is not observed")
	require.Len(t, got, 25)
	assert.Equal(t, "trace-me", got[24])
}

func TestNewTopic(t *testing.T) {
	manager := topicmgr.NewManager()
	f := newFactory(t, pubsub.WithManager(manager), pubsub.WithDefaultBatchSize(5))

	type order struct {
		ID     string `json:"id"`
		Amount int    `json:"amount,omitempty"`
		secret string
		Skip   bool `json:"-"`
	}

	t.Run("named topic is registered", func(t *testing.T) {
		topic, err := pubsub.NewTopic[order](f, pubsub.Batched,
			pubsub.WithName("orders.created"),
			pubsub.WithDescription("An order was placed"),
		)
		require.NoError(t, err)
		assert.Equal(t, 5, topic.BatchSize())
		assert.Equal(t, pubsub.Batched, topic.Priority())

		entry, ok := manager.Get("orders.created")
		require.True(t, ok)
		assert.Equal(t, topicmgr.PriorityBatched, entry.Descriptor.Priority)
		assert.Equal(t, 5, entry.Descriptor.BatchSize)
		assert.Equal(t, []string{"id", "amount"}, entry.Descriptor.PayloadFields)
		assert.Contains(t, entry.Descriptor.PayloadType, "order")

		topic.Subscribe(func(ctx context.Context, o order) error { return nil })
		require.NoError(t, waitFor(t, topic.Publish(context.Background(), order{ID: "1"})))
		entry, _ = manager.Get("orders.created")
		assert.Equal(t, int64(1), entry.Publishes)
		assert.Equal(t, 1, entry.Subscribers)
	})

	t.Run("duplicate name fails", func(t *testing.T) {
		_, err := pubsub.NewTopic[order](f, pubsub.Immediate, pubsub.WithName("orders.created"))
		assert.True(t, topicmgr.IsType(err, topicmgr.ErrorDuplicateRegistration))
	})

	t.Run("anonymous topics are not registered", func(t *testing.T) {
		before := manager.Count()
		_, err := pubsub.NewTopic[int](f, pubsub.Immediate)
		require.NoError(t, err)
		assert.Equal(t, before, manager.Count())
	})

	t.Run("invalid settings", func(t *testing.T) {
		_, err := pubsub.NewTopic[int](f, pubsub.Batched, pubsub.WithBatchSize(0))
		assert.Error(t, err)
		_, err = pubsub.NewTopic[int](f, pubsub.Priority(7))
		assert.Error(t, err)
		assert.Panics(t, func() { pubsub.MustNewTopic[int](f, pubsub.Priority(7)) })
	})
}

func TestParsePriority(t *testing.T) {
	for in, want := range map[string]pubsub.Priority{
		"immediate": pubsub.Immediate,
		"high":      pubsub.Immediate,
		"Batched":   pubsub.Batched,
		" low ":     pubsub.Batched,
	} {
		got, err := pubsub.ParsePriority(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := pubsub.ParsePriority("urgent")
	assert.Error(t, err)
	assert.Equal(t, "immediate", pubsub.Immediate.String())
	assert.Equal(t, "batched", pubsub.Batched.String())
}

func TestBatchedPublishInterruptedByClose(t *testing.T) {
	exec := executor.New()
	f := pubsub.NewFactory(exec)
	topic := pubsub.MustNewTopic[string](f, pubsub.Batched, pubsub.WithBatchSize(1))

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	topic.Subscribe(func(ctx context.Context, v string) error {
		calls.Add(1)
		close(started)
		<-release
		return nil
	})
	for range 2 {
		topic.Subscribe(func(ctx context.Context, v string) error {
			calls.Add(1)
			return nil
		})
	}

	c := topic.Publish(context.Background(), "late")
	<-started

	// Close marks the executor closed and then waits for the running job.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, exec.Close(cancelled), context.Canceled)
	close(release)

	err := waitFor(t, c)
	require.Error(t, err)
	assert.ErrorIs(t, err, executor.ErrClosed)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Equal(t, 2, strings.Count(err.Error(), "executor: closed"))
	assert.Equal(t, int32(1), calls.Load())

	ctx, cancelWait := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelWait()
	assert.NoError(t, exec.Close(ctx))
}
