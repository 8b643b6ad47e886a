package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/serialbus/internal/app"
	"github.com/nfrund/serialbus/internal/config"
	"github.com/nfrund/serialbus/internal/executor"
	"github.com/nfrund/serialbus/internal/pubsub"
)

func TestNewWiresSharedServices(t *testing.T) {
	cfg := config.Defaults()
	cfg.BatchSize = 3

	a, err := app.New(context.Background(), &cfg, nil)
	require.NoError(t, err)

	assert.Same(t, a.Executor, a.Factory.Executor())
	assert.Same(t, a.Manager, a.Factory.Manager())
	assert.Same(t, a.Executor, do.MustInvoke[*executor.Executor](a.Injector))

	topic, err := pubsub.NewTopic[string](a.Factory, pubsub.Batched, pubsub.WithName("app.events"))
	require.NoError(t, err)
	assert.Equal(t, 3, topic.BatchSize())

	var calls int
	for range 7 {
		topic.Subscribe(pubsub.Func(func(string) { calls++ }))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, topic.Publish(ctx, "x").Wait(ctx))
	assert.Equal(t, 7, calls)

	entry, ok := a.Manager.Get("app.events")
	require.True(t, ok)
	assert.Equal(t, int64(1), entry.Publishes)

	count, err := testutil.GatherAndCount(a.Registry, "serialbus_executor_tasks_submitted_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, uint64(3), a.Executor.Stats().Completed, "seven subscribers in groups of three")

	require.NoError(t, a.Close(ctx))
	assert.ErrorIs(t, a.Executor.Submit(ctx, func(context.Context) error { return nil }).Err(), executor.ErrClosed)
}
