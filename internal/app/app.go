// Package app wires the shared executor, topic catalogue, topic factory and
// message bridge from a Config.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/do/v2"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/nfrund/serialbus/internal/config"
	"github.com/nfrund/serialbus/internal/executor"
	"github.com/nfrund/serialbus/internal/pubsub"
	"github.com/nfrund/serialbus/internal/topicmgr"
)

// App holds the core services resolved from the injector.
type App struct {
	Injector do.Injector
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Executor *executor.Executor
	Manager  *topicmgr.Manager
	Factory  *pubsub.Factory
	Bridge   *pubsub.Bridge

	stopTracing func()
}

// New registers every service provider and resolves them eagerly so wiring
// errors surface here rather than on first use.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger, stopTracing: func() {}}
	i := do.New()
	a.Injector = i

	do.ProvideValue(i, cfg)
	do.ProvideValue(i, logger)

	do.Provide(i, func(do.Injector) (*prometheus.Registry, error) {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return reg, nil
	})

	do.Provide(i, func(i do.Injector) (trace.Tracer, error) {
		cfg := do.MustInvoke[*config.Config](i)
		tracer, cleanup, err := pubsub.SetupOTel(ctx, cfg.Tracing)
		if err != nil {
			return nil, fmt.Errorf("app: tracing: %w", err)
		}
		a.stopTracing = cleanup
		return tracer, nil
	})

	do.Provide(i, func(i do.Injector) (*executor.Executor, error) {
		return executor.New(
			executor.WithLogger(do.MustInvoke[*slog.Logger](i)),
			executor.WithMetrics(executor.NewMetrics(do.MustInvoke[*prometheus.Registry](i))),
		), nil
	})

	do.Provide(i, func(do.Injector) (*topicmgr.Manager, error) {
		return topicmgr.NewManager(), nil
	})

	do.Provide(i, func(i do.Injector) (*pubsub.Factory, error) {
		cfg := do.MustInvoke[*config.Config](i)
		tracer, err := do.Invoke[trace.Tracer](i)
		if err != nil {
			return nil, err
		}
		return pubsub.NewFactory(
			do.MustInvoke[*executor.Executor](i),
			pubsub.WithManager(do.MustInvoke[*topicmgr.Manager](i)),
			pubsub.WithTracer(tracer),
			pubsub.WithLogger(do.MustInvoke[*slog.Logger](i)),
			pubsub.WithDefaultBatchSize(cfg.BatchSize),
		), nil
	})

	do.Provide(i, func(i do.Injector) (*pubsub.Bridge, error) {
		return pubsub.NewBridge(pubsub.WithBridgeLogger(do.MustInvoke[*slog.Logger](i))), nil
	})

	var err error
	if a.Factory, err = do.Invoke[*pubsub.Factory](i); err != nil {
		return nil, err
	}
	a.Registry = do.MustInvoke[*prometheus.Registry](i)
	a.Executor = do.MustInvoke[*executor.Executor](i)
	a.Manager = do.MustInvoke[*topicmgr.Manager](i)
	a.Bridge = do.MustInvoke[*pubsub.Bridge](i)

	logger.Debug("Application wired",
		"batch_size", cfg.BatchSize,
		"tracing", cfg.Tracing.Enabled)
	return a, nil
}

// Close stops the bridge, drains the executor and flushes traces.
func (a *App) Close(ctx context.Context) error {
	err := multierr.Combine(
		a.Bridge.Close(),
		a.Executor.Close(ctx),
	)
	a.stopTracing()
	return err
}
