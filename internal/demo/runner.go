package demo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/nfrund/serialbus/internal/pubsub"
)

// Runner owns the topics built from a scenario. Subscribers write to the
// runner's output and then sleep for the scenario's work duration.
type Runner struct {
	scenario *Scenario
	topics   map[string]*pubsub.Topic[string]
	clock    clock.Clock
	unit     time.Duration
	out      io.Writer
	logger   *slog.Logger
	start    time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithTimeUnit sets the length of one scenario time unit. The default is one
// second.
func WithTimeUnit(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.unit = d
		}
	}
}

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner builds the scenario's topics on f and subscribes the labelled
// subscribers to them.
func NewRunner(f *pubsub.Factory, sc *Scenario, out io.Writer, opts ...Option) (*Runner, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		scenario: sc,
		topics:   make(map[string]*pubsub.Topic[string], len(sc.Topics)),
		clock:    clock.New(),
		unit:     time.Second,
		out:      out,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, spec := range sc.Topics {
		priority, err := pubsub.ParsePriority(spec.Priority)
		if err != nil {
			return nil, err
		}
		topicOpts := []pubsub.TopicOption{
			pubsub.WithName(spec.Name),
			pubsub.WithDescription(fmt.Sprintf("%s scenario topic", sc.Name)),
		}
		if len(spec.Metadata) > 0 {
			topicOpts = append(topicOpts, pubsub.WithMetadata(spec.Metadata))
		}
		if spec.BatchSize > 0 {
			topicOpts = append(topicOpts, pubsub.WithBatchSize(spec.BatchSize))
		}

		topic, err := pubsub.NewTopic[string](f, priority, topicOpts...)
		if err != nil {
			return nil, fmt.Errorf("demo: topic %s: %w", spec.Name, err)
		}
		for i := 1; i <= spec.Subscribers; i++ {
			topic.Subscribe(r.subscriber(fmt.Sprintf("subscriber%d", i)))
		}
		r.topics[spec.Name] = topic
	}

	r.start = r.clock.Now()
	return r, nil
}

// Topic returns the named topic.
func (r *Runner) Topic(name string) (*pubsub.Topic[string], bool) {
	t, ok := r.topics[name]
	return t, ok
}

// Attach forwards messages sent to the bridge under each topic's name into
// that topic. Payloads are JSON strings.
func (r *Runner) Attach(ctx context.Context, b *pubsub.Bridge) error {
	for _, spec := range r.scenario.Topics {
		if err := pubsub.Forward(ctx, b, spec.Name, r.topics[spec.Name], pubsub.JSONDecoder[string]()); err != nil {
			return err
		}
	}
	return nil
}

// Run performs every emission at its offset and returns once all of their
// publishes have settled. Emissions wait concurrently, so publishes that fall
// due while earlier ones are still running queue behind them on the executor.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("Running scenario",
		"scenario", r.scenario.Name,
		"topics", len(r.topics),
		"emissions", len(r.scenario.Emissions),
		"time_unit", r.unit)

	g, ctx := errgroup.WithContext(ctx)
	for _, e := range r.scenario.Emissions {
		topic := r.topics[e.Topic]
		delay := r.units(e.At)
		g.Go(func() error {
			if delay > 0 {
				select {
				case <-r.clock.After(delay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			r.logger.Debug("Emitting", "topic", e.Topic, "payload", e.Payload)
			return topic.Publish(ctx, e.Payload).Wait(ctx)
		})
	}
	return g.Wait()
}

func (r *Runner) subscriber(label string) pubsub.Subscriber[string] {
	work := r.units(r.scenario.Work)
	return func(_ context.Context, event string) error {
		elapsed := r.clock.Since(r.start)
		fmt.Fprintf(r.out, "%ds:\t%s\t%s\n", int(elapsed/r.unit), event, label)
		if work > 0 {
			r.clock.Sleep(work)
		}
		return nil
	}
}

func (r *Runner) units(n float64) time.Duration {
	return time.Duration(n * float64(r.unit))
}
