package pubsub

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/nfrund/serialbus/internal/executor"
	"github.com/nfrund/serialbus/internal/topicmgr"
)

// Factory creates topics bound to one shared executor. Every topic made by
// the same Factory is serialized against every other one.
type Factory struct {
	exec      *executor.Executor
	manager   *topicmgr.Manager
	tracer    trace.Tracer
	logger    *slog.Logger
	batchSize int
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithManager registers named topics with m.
func WithManager(m *topicmgr.Manager) FactoryOption {
	return func(f *Factory) { f.manager = m }
}

// WithTracer records a span per executor job.
func WithTracer(tracer trace.Tracer) FactoryOption {
	return func(f *Factory) {
		if tracer != nil {
			f.tracer = tracer
		}
	}
}

// WithLogger sets the logger topics report subscriber failures to.
func WithLogger(logger *slog.Logger) FactoryOption {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithDefaultBatchSize changes the group size of batched topics that do not
// set their own.
func WithDefaultBatchSize(n int) FactoryOption {
	return func(f *Factory) { f.batchSize = n }
}

// NewFactory returns a Factory submitting to exec.
func NewFactory(exec *executor.Executor, opts ...FactoryOption) *Factory {
	f := &Factory{
		exec:      exec,
		tracer:    NoopTracer(),
		logger:    slog.Default(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Executor returns the executor shared by the factory's topics.
func (f *Factory) Executor() *executor.Executor {
	return f.exec
}

// Manager returns the topic catalogue, nil if none was configured.
func (f *Factory) Manager() *topicmgr.Manager {
	return f.manager
}

type topicSettings struct {
	name        string
	description string
	batchSize   int
	metadata    map[string]any
}

// TopicOption configures a single topic.
type TopicOption func(*topicSettings)

// WithName gives the topic a catalogue name. Named topics are registered with
// the factory's manager, if it has one.
func WithName(name string) TopicOption {
	return func(s *topicSettings) { s.name = name }
}

// WithDescription documents the topic in the catalogue.
func WithDescription(description string) TopicOption {
	return func(s *topicSettings) { s.description = description }
}

// WithMetadata attaches free-form catalogue metadata to a named topic.
func WithMetadata(metadata map[string]any) TopicOption {
	return func(s *topicSettings) { s.metadata = metadata }
}

// WithBatchSize overrides the factory's group size for this topic.
func WithBatchSize(n int) TopicOption {
	return func(s *topicSettings) { s.batchSize = n }
}

// NewTopic creates a Topic[T] with the given priority. It fails only when the
// batch size is not positive or a named topic cannot be registered.
func NewTopic[T any](f *Factory, priority Priority, opts ...TopicOption) (*Topic[T], error) {
	settings := topicSettings{batchSize: f.batchSize}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.batchSize < 1 {
		return nil, fmt.Errorf("pubsub: batch size must be positive, got %d", settings.batchSize)
	}
	if priority != Immediate && priority != Batched {
		return nil, fmt.Errorf("pubsub: unknown priority %d", int(priority))
	}

	if f.manager != nil && settings.name != "" {
		typeName, fields := describePayload[T]()
		err := f.manager.Register(topicmgr.Descriptor{
			Name:          settings.name,
			Description:   settings.description,
			Priority:      priority.String(),
			BatchSize:     settings.batchSize,
			PayloadType:   typeName,
			PayloadFields: fields,
			Metadata:      settings.metadata,
		})
		if err != nil {
			return nil, err
		}
	}

	return &Topic[T]{
		name:      settings.name,
		priority:  priority,
		batchSize: settings.batchSize,
		exec:      f.exec,
		manager:   f.manager,
		tracer:    f.tracer,
		logger:    f.logger,
	}, nil
}

// MustNewTopic is NewTopic that panics on error, for wiring at startup.
func MustNewTopic[T any](f *Factory, priority Priority, opts ...TopicOption) *Topic[T] {
	t, err := NewTopic[T](f, priority, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// describePayload reports T's type name and, for structs, the JSON names of
// its fields.
func describePayload[T any]() (string, []string) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	var fields []string
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			switch name {
			case "-":
				continue
			case "":
				name = field.Name
			}
			fields = append(fields, name)
		}
	}

	return t.String(), fields
}
