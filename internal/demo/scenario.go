// Package demo plays timed emissions against a set of string topics and
// prints one line per subscriber call.
package demo

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Scenario describes the topics to build and when to publish to them. Times
// are in units of the runner's time unit.
type Scenario struct {
	Name      string         `yaml:"name" validate:"required"`
	Work      float64        `yaml:"work" validate:"gte=0"`
	Topics    []TopicSpec    `yaml:"topics" validate:"required,min=1,dive"`
	Emissions []EmissionSpec `yaml:"emissions" validate:"dive"`
}

// TopicSpec is one topic of a scenario.
type TopicSpec struct {
	Name        string         `yaml:"name" validate:"required"`
	Priority    string         `yaml:"priority" validate:"required,oneof=immediate batched high low"`
	Subscribers int            `yaml:"subscribers" validate:"gte=0"`
	BatchSize   int            `yaml:"batch_size,omitempty" validate:"gte=0"`
	Metadata    map[string]any `yaml:"metadata,omitempty"`
}

// EmissionSpec publishes Payload to Topic At units after the run starts.
type EmissionSpec struct {
	Topic   string  `yaml:"topic" validate:"required"`
	At      float64 `yaml:"at" validate:"gte=0"`
	Payload string  `yaml:"payload"`
}

// DefaultScenario returns ten immediate subscribers on demo.event1 and a
// hundred batched ones on demo.event2, with event2 emitted at once and event1
// at 10, 20 and 50.
func DefaultScenario() *Scenario {
	return &Scenario{
		Name: "default",
		Work: 1,
		Topics: []TopicSpec{
			{Name: "demo.event1", Priority: "immediate", Subscribers: 10},
			{Name: "demo.event2", Priority: "batched", Subscribers: 100},
		},
		Emissions: []EmissionSpec{
			{Topic: "demo.event2", At: 0, Payload: "event2"},
			{Topic: "demo.event1", At: 10, Payload: "event1 (t=10)"},
			{Topic: "demo.event1", At: 20, Payload: "event1 (t=20)"},
			{Topic: "demo.event1", At: 50, Payload: "event1 (t=50)"},
		},
	}
}

// LoadScenario reads a YAML scenario from fs.
func LoadScenario(fs afero.Fs, path string) (*Scenario, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("demo: read scenario: %w", err)
	}

	sc := &Scenario{Work: 1}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("demo: parse scenario %s: %w", path, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Validate checks field constraints and that every emission targets a
// declared topic.
func (sc *Scenario) Validate() error {
	if err := validator.New().Struct(sc); err != nil {
		return fmt.Errorf("demo: invalid scenario: %w", err)
	}

	declared := make(map[string]bool, len(sc.Topics))
	for _, t := range sc.Topics {
		if declared[t.Name] {
			return fmt.Errorf("demo: topic %q declared twice", t.Name)
		}
		declared[t.Name] = true
	}
	for i, e := range sc.Emissions {
		if !declared[e.Topic] {
			return fmt.Errorf("demo: emission %d targets undeclared topic %q", i, e.Topic)
		}
	}
	return nil
}
