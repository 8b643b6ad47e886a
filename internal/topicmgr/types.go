package topicmgr

import (
	"errors"
	"time"
)

// Descriptor describes a named topic.
type Descriptor struct {
	Name          string         `json:"name"`           // Unique identifier
	Description   string         `json:"description"`    // Human-readable description
	Priority      string         `json:"priority"`       // "immediate" or "batched"
	BatchSize     int            `json:"batch_size"`     // Subscribers per job for batched topics
	PayloadType   string         `json:"payload_type"`   // Go type name of the published value
	PayloadFields []string       `json:"payload_fields"` // JSON field names when the payload is a struct
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Priority values a descriptor may carry.
const (
	PriorityImmediate = "immediate"
	PriorityBatched   = "batched"
)

// RegistryEntry is a registered descriptor with bookkeeping.
type RegistryEntry struct {
	Descriptor   Descriptor `json:"descriptor"`
	RegisteredAt time.Time  `json:"registered_at"`
	Publishes    int64      `json:"publishes"`
	Subscribers  int        `json:"subscribers"`
}

// TopicError represents structured errors in the topic management system
type TopicError struct {
	Type    ErrorType `json:"type"`
	Topic   string    `json:"topic"`
	Message string    `json:"message"`
	Cause   error     `json:"cause,omitempty"`
}

// ErrorType defines the type of topic management error
type ErrorType string

const (
	ErrorTopicNotFound         ErrorType = "topic_not_found"
	ErrorDuplicateRegistration ErrorType = "duplicate_registration"
	ErrorValidationFailed      ErrorType = "validation_failed"
)

// Error implements the error interface
func (e *TopicError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *TopicError) Unwrap() error {
	return e.Cause
}

// IsType reports whether err is a *TopicError of the given type.
func IsType(err error, typ ErrorType) bool {
	var te *TopicError
	return errors.As(err, &te) && te.Type == typ
}

func copyMetadata(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
