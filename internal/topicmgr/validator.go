package topicmgr

import (
	"fmt"
	"regexp"
	"strings"
)

// Validator provides validation for topic descriptors
type Validator struct {
	// namePattern defines valid topic name patterns
	namePattern *regexp.Regexp
}

// NewValidator creates a new topic validator
func NewValidator() *Validator {
	// Dotted lowercase segments: orders.created, demo.event1
	namePattern := regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)*$`)

	return &Validator{
		namePattern: namePattern,
	}
}

// ValidateDescriptor validates a descriptor before registration
func (v *Validator) ValidateDescriptor(d Descriptor) error {
	if err := v.ValidateName(d.Name); err != nil {
		return fmt.Errorf("invalid topic name: %w", err)
	}

	switch d.Priority {
	case PriorityImmediate:
	case PriorityBatched:
		if d.BatchSize < 1 {
			return fmt.Errorf("batched topic needs a positive batch size, got %d", d.BatchSize)
		}
	default:
		return fmt.Errorf("invalid priority: %q", d.Priority)
	}

	return nil
}

// ValidateName checks if a topic name follows the naming convention
func (v *Validator) ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	if len(name) > 100 {
		return fmt.Errorf("name too long (max 100 characters)")
	}

	if !v.namePattern.MatchString(name) {
		return fmt.Errorf("name must be dotted lowercase segments (e.g. orders.created)")
	}

	reservedPrefixes := []string{"system.", "internal.", "debug."}
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(name, prefix) {
			return fmt.Errorf("name cannot start with reserved prefix: %s", prefix)
		}
	}

	return nil
}
