package topicmgr

import (
	"fmt"
	"sync"
	"time"
)

// Manager provides the main API for topic management
type Manager struct {
	registry  *Registry
	validator *Validator
	mu        sync.RWMutex
	startTime time.Time
}

// NewManager creates a new topic manager with registry and validator
func NewManager() *Manager {
	return &Manager{
		registry:  NewRegistry(),
		validator: NewValidator(),
		startTime: time.Now(),
	}
}

// Register validates d and adds it to the registry
func (m *Manager) Register(d Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.validator.ValidateDescriptor(d); err != nil {
		return &TopicError{
			Type:    ErrorValidationFailed,
			Topic:   d.Name,
			Message: "topic validation failed",
			Cause:   err,
		}
	}

	return m.registry.Register(d)
}

// Get retrieves a topic entry by name
func (m *Manager) Get(name string) (RegistryEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.registry.Get(name)
}

// Lookup is Get with a TopicError for unknown names
func (m *Manager) Lookup(name string) (RegistryEntry, error) {
	entry, ok := m.Get(name)
	if !ok {
		return RegistryEntry{}, &TopicError{
			Type:    ErrorTopicNotFound,
			Topic:   name,
			Message: fmt.Sprintf("topic not found: %s", name),
		}
	}
	return entry, nil
}

// List returns all registered topics sorted by name
func (m *Manager) List() []RegistryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.registry.List()
}

// ListByPriority returns topics with the given priority
func (m *Manager) ListByPriority(priority string) []RegistryEntry {
	var out []RegistryEntry
	for _, entry := range m.List() {
		if entry.Descriptor.Priority == priority {
			out = append(out, entry)
		}
	}
	return out
}

// ValidateTopicName checks if a topic name is valid without registering anything
func (m *Manager) ValidateTopicName(name string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.validator.ValidateName(name)
}

// RecordPublish counts one publish on name. Unknown names are ignored.
func (m *Manager) RecordPublish(name string) {
	m.registry.update(name, func(e *RegistryEntry) {
		e.Publishes++
	})
}

// RecordSubscribe counts one registration on name. Unknown names are ignored.
func (m *Manager) RecordSubscribe(name string) {
	m.registry.update(name, func(e *RegistryEntry) {
		e.Subscribers++
	})
}

// Count returns the total number of registered topics
func (m *Manager) Count() int {
	return m.registry.Count()
}

// GetStats returns manager statistics
func (m *Manager) GetStats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return ManagerStats{
		StartTime:     m.startTime,
		Uptime:        time.Since(m.startTime),
		RegistryStats: m.registry.GetStats(),
	}
}

// ManagerStats provides statistics about the manager
type ManagerStats struct {
	StartTime     time.Time     `json:"start_time"`
	Uptime        time.Duration `json:"uptime"`
	RegistryStats RegistryStats `json:"registry_stats"`
}
