package topicmgr

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry manages the collection of registered descriptors
type Registry struct {
	entries map[string]*RegistryEntry
	mu      sync.RWMutex
}

// NewRegistry creates a new topic registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*RegistryEntry),
	}
}

// Register adds a descriptor to the registry
func (r *Registry) Register(d Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d.Name == "" {
		return &TopicError{
			Type:    ErrorValidationFailed,
			Message: "topic name cannot be empty",
		}
	}

	if _, exists := r.entries[d.Name]; exists {
		return &TopicError{
			Type:    ErrorDuplicateRegistration,
			Topic:   d.Name,
			Message: fmt.Sprintf("topic already registered: %s", d.Name),
		}
	}

	d.Metadata = copyMetadata(d.Metadata)
	r.entries[d.Name] = &RegistryEntry{
		Descriptor:   d,
		RegisteredAt: time.Now(),
	}
	return nil
}

// Get retrieves a copy of the entry for name
func (r *Registry) Get(name string) (RegistryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[name]
	if !exists {
		return RegistryEntry{}, false
	}
	out := *entry
	out.Descriptor.Metadata = copyMetadata(entry.Descriptor.Metadata)
	return out, true
}

// List returns all entries sorted by name
func (r *Registry) List() []RegistryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]RegistryEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		out := *entry
		out.Descriptor.Metadata = copyMetadata(entry.Descriptor.Metadata)
		entries = append(entries, out)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Descriptor.Name < entries[j].Descriptor.Name
	})
	return entries
}

// update applies fn to the entry for name under the write lock.
func (r *Registry) update(name string, fn func(*RegistryEntry)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[name]
	if !exists {
		return false
	}
	fn(entry)
	return true
}

// Count returns the number of registered topics
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// GetStats returns registry statistics
func (r *Registry) GetStats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{
		TotalTopics: len(r.entries),
	}

	for _, entry := range r.entries {
		switch entry.Descriptor.Priority {
		case PriorityImmediate:
			stats.ImmediateTopics++
		case PriorityBatched:
			stats.BatchedTopics++
		}
		stats.TotalPublishes += entry.Publishes
		stats.TotalSubscribers += entry.Subscribers
	}

	return stats
}

// RegistryStats provides statistics about the registry
type RegistryStats struct {
	TotalTopics      int   `json:"total_topics"`
	ImmediateTopics  int   `json:"immediate_topics"`
	BatchedTopics    int   `json:"batched_topics"`
	TotalPublishes   int64 `json:"total_publishes"`
	TotalSubscribers int   `json:"total_subscribers"`
}
