package channel

import (
	"fmt"
	"slices"
	"sync"
)

// Registry holds channel objects keyed by target identifier.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Object
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]*Object),
	}
}

// Register adds a channel under its target identifier.
// Returns ErrDuplicateChannel if the target is already taken.
func (r *Registry) Register(obj *Object) error {
	id := obj.Identity().TargetID

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateChannel, id)
	}
	r.channels[id] = obj
	return nil
}

// Get returns the channel registered for target.
func (r *Registry) Get(target string) (*Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	obj, ok := r.channels[target]
	return obj, ok
}

// Lookup is Get with an ErrNoChannel error.
func (r *Registry) Lookup(target string) (*Object, error) {
	obj, ok := r.Get(target)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoChannel, target)
	}
	return obj, nil
}

// Remove unregisters target and returns the removed channel.
func (r *Registry) Remove(target string) (*Object, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, ok := r.channels[target]
	delete(r.channels, target)
	return obj, ok
}

// Channels returns the registered target identifiers, sorted.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
