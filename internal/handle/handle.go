// Package handle maps string identifiers to numeric handles and back.
package handle

import (
	"errors"
	"sync"

	"github.com/flemzord/tgrelay/pkg/message"
)

// ErrUnknownHandle is returned when a handle was never allocated.
var ErrUnknownHandle = errors.New("handle: unknown handle")

type key struct {
	typ message.HandleType
	id  string
}

type entry struct {
	typ message.HandleType
	id  string
}

// Registry allocates handles monotonically. A given (type, identifier) pair
// always maps to the same handle. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	next  message.Handle
	byKey map[key]message.Handle
	byNum map[message.Handle]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey: make(map[key]message.Handle),
		byNum: make(map[message.Handle]entry),
	}
}

// Ensure returns the handle for id, allocating one if needed.
func (r *Registry) Ensure(typ message.HandleType, id string) message.Handle {
	k := key{typ: typ, id: id}

	r.mu.RLock()
	h, ok := r.byKey[k]
	r.mu.RUnlock()
	if ok {
		return h
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.byKey[k]; ok {
		return h
	}
	r.next++
	h = r.next
	r.byKey[k] = h
	r.byNum[h] = entry{typ: typ, id: id}
	return h
}

// Lookup returns the handle for id without allocating.
func (r *Registry) Lookup(typ message.HandleType, id string) (message.Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byKey[key{typ: typ, id: id}]
	return h, ok
}

// Inspect returns the identifier and type behind a handle.
func (r *Registry) Inspect(h message.Handle) (string, message.HandleType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byNum[h]
	if !ok {
		return "", message.HandleTypeNone, ErrUnknownHandle
	}
	return e.id, e.typ, nil
}

// Len returns the number of allocated handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byNum)
}
