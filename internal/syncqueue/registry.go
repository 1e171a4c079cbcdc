package syncqueue

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds the queue of a user on first use.
type Factory func(username string) (*Queue, error)

// Registry keeps one queue per user.
type Registry struct {
	queues  map[string]*Queue
	factory Factory
	mu      sync.RWMutex
}

// NewRegistry creates a registry that builds queues with factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		queues:  make(map[string]*Queue),
		factory: factory,
	}
}

// Get returns the queue of username if it exists.
func (r *Registry) Get(username string) (*Queue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queues[username]
	return q, ok
}

// GetOrCreate returns the queue of username, building it if needed.
func (r *Registry) GetOrCreate(username string) (*Queue, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: missing username", ErrInvalidOperation)
	}
	if q, ok := r.Get(username); ok {
		return q, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.queues[username]; ok {
		return q, nil
	}
	q, err := r.factory(username)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue for %s: %w", username, err)
	}
	r.queues[username] = q
	return q, nil
}

// Usernames returns the users with a queue, sorted.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of queues.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.queues)
}

// Remove closes and forgets the queue of username.
// Returns true if the queue existed.
func (r *Registry) Remove(username string) bool {
	r.mu.Lock()
	q, ok := r.queues[username]
	delete(r.queues, username)
	r.mu.Unlock()

	if ok {
		q.Close()
	}
	return ok
}

// CloseAll closes every queue.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	queues := r.queues
	r.queues = make(map[string]*Queue)
	r.mu.Unlock()

	for _, q := range queues {
		q.Close()
	}
}
