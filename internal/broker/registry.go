package broker

import (
	"fmt"
	"sync"
)

// RegisteredWorker holds runtime information about a registered judge
// worker.
type RegisteredWorker struct {
	ID           string
	Kind         string
	SubmitTopic  string // topics.submit from registration
	ResultTopic  string // topics.results from registration
	Capabilities []string
}

// WorkerRegistry maintains the mapping of worker ids to their MQTT
// topics and metadata.
type WorkerRegistry struct {
	mu      sync.RWMutex
	workers map[string]*RegisteredWorker
}

// NewWorkerRegistry creates a new empty worker registry.
func NewWorkerRegistry() *WorkerRegistry {
	return &WorkerRegistry{
		workers: make(map[string]*RegisteredWorker),
	}
}

// Register adds or updates a worker in the registry.
func (r *WorkerRegistry) Register(w *RegisteredWorker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[w.ID] = w
}

// RegisterFromPayload registers the worker described by a registration
// payload.
func (r *WorkerRegistry) RegisterFromPayload(payload *RegistrationPayload) {
	r.Register(&RegisteredWorker{
		ID:           payload.Worker.ID,
		Kind:         payload.Worker.Kind,
		SubmitTopic:  payload.Topics.Submit,
		ResultTopic:  payload.Topics.Results,
		Capabilities: append([]string{}, payload.Worker.Capabilities...),
	})
}

// Unregister removes a worker from the registry.
func (r *WorkerRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, id)
}

// Get returns a worker by id, or nil if not found.
func (r *WorkerRegistry) Get(id string) *RegisteredWorker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if w, ok := r.workers[id]; ok {
		cpy := *w
		cpy.Capabilities = append([]string{}, w.Capabilities...)
		return &cpy
	}
	return nil
}

// Exists returns true if the worker is registered.
func (r *WorkerRegistry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.workers[id]
	return ok
}

// SubmitTopic returns the submit topic for a worker, or empty string
// if not found.
func (r *WorkerRegistry) SubmitTopic(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if w, ok := r.workers[id]; ok {
		return w.SubmitTopic
	}
	return ""
}

// HasCapability returns true if the worker advertises the given
// capability.
func (r *WorkerRegistry) HasCapability(id, capability string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if w, ok := r.workers[id]; ok {
		for _, c := range w.Capabilities {
			if c == capability {
				return true
			}
		}
	}
	return false
}

// ValidateDispatch validates that a worker exists, has a submit topic,
// and supports the given capability. Returns an error describing the
// failure, or nil if the request can be dispatched.
func (r *WorkerRegistry) ValidateDispatch(id, capability string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workers[id]
	if !ok {
		return fmt.Errorf("worker not registered: %s", id)
	}

	if w.SubmitTopic == "" {
		return fmt.Errorf("worker %s has no submit topic", id)
	}

	if capability == "" {
		return nil
	}
	for _, c := range w.Capabilities {
		if c == capability {
			return nil
		}
	}

	return fmt.Errorf("worker %s does not support capability: %s", id, capability)
}

// All returns a copy of all registered workers.
func (r *WorkerRegistry) All() []*RegisteredWorker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*RegisteredWorker, 0, len(r.workers))
	for _, w := range r.workers {
		cpy := *w
		cpy.Capabilities = append([]string{}, w.Capabilities...)
		result = append(result, &cpy)
	}
	return result
}

// IDs returns the registered worker ids as a set.
func (r *WorkerRegistry) IDs() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make(map[string]bool, len(r.workers))
	for id := range r.workers {
		ids[id] = true
	}
	return ids
}

// Clear removes all workers from the registry.
func (r *WorkerRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers = make(map[string]*RegisteredWorker)
}
