package signal

import (
	"encoding/json"
	"sync"

	"vico_home/callcore/internal/domain"
)

// envelope is the wire format shared by every adapter.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// recipient is implemented by payloads that name their destination peer.
type recipient interface {
	Recipient() string
}

type subscription struct {
	id      uint64
	handler domain.EventHandler
}

// Registry maps event names to an ordered list of handlers.
type Registry struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]subscription
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string][]subscription)}
}

// Subscribe appends handler for event. The returned func removes exactly
// this registration and is safe to call more than once.
func (r *Registry) Subscribe(event string, handler domain.EventHandler) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.handlers[event] = append(r.handlers[event], subscription{id: id, handler: handler})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(event, id) })
	}
}

func (r *Registry) remove(event string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.handlers[event]
	for i, s := range subs {
		if s.id == id {
			r.handlers[event] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(r.handlers[event]) == 0 {
		delete(r.handlers, event)
	}
}

// Dispatch calls every handler of event in subscription order. It reports
// whether any handler was registered.
func (r *Registry) Dispatch(event string, payload json.RawMessage) bool {
	r.mu.RLock()
	subs := make([]subscription, len(r.handlers[event]))
	copy(subs, r.handlers[event])
	r.mu.RUnlock()

	for _, s := range subs {
		s.handler(payload)
	}
	return len(subs) > 0
}

// Len returns the number of handlers registered for event.
func (r *Registry) Len(event string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[event])
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: event, Data: data})
}
