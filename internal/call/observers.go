package call

import (
	"sync"

	"vico_home/callcore/internal/domain"
)

// Observer receives session snapshots. A nil snapshot never reaches an
// observer; the last notification of a call carries PhaseEnded.
type Observer func(*domain.CallSession)

// Observers is an ordered subscriber list with deterministic removal.
type Observers struct {
	mu   sync.Mutex
	next uint64
	subs []subscription
}

type subscription struct {
	id uint64
	fn Observer
}

// Subscribe appends fn. The returned func removes exactly this subscription
// and may be called more than once.
func (o *Observers) Subscribe(fn Observer) func() {
	o.mu.Lock()
	o.next++
	id := o.next
	o.subs = append(o.subs, subscription{id: id, fn: fn})
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { o.remove(id) })
	}
}

func (o *Observers) remove(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, s := range o.subs {
		if s.id == id {
			o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
			return
		}
	}
}

// Notify calls every observer in subscription order, each with its own copy.
func (o *Observers) Notify(s *domain.CallSession) {
	o.mu.Lock()
	subs := append([]subscription(nil), o.subs...)
	o.mu.Unlock()

	for _, sub := range subs {
		sub.fn(s.Clone())
	}
}

// Len returns the number of subscribers.
func (o *Observers) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}
