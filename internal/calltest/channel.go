// Package calltest provides in-memory fakes of the call core's ports for
// tests.
package calltest

import (
	"context"
	"encoding/json"
	"sync"

	"vico_home/callcore/internal/domain"
	"vico_home/callcore/internal/signal"
)

// Emitted is one event written to a Channel.
type Emitted struct {
	Event  string
	Signal domain.Signal
}

// Channel is an in-memory domain.EventChannel. Deliver plays the role of the
// relay and dispatches synchronously.
type Channel struct {
	registry *signal.Registry

	mu        sync.Mutex
	connected bool
	connects  int
	emitted   []Emitted

	ConnectErr error
	EmitErr    error
}

func NewChannel() *Channel {
	return &Channel{registry: signal.NewRegistry()}
}

func (c *Channel) Connect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	c.connected = true
	return nil
}

func (c *Channel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SetConnected forces the connection flag.
func (c *Channel) SetConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// Connects returns how many times Connect was called.
func (c *Channel) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

func (c *Channel) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.EmitErr != nil {
		return c.EmitErr
	}
	sig, _ := payload.(domain.Signal)
	c.emitted = append(c.emitted, Emitted{Event: event, Signal: sig})
	return nil
}

func (c *Channel) Subscribe(event string, handler domain.EventHandler) func() {
	return c.registry.Subscribe(event, handler)
}

// Deliver dispatches sig to the subscribers of event as if it arrived from
// the relay.
func (c *Channel) Deliver(event string, sig domain.Signal) {
	data, err := json.Marshal(sig)
	if err != nil {
		panic(err)
	}
	c.registry.Dispatch(event, data)
}

// DeliverRaw dispatches a raw payload.
func (c *Channel) DeliverRaw(event string, data []byte) {
	c.registry.Dispatch(event, data)
}

// Subscribers returns the number of live subscriptions for event.
func (c *Channel) Subscribers(event string) int { return c.registry.Len(event) }

// Emitted returns a copy of everything emitted so far.
func (c *Channel) Emitted() []Emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Emitted(nil), c.emitted...)
}

// Events returns the emitted event names in order.
func (c *Channel) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.emitted))
	for _, e := range c.emitted {
		out = append(out, e.Event)
	}
	return out
}

// Last returns the most recent emission of event.
func (c *Channel) Last(event string) (domain.Signal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.emitted) - 1; i >= 0; i-- {
		if c.emitted[i].Event == event {
			return c.emitted[i].Signal, true
		}
	}
	return domain.Signal{}, false
}

// Count returns how many times event was emitted.
func (c *Channel) Count(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.emitted {
		if e.Event == event {
			n++
		}
	}
	return n
}

// Reset forgets recorded emissions.
func (c *Channel) Reset() {
	c.mu.Lock()
	c.emitted = nil
	c.mu.Unlock()
}
