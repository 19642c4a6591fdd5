package signal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_DispatchInOrder(t *testing.T) {
	r := NewRegistry()
	var got []string
	r.Subscribe("call:end", func(json.RawMessage) { got = append(got, "a") })
	r.Subscribe("call:end", func(json.RawMessage) { got = append(got, "b") })

	assert.True(t, r.Dispatch("call:end", nil))
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestRegistry_UnsubscribeRemovesOnlyThatHandler(t *testing.T) {
	r := NewRegistry()
	var got []string
	unsubA := r.Subscribe("call:end", func(json.RawMessage) { got = append(got, "a") })
	r.Subscribe("call:end", func(json.RawMessage) { got = append(got, "b") })

	unsubA()
	unsubA()

	r.Dispatch("call:end", nil)
	assert.Equal(t, []string{"b"}, got)
	assert.Equal(t, 1, r.Len("call:end"))
}

func TestRegistry_UnknownEvent(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Dispatch("chat:message", json.RawMessage(`{}`)))
}
