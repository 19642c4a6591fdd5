package signal

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"vico_home/callcore/internal/domain"
)

func TestChannelFor(t *testing.T) {
	assert.Equal(t, "calls:u-1", ChannelFor("u-1"))
}

func TestRedisChannel_EmitRequiresRecipient(t *testing.T) {
	r := NewRedisChannel(NewRedisClient("127.0.0.1:0"), "u-1", zerolog.Nop())

	err := r.Emit(domain.EventEnd, map[string]string{"sessionId": "s1"})
	assert.ErrorContains(t, err, "no recipient")

	err = r.Emit(domain.EventEnd, domain.Signal{SessionID: "s1", To: "u-2"})
	assert.ErrorIs(t, err, domain.ErrNotConnected)
	assert.False(t, r.IsConnected())
	assert.NoError(t, r.Close())
}
