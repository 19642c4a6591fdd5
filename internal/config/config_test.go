package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CALL_TOKEN", "tok")
	t.Setenv("CALL_SIGNAL_URL", "ws://relay.local/ws")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, TransportWebSocket, cfg.Transport)
	assert.Equal(t, 10*time.Second, cfg.RingTimeout)
	assert.Zero(t, cfg.NegotiationTimeout)
	assert.True(t, cfg.MediaEnabled)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServers)
	assert.Equal(t, "127.0.0.1:8089", cfg.ControlAddr)
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("CALL_TOKEN", "")
	t.Setenv("CALL_SIGNAL_URL", "ws://relay.local/ws")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALL_TOKEN")
}

func TestLoad_CollectsParseErrors(t *testing.T) {
	t.Setenv("CALL_TOKEN", "tok")
	t.Setenv("CALL_SIGNAL_URL", "ws://relay.local/ws")
	t.Setenv("CALL_RING_TIMEOUT", "soon")
	t.Setenv("CALL_MEDIA", "maybe")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALL_RING_TIMEOUT")
	assert.Contains(t, err.Error(), "CALL_MEDIA")
}

func TestValidate_RedisRequiresAddr(t *testing.T) {
	c := &Config{
		Token:        "tok",
		Transport:    TransportRedis,
		RingTimeout:  time.Second,
		PingInterval: time.Second,
	}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALL_REDIS_ADDR")

	c.RedisAddr = "localhost:6379"
	assert.NoError(t, c.Validate())
}

func TestValidate_UnknownTransport(t *testing.T) {
	c := &Config{Token: "tok", Transport: "carrier-pigeon", RingTimeout: time.Second, PingInterval: time.Second}
	assert.ErrorContains(t, c.Validate(), "CALL_TRANSPORT")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
	assert.Nil(t, splitList(""))
}
