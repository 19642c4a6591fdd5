package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiationPhase_CanAdvanceTo(t *testing.T) {
	tests := []struct {
		from, to NegotiationPhase
		want     bool
	}{
		{NegotiationNone, NegotiationOfferSent, true},
		{NegotiationNone, NegotiationOfferReceived, true},
		{NegotiationNone, NegotiationAnswerReceived, false},
		{NegotiationNone, NegotiationEstablished, false},
		{NegotiationOfferSent, NegotiationAnswerReceived, true},
		{NegotiationOfferSent, NegotiationAnswerSent, false},
		{NegotiationOfferSent, NegotiationOfferReceived, false},
		{NegotiationOfferReceived, NegotiationAnswerSent, true},
		{NegotiationOfferReceived, NegotiationAnswerReceived, false},
		{NegotiationAnswerSent, NegotiationEstablished, true},
		{NegotiationAnswerReceived, NegotiationEstablished, true},
		{NegotiationEstablished, NegotiationOfferSent, false},
		{NegotiationEstablished, NegotiationEstablished, false},
		{NegotiationAnswerSent, NegotiationOfferReceived, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanAdvanceTo(tt.to))
		})
	}
}

func TestMediaKind_Valid(t *testing.T) {
	assert.True(t, MediaVoice.Valid())
	assert.True(t, MediaVideo.Valid())
	assert.False(t, MediaKind("").Valid())
}

func TestCallSession_Clone(t *testing.T) {
	var nilSession *CallSession
	assert.Nil(t, nilSession.Clone())

	s := &CallSession{SessionID: "s1", PeerID: "bob", StartedAt: time.Unix(10, 0)}
	c := s.Clone()
	c.PeerID = "carol"
	assert.Equal(t, "bob", s.PeerID)
	assert.Equal(t, s.StartedAt, c.StartedAt)
}

func TestSignal_WireFormat(t *testing.T) {
	sig := Signal{
		SessionID: "s1",
		From:      "alice",
		To:        "bob",
		IsMuted:   Bool(false),
		Candidate: &ICECandidatePayload{SDPMid: "0", Candidate: "candidate:1"},
	}
	data, err := json.Marshal(sig)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "s1", m["sessionId"])
	assert.Equal(t, "alice", m["fromPeerId"])
	assert.Equal(t, false, m["isMuted"])
	assert.NotContains(t, m, "description")
	assert.NotContains(t, m, "isVideoEnabled")
	assert.Equal(t, "bob", sig.Recipient())
}

func TestTicket_SignalURL(t *testing.T) {
	assert.Equal(t, "wss://r.example/ws", (&Ticket{SignalServer: "wss://r.example/", WebsocketPath: "/ws"}).SignalURL())
	assert.Equal(t, "wss://r.example", (&Ticket{SignalServer: "wss://r.example"}).SignalURL())
	assert.Equal(t, 3*time.Second, (&Ticket{}).Ping(3*time.Second))
}
