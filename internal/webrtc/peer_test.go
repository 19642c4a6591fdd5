package webrtc

import (
	"testing"

	pion "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vico_home/callcore/internal/domain"
)

func newTestFactory(t *testing.T) *Factory {
	t.Helper()
	f, err := NewFactory(nil, nil, zerolog.Nop())
	require.NoError(t, err)
	return f
}

func TestProbe(t *testing.T) {
	assert.NoError(t, Probe())
}

func TestPeer_OfferAnswerExchange(t *testing.T) {
	f := newTestFactory(t)

	caller, err := f.NewTransport(domain.MediaVideo)
	require.NoError(t, err)
	defer caller.Close()
	callee, err := f.NewTransport(domain.MediaVideo)
	require.NoError(t, err)
	defer callee.Close()

	offer, err := caller.CreateOffer()
	require.NoError(t, err)
	assert.Equal(t, "offer", offer.Type)
	assert.Contains(t, offer.SDP, "m=audio")
	assert.Contains(t, offer.SDP, "m=video")

	require.NoError(t, callee.SetRemoteDescription(offer))
	answer, err := callee.CreateAnswer()
	require.NoError(t, err)
	assert.Equal(t, "answer", answer.Type)

	require.NoError(t, caller.SetRemoteDescription(answer))
}

func TestPeer_VoiceOfferHasNoVideo(t *testing.T) {
	f := newTestFactory(t)

	p, err := f.NewTransport(domain.MediaVoice)
	require.NoError(t, err)
	defer p.Close()

	offer, err := p.CreateOffer()
	require.NoError(t, err)
	assert.Contains(t, offer.SDP, "m=audio")
	assert.NotContains(t, offer.SDP, "m=video")
}

func TestPeer_RejectsUnknownDescriptionType(t *testing.T) {
	p, err := newTestFactory(t).NewTransport(domain.MediaVoice)
	require.NoError(t, err)
	defer p.Close()

	err = p.SetRemoteDescription(domain.SDPPayload{Type: "pranswer-ish", SDP: "v=0"})
	assert.ErrorIs(t, err, domain.ErrProtocol)
}

func TestPeer_CandidateBeforeRemoteDescriptionFails(t *testing.T) {
	p, err := newTestFactory(t).NewTransport(domain.MediaVoice)
	require.NoError(t, err)
	defer p.Close()

	err = p.AddICECandidate(domain.ICECandidatePayload{
		Candidate: "candidate:1 1 udp 2130706431 192.0.2.1 5000 typ host",
	})
	assert.Error(t, err)
}

func TestPeer_CloseIdempotent(t *testing.T) {
	p, err := newTestFactory(t).NewTransport(domain.MediaVoice)
	require.NoError(t, err)
	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
}

func TestPeer_ReplaceTrackWithoutSender(t *testing.T) {
	p, err := newTestFactory(t).NewTransport(domain.MediaVoice)
	require.NoError(t, err)
	defer p.Close()

	assert.NoError(t, p.ReplaceTrack(domain.TrackAudio, nil))
}

func TestMapState(t *testing.T) {
	cases := map[pion.PeerConnectionState]domain.TransportState{
		pion.PeerConnectionStateNew:          domain.TransportNew,
		pion.PeerConnectionStateConnecting:   domain.TransportConnecting,
		pion.PeerConnectionStateConnected:    domain.TransportConnected,
		pion.PeerConnectionStateDisconnected: domain.TransportDisconnected,
		pion.PeerConnectionStateFailed:       domain.TransportFailed,
		pion.PeerConnectionStateClosed:       domain.TransportClosed,
	}
	for in, want := range cases {
		assert.Equal(t, want, mapState(in), in.String())
	}
}

func TestIsLoopback(t *testing.T) {
	assert.True(t, isLoopback("candidate:1 1 udp 1 127.0.0.1 5000 typ host"))
	assert.True(t, isLoopback("candidate:1 1 udp 1 ::1 5000 typ host"))
	assert.False(t, isLoopback("candidate:1 1 udp 1 192.0.2.1 5000 typ host"))
}
