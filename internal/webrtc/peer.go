package webrtc

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	pion "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"vico_home/callcore/internal/domain"
)

const keyframeInterval = 3 * time.Second

// pionTrack is implemented by capture tracks that can be sent by pion.
type pionTrack interface {
	TrackLocal() pion.TrackLocal
}

// Peer wraps a Pion PeerConnection for one call. It implements domain.Transport.
type Peer struct {
	pc   *pion.PeerConnection
	kind domain.MediaKind
	log  zerolog.Logger

	mu      sync.Mutex
	senders map[domain.TrackKind]*pion.RTPSender
	closed  bool
	done    chan struct{}
}

func newPeer(pc *pion.PeerConnection, kind domain.MediaKind, logger zerolog.Logger) *Peer {
	return &Peer{
		pc:      pc,
		kind:    kind,
		log:     logger,
		senders: make(map[domain.TrackKind]*pion.RTPSender),
		done:    make(chan struct{}),
	}
}

// OnLocalCandidate registers the callback for locally discovered ICE candidates.
func (p *Peer) OnLocalCandidate(send func(domain.ICECandidatePayload)) {
	p.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			p.log.Debug().Msg("ICE gathering complete")
			return
		}

		init := c.ToJSON()
		if isLoopback(init.Candidate) {
			p.log.Debug().Msg("filtering loopback ICE candidate")
			return
		}

		payload := domain.ICECandidatePayload{Candidate: init.Candidate}
		if init.SDPMid != nil {
			payload.SDPMid = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			payload.SDPMLineIndex = int(*init.SDPMLineIndex)
		}

		p.log.Debug().Str("candidate", init.Candidate).Msg("local ICE candidate")
		send(payload)
	})
}

// OnRemoteTrack registers the handler for inbound media. Video tracks also get
// periodic keyframe requests until the peer closes.
func (p *Peer) OnRemoteTrack(fn func(domain.RemoteTrack)) {
	p.pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		codec := track.Codec()
		p.log.Info().
			Str("kind", track.Kind().String()).
			Str("codec", codec.MimeType).
			Uint8("pt", uint8(codec.PayloadType)).
			Msg("got remote track")

		if track.Kind() == pion.RTPCodecTypeVideo {
			go p.requestKeyframes(uint32(track.SSRC()))
		}
		fn(&remoteTrack{t: track})
	})
}

// OnStateChange registers the handler for connection state changes.
func (p *Peer) OnStateChange(fn func(domain.TransportState)) {
	p.pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		p.log.Debug().Str("state", state.String()).Msg("ICE connection state")
	})
	p.pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		p.log.Info().Str("state", state.String()).Msg("peer connection state")
		fn(mapState(state))
	})
}

// AddLocalTracks attaches capture tracks to the connection.
func (p *Peer) AddLocalTracks(tracks []domain.MediaTrack) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, t := range tracks {
		local, ok := t.(pionTrack)
		if !ok {
			errs = append(errs, fmt.Errorf("track %s: not a pion track", t.ID()))
			continue
		}
		sender, err := p.pc.AddTrack(local.TrackLocal())
		if err != nil {
			errs = append(errs, fmt.Errorf("add %s track: %w", t.Kind(), err))
			continue
		}
		p.senders[t.Kind()] = sender
		go drainRTCP(sender)
	}
	return errors.Join(errs...)
}

// ReplaceTrack swaps the outgoing track of kind. A nil track stops sending
// without renegotiation.
func (p *Peer) ReplaceTrack(kind domain.TrackKind, track domain.MediaTrack) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	sender, ok := p.senders[kind]
	if !ok {
		if track == nil {
			return nil
		}
		return fmt.Errorf("no %s sender", kind)
	}
	if track == nil {
		return sender.ReplaceTrack(nil)
	}
	local, ok := track.(pionTrack)
	if !ok {
		return fmt.Errorf("track %s: not a pion track", track.ID())
	}
	return sender.ReplaceTrack(local.TrackLocal())
}

// CreateOffer creates an SDP offer and sets it as the local description.
func (p *Peer) CreateOffer() (domain.SDPPayload, error) {
	if err := p.ensureReceivers(); err != nil {
		return domain.SDPPayload{}, err
	}

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return domain.SDPPayload{}, fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return domain.SDPPayload{}, fmt.Errorf("set local description: %w", err)
	}

	p.log.Debug().Msg("local SDP offer set")
	return domain.SDPPayload{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

// CreateAnswer creates an SDP answer and sets it as the local description.
func (p *Peer) CreateAnswer() (domain.SDPPayload, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SDPPayload{}, fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return domain.SDPPayload{}, fmt.Errorf("set local description: %w", err)
	}

	p.log.Debug().Msg("local SDP answer set")
	return domain.SDPPayload{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

// SetRemoteDescription applies a remote offer or answer.
func (p *Peer) SetRemoteDescription(sdp domain.SDPPayload) error {
	typ := pion.NewSDPType(sdp.Type)
	if typ != pion.SDPTypeOffer && typ != pion.SDPTypeAnswer {
		return fmt.Errorf("%w: unexpected description type %q", domain.ErrProtocol, sdp.Type)
	}

	if err := p.pc.SetRemoteDescription(pion.SessionDescription{Type: typ, SDP: sdp.SDP}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	p.log.Debug().Str("type", sdp.Type).Msg("remote SDP set")
	return nil
}

// AddICECandidate adds one remote candidate. The remote description must
// already be set.
func (p *Peer) AddICECandidate(candidate domain.ICECandidatePayload) error {
	sdpMLineIndex := uint16(candidate.SDPMLineIndex)
	init := pion.ICECandidateInit{
		Candidate:     candidate.Candidate,
		SDPMid:        &candidate.SDPMid,
		SDPMLineIndex: &sdpMLineIndex,
	}

	if err := p.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

// Close shuts down the PeerConnection. It is idempotent.
func (p *Peer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	return p.pc.Close()
}

// ensureReceivers adds recvonly transceivers for media kinds that have no
// local track, so the offer always carries an m-line per kind.
func (p *Peer) ensureReceivers() error {
	kinds := []pion.RTPCodecType{pion.RTPCodecTypeAudio}
	if p.kind == domain.MediaVideo {
		kinds = append(kinds, pion.RTPCodecTypeVideo)
	}

	for _, k := range kinds {
		present := false
		for _, t := range p.pc.GetTransceivers() {
			if t.Kind() == k {
				present = true
				break
			}
		}
		if present {
			continue
		}
		if _, err := p.pc.AddTransceiverFromKind(k, pion.RTPTransceiverInit{
			Direction: pion.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return fmt.Errorf("add %s transceiver: %w", k, err)
		}
	}
	return nil
}

func (p *Peer) requestKeyframes(ssrc uint32) {
	ticker := time.NewTicker(keyframeInterval)
	defer ticker.Stop()

	for {
		if err := p.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: ssrc}}); err != nil {
			return
		}
		select {
		case <-p.done:
			return
		case <-ticker.C:
		}
	}
}

// drainRTCP reads sender reports so interceptors (NACK) keep working.
func drainRTCP(sender *pion.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func mapState(s pion.PeerConnectionState) domain.TransportState {
	switch s {
	case pion.PeerConnectionStateConnecting:
		return domain.TransportConnecting
	case pion.PeerConnectionStateConnected:
		return domain.TransportConnected
	case pion.PeerConnectionStateDisconnected:
		return domain.TransportDisconnected
	case pion.PeerConnectionStateFailed:
		return domain.TransportFailed
	case pion.PeerConnectionStateClosed:
		return domain.TransportClosed
	}
	return domain.TransportNew
}

func isLoopback(candidate string) bool {
	return strings.Contains(candidate, "127.0.0.1") || strings.Contains(candidate, "::1 ")
}

// remoteTrack adapts a pion TrackRemote to domain.RemoteTrack.
type remoteTrack struct {
	t *pion.TrackRemote
}

func (r *remoteTrack) ID() string       { return r.t.ID() }
func (r *remoteTrack) MimeType() string { return r.t.Codec().MimeType }

func (r *remoteTrack) Kind() domain.TrackKind {
	if r.t.Kind() == pion.RTPCodecTypeVideo {
		return domain.TrackVideo
	}
	return domain.TrackAudio
}

func (r *remoteTrack) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := r.t.ReadRTP()
	return pkt, err
}
