// Package negotiation implements the offer/answer/candidate exchange that
// establishes the peer-to-peer media path of a call.
//
// All methods except the transport callbacks are called from the call
// manager's serial event loop, so the candidate queue needs no lock.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"vico_home/callcore/internal/domain"
)

// Negotiator is the functional negotiation backend. It implements
// domain.Negotiator over a transport factory.
type Negotiator struct {
	factory   domain.TransportFactory
	resources domain.Resources
	channel   domain.EventChannel
	log       zerolog.Logger

	transport domain.Transport
	binding   domain.Binding
	remoteSet bool
	captured  bool
	pending   []domain.ICECandidatePayload

	// gen invalidates callbacks of torn-down transports.
	gen atomic.Uint64
}

// New creates a negotiator. Local capture is delegated to resources and
// outbound negotiation messages go through channel.
func New(factory domain.TransportFactory, resources domain.Resources, channel domain.EventChannel, logger zerolog.Logger) *Negotiator {
	return &Negotiator{
		factory:   factory,
		resources: resources,
		channel:   channel,
		log:       logger.With().Str("component", "negotiation").Logger(),
	}
}

// Available always reports true.
func (n *Negotiator) Available() bool { return true }

// EnsureTransport creates the transport for b on first use. Later calls for
// the same session only retry local capture if it was waiting for
// permission; a transport left over from another session is torn down
// first.
func (n *Negotiator) EnsureTransport(ctx context.Context, b domain.Binding) error {
	if n.transport != nil {
		if n.binding.SessionID == b.SessionID {
			if !n.captured {
				n.attachCapture(ctx)
			}
			return nil
		}
		n.log.Warn().Str("stale_session", n.binding.SessionID).Msg("replacing transport of previous session")
		n.Teardown()
	}

	t, err := n.factory.NewTransport(b.Kind)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransportUnavailable, err)
	}

	gen := n.gen.Add(1)
	current := func() bool { return n.gen.Load() == gen }
	l := n.log.With().Str("session_id", b.SessionID).Logger()

	t.OnLocalCandidate(func(c domain.ICECandidatePayload) {
		if !current() {
			return
		}
		sig := domain.Signal{SessionID: b.SessionID, From: b.LocalID, To: b.PeerID, Candidate: &c}
		if err := n.channel.Emit(domain.EventCandidate, sig); err != nil {
			l.Warn().Err(err).Msg("emit candidate")
		}
	})
	t.OnRemoteTrack(func(track domain.RemoteTrack) {
		if !current() {
			return
		}
		n.resources.Play(track)
	})
	t.OnStateChange(func(state domain.TransportState) {
		if !current() || b.OnStateChange == nil {
			return
		}
		b.OnStateChange(b.SessionID, state)
	})

	n.transport = t
	n.binding = b
	n.remoteSet = false
	n.captured = false
	n.pending = nil

	l.Info().Str("kind", string(b.Kind)).Msg("transport ready")
	n.attachCapture(ctx)
	return nil
}

// attachCapture starts local capture and adds its tracks to the transport.
// While permission is unresolved it leaves the transport receive-only and
// is retried by the next EnsureTransport.
func (n *Negotiator) attachCapture(ctx context.Context) {
	l := n.log.With().Str("session_id", n.binding.SessionID).Logger()

	tracks, err := n.resources.StartCapture(ctx, n.binding.Kind)
	switch {
	case errors.Is(err, domain.ErrPermissionPending):
		l.Debug().Msg("capture waiting for permission")
		return
	case err != nil:
		l.Warn().Err(err).Msg("local capture unavailable, sending no media")
	}
	n.captured = true

	if len(tracks) > 0 {
		if err := n.transport.AddLocalTracks(tracks); err != nil {
			l.Warn().Err(err).Msg("attach local tracks")
		}
	}
	l.Debug().Int("local_tracks", len(tracks)).Msg("local media attached")
}

// CreateAndSendOffer generates a local offer, applies it and emits it.
func (n *Negotiator) CreateAndSendOffer(_ context.Context, peerID, sessionID string) error {
	if err := n.check(peerID, sessionID); err != nil {
		return err
	}

	offer, err := n.transport.CreateOffer()
	if err != nil {
		return err
	}
	n.emit(domain.EventOffer, offer)
	return nil
}

// CreateAndSendAnswer generates a local answer. A remote offer must already
// be applied.
func (n *Negotiator) CreateAndSendAnswer(_ context.Context, peerID, sessionID string) error {
	if err := n.check(peerID, sessionID); err != nil {
		return err
	}
	if !n.remoteSet {
		return fmt.Errorf("%w: answer requested before remote offer", domain.ErrProtocol)
	}

	answer, err := n.transport.CreateAnswer()
	if err != nil {
		return err
	}
	n.emit(domain.EventAnswer, answer)
	return nil
}

// ApplyRemoteDescription sets the remote offer or answer, then flushes the
// buffered candidates.
func (n *Negotiator) ApplyRemoteDescription(_ context.Context, desc domain.SDPPayload) error {
	if n.transport == nil {
		return domain.ErrTransportUnavailable
	}
	if err := n.transport.SetRemoteDescription(desc); err != nil {
		return err
	}
	n.remoteSet = true
	n.flush()
	return nil
}

// OnRemoteCandidate applies c, or buffers it until a remote description exists.
func (n *Negotiator) OnRemoteCandidate(_ context.Context, c domain.ICECandidatePayload) error {
	if n.transport == nil {
		return domain.ErrTransportUnavailable
	}
	if !n.remoteSet {
		n.pending = append(n.pending, c)
		n.log.Debug().Int("pending", len(n.pending)).Msg("buffered remote candidate")
		return nil
	}
	return n.transport.AddICECandidate(c)
}

// flush drains pending in receipt order. A failing candidate is skipped.
func (n *Negotiator) flush() {
	if len(n.pending) == 0 {
		return
	}
	queue := n.pending
	n.pending = nil

	applied := 0
	for _, c := range queue {
		if err := n.transport.AddICECandidate(c); err != nil {
			n.log.Warn().Err(err).Str("candidate", c.Candidate).Msg("skipping buffered candidate")
			continue
		}
		applied++
	}
	n.log.Debug().Int("applied", applied).Int("buffered", len(queue)).Msg("flushed remote candidates")
}

// ReplaceTrack swaps an outgoing track. Without a transport it does nothing.
func (n *Negotiator) ReplaceTrack(kind domain.TrackKind, track domain.MediaTrack) error {
	if n.transport == nil {
		return nil
	}
	return n.transport.ReplaceTrack(kind, track)
}

// PendingCandidates returns the number of buffered remote candidates.
func (n *Negotiator) PendingCandidates() int { return len(n.pending) }

// Teardown closes the transport, detaches its callbacks and stops local
// tracks. It is idempotent.
func (n *Negotiator) Teardown() {
	n.gen.Add(1)
	if n.transport == nil {
		return
	}

	t := n.transport
	n.transport = nil
	n.binding = domain.Binding{}
	n.remoteSet = false
	n.captured = false
	n.pending = nil

	t.OnLocalCandidate(func(domain.ICECandidatePayload) {})
	t.OnRemoteTrack(func(domain.RemoteTrack) {})
	t.OnStateChange(func(domain.TransportState) {})
	if err := t.Close(); err != nil {
		n.log.Warn().Err(err).Msg("close transport")
	}
	n.resources.StopCapture()
	n.log.Info().Msg("transport torn down")
}

func (n *Negotiator) check(peerID, sessionID string) error {
	if n.transport == nil {
		return domain.ErrTransportUnavailable
	}
	if n.binding.SessionID != sessionID || n.binding.PeerID != peerID {
		return fmt.Errorf("%w: transport bound to session %s", domain.ErrProtocol, n.binding.SessionID)
	}
	return nil
}

func (n *Negotiator) emit(event string, desc domain.SDPPayload) {
	sig := domain.Signal{
		SessionID:   n.binding.SessionID,
		From:        n.binding.LocalID,
		To:          n.binding.PeerID,
		Description: &desc,
	}
	if err := n.channel.Emit(event, sig); err != nil {
		n.log.Warn().Err(err).Str("event", event).Msg("emit")
	}
}
