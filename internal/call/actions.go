package call

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"vico_home/callcore/internal/domain"
)

// StartCall rings peerID. It fails fast without a local identity and while
// another call exists.
func (m *Manager) StartCall(ctx context.Context, peerID string, kind domain.MediaKind) (*domain.CallSession, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMediaKind, kind)
	}
	localID, err := m.identity.CurrentUserID()
	if err != nil {
		return nil, fmt.Errorf("start call: %w", err)
	}
	if peerID == "" || peerID == localID {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPeer, peerID)
	}
	if m.State() != nil {
		return nil, domain.ErrCallInProgress
	}

	if err := m.channel.Connect(ctx); err != nil {
		m.log.Warn().Err(err).Msg("event channel not connected, invite may be lost")
	}

	var started *domain.CallSession
	err = m.do(func() error {
		if m.session != nil {
			return domain.ErrCallInProgress
		}
		m.localID = localID
		m.session = &domain.CallSession{
			SessionID:        uuid.NewString(),
			Role:             domain.RoleCaller,
			PeerID:           peerID,
			MediaKind:        kind,
			Phase:            domain.PhaseOutgoing,
			NegotiationPhase: domain.NegotiationNone,
			IsVideoEnabled:   kind == domain.MediaVideo,
			StartedAt:        m.clock.Now(),
		}
		m.emit(domain.EventInvite, domain.Signal{MediaKind: kind})
		m.startRingTimer()
		m.publish(true)
		started = m.session.Clone()
		m.slog().Info().Str("kind", string(kind)).Msg("calling")
		return nil
	})
	if err != nil {
		return nil, err
	}

	go m.acquireMedia(started.SessionID, kind)
	return started, nil
}

// acquireMedia requests capture permission off the loop. The outcome is
// applied only if the session it was requested for is still current; an
// offer held back by an early accept goes out then.
func (m *Manager) acquireMedia(sessionID string, kind domain.MediaKind) {
	err := m.resources.RequestPermission(m.ctx, kind)
	m.post(func() {
		if !m.current(sessionID) {
			m.log.Debug().Str("session_id", sessionID).Msg("discarding permission result for finished call")
			return
		}
		m.applyPermission(kind, err)
		if m.offerPending {
			m.offerPending = false
			m.sendOffer()
			m.publish(true)
			return
		}
		m.ensureTransport()
		m.publish(false)
	})
}

// AcceptCall answers the incoming call.
func (m *Manager) AcceptCall(ctx context.Context) error {
	snap := m.State()
	if snap == nil || snap.Phase != domain.PhaseIncoming {
		return domain.ErrNoIncomingCall
	}
	permErr := m.resources.RequestPermission(ctx, snap.MediaKind)

	return m.do(func() error {
		if !m.current(snap.SessionID) || m.session.Phase != domain.PhaseIncoming {
			return domain.ErrNoIncomingCall
		}
		m.applyPermission(snap.MediaKind, permErr)
		m.emit(domain.EventAccept, domain.Signal{})
		m.session.Phase = domain.PhaseActive
		m.startDuration()
		m.slog().Info().Msg("call accepted")

		if m.ensureTransport() && m.negotiator.Available() {
			if m.session.NegotiationPhase == domain.NegotiationOfferReceived {
				m.sendAnswer()
			}
			m.startNegotiationTimer()
		}
		m.publish(true)
		return nil
	})
}

// RejectCall declines the incoming call.
func (m *Manager) RejectCall(context.Context) error {
	return m.do(func() error {
		if m.session == nil || m.session.Phase != domain.PhaseIncoming {
			return domain.ErrNoIncomingCall
		}
		m.emit(domain.EventReject, domain.Signal{Reason: domain.EndRejected})
		m.finish(domain.EndRejected)
		return nil
	})
}

// EndCall hangs up. An incoming call is rejected instead. Without a session
// it does nothing.
func (m *Manager) EndCall(context.Context) error {
	return m.do(func() error {
		if m.session == nil {
			return nil
		}
		if m.session.Phase == domain.PhaseIncoming {
			m.emit(domain.EventReject, domain.Signal{Reason: domain.EndRejected})
			m.finish(domain.EndRejected)
			return nil
		}
		m.emit(domain.EventEnd, domain.Signal{Reason: domain.EndHangup})
		m.finish(domain.EndHangup)
		return nil
	})
}

// ToggleMute flips the local mute flag and returns the new value.
func (m *Manager) ToggleMute(ctx context.Context) (bool, error) {
	var muted bool
	err := m.do(func() error {
		if m.session == nil || m.session.Phase != domain.PhaseActive {
			return domain.ErrNoActiveCall
		}
		muted = !m.session.IsMuted
		m.session.IsMuted = muted

		track, err := m.resources.ApplyMuteState(ctx, muted)
		if err != nil {
			m.slog().Warn().Err(err).Bool("muted", muted).Msg("apply mute state")
		} else if err := m.negotiator.ReplaceTrack(domain.TrackAudio, track); err != nil {
			m.slog().Warn().Err(err).Msg("replace audio track")
		}

		m.emit(domain.EventMute, domain.Signal{IsMuted: domain.Bool(muted)})
		m.publish(true)
		return nil
	})
	return muted, err
}

// ToggleVideo flips the local camera flag and returns the new value.
func (m *Manager) ToggleVideo(ctx context.Context) (bool, error) {
	var enabled bool
	err := m.do(func() error {
		if m.session == nil || m.session.Phase != domain.PhaseActive {
			return domain.ErrNoActiveCall
		}
		enabled = !m.session.IsVideoEnabled
		m.session.IsVideoEnabled = enabled

		track, err := m.resources.ApplyVideoState(ctx, enabled)
		if err != nil {
			m.slog().Warn().Err(err).Bool("enabled", enabled).Msg("apply video state")
		} else if err := m.negotiator.ReplaceTrack(domain.TrackVideo, track); err != nil {
			m.slog().Warn().Err(err).Msg("replace video track")
		}

		m.emit(domain.EventVideo, domain.Signal{IsVideoEnabled: domain.Bool(enabled)})
		m.publish(true)
		return nil
	})
	return enabled, err
}

// SwitchCamera moves to the next camera on a video call.
func (m *Manager) SwitchCamera(ctx context.Context) error {
	return m.do(func() error {
		if m.session == nil || m.session.Phase != domain.PhaseActive {
			return domain.ErrNoActiveCall
		}
		if m.session.MediaKind != domain.MediaVideo {
			return fmt.Errorf("%w: camera switch on a voice call", domain.ErrInvalidMediaKind)
		}

		track, err := m.resources.SwitchCamera(ctx)
		if err != nil {
			m.slog().Warn().Err(err).Msg("switch camera")
		} else if track != nil {
			if err := m.negotiator.ReplaceTrack(domain.TrackVideo, track); err != nil {
				m.slog().Warn().Err(err).Msg("replace video track")
			}
		}

		m.emit(domain.EventCameraSwitch, domain.Signal{})
		return nil
	})
}
