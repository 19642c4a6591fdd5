package call

import (
	"vico_home/callcore/internal/domain"
)

func (m *Manager) dispatch(event string, sig domain.Signal) {
	if sig.SessionID == "" || sig.From == "" {
		m.log.Debug().Str("event", event).Msg("ignoring signal without session or sender")
		return
	}
	if self := m.self(); sig.To != "" && self != "" && sig.To != self {
		m.log.Debug().Str("event", event).Str("to", sig.To).Msg("ignoring signal for another user")
		return
	}

	if event == domain.EventInvite {
		m.onInvite(sig)
		return
	}

	// Every other event must belong to the live session and come from its peer.
	if !m.current(sig.SessionID) || sig.From != m.session.PeerID {
		m.log.Debug().
			Str("event", event).
			Str("session_id", sig.SessionID).
			Str("from", sig.From).
			Msg("ignoring signal for another session")
		return
	}

	switch event {
	case domain.EventAccept:
		m.onAccept()
	case domain.EventReject:
		m.onReject(sig)
	case domain.EventEnd:
		m.onEnd()
	case domain.EventMute:
		if sig.IsMuted != nil {
			m.session.RemoteMuted = *sig.IsMuted
			m.publish(true)
		}
	case domain.EventVideo:
		if sig.IsVideoEnabled != nil {
			m.session.RemoteVideoEnabled = *sig.IsVideoEnabled
			m.publish(true)
		}
	case domain.EventCameraSwitch:
		m.slog().Debug().Msg("peer switched camera")
	case domain.EventOffer:
		m.onOffer(sig)
	case domain.EventAnswer:
		m.onAnswer(sig)
	case domain.EventCandidate:
		m.onCandidate(sig)
	}
}

func (m *Manager) onInvite(sig domain.Signal) {
	if m.session != nil {
		if m.session.SessionID == sig.SessionID {
			return
		}
		m.slog().Info().Str("caller", sig.From).Msg("busy, rejecting invite")
		busy := domain.Signal{
			SessionID: sig.SessionID,
			From:      m.localID,
			To:        sig.From,
			Reason:    domain.EndBusy,
		}
		if err := m.channel.Emit(domain.EventReject, busy); err != nil {
			m.slog().Warn().Err(err).Msg("emit busy reject")
		}
		return
	}

	if !sig.MediaKind.Valid() {
		m.log.Warn().Str("session_id", sig.SessionID).Str("kind", string(sig.MediaKind)).Msg("invite with unknown media kind")
		return
	}
	localID, err := m.identity.CurrentUserID()
	if err != nil {
		m.log.Warn().Err(err).Msg("ignoring invite without local identity")
		return
	}

	m.localID = localID
	m.session = &domain.CallSession{
		SessionID:          sig.SessionID,
		Role:               domain.RoleCallee,
		PeerID:             sig.From,
		MediaKind:          sig.MediaKind,
		Phase:              domain.PhaseIncoming,
		NegotiationPhase:   domain.NegotiationNone,
		IsVideoEnabled:     sig.MediaKind == domain.MediaVideo,
		RemoteVideoEnabled: sig.MediaKind == domain.MediaVideo,
		StartedAt:          m.clock.Now(),
	}
	m.slog().Info().Str("kind", string(sig.MediaKind)).Msg("incoming call")
	m.publish(true)
}

func (m *Manager) onAccept() {
	if m.session.Phase != domain.PhaseOutgoing {
		return
	}
	m.stopRingTimer()
	m.session.Phase = domain.PhaseActive
	m.startDuration()
	m.slog().Info().Msg("peer accepted")

	if m.mediaReady {
		m.sendOffer()
	} else {
		m.offerPending = true
	}
	m.publish(true)
}

// sendOffer starts negotiation on the caller side. Local tracks must be
// settled first so the offer carries them.
func (m *Manager) sendOffer() {
	if !m.ensureTransport() || !m.negotiator.Available() {
		return
	}
	if err := m.negotiator.CreateAndSendOffer(m.ctx, m.session.PeerID, m.session.SessionID); err != nil {
		m.slog().Warn().Err(err).Msg("create offer")
		m.session.MediaDegraded = true
	} else {
		m.advance(domain.NegotiationOfferSent)
	}
	m.startNegotiationTimer()
}

func (m *Manager) onReject(sig domain.Signal) {
	if m.session.Phase != domain.PhaseOutgoing {
		return
	}
	reason := domain.EndRejected
	if sig.Reason == domain.EndBusy {
		reason = domain.EndBusy
	}
	m.finish(reason)
}

func (m *Manager) onEnd() {
	switch m.session.Phase {
	case domain.PhaseOutgoing, domain.PhaseIncoming, domain.PhaseActive:
		m.finish(domain.EndRemoteHangup)
	}
}

func (m *Manager) onOffer(sig domain.Signal) {
	l := m.slog()
	if sig.Description == nil || sig.Description.Type != "offer" {
		l.Warn().Err(domain.ErrProtocol).Msg("offer without offer description")
		return
	}
	if !m.session.NegotiationPhase.CanAdvanceTo(domain.NegotiationOfferReceived) {
		l.Warn().Err(domain.ErrProtocol).Str("negotiation", string(m.session.NegotiationPhase)).Msg("unexpected offer")
		return
	}
	if !m.ensureTransport() {
		m.publish(true)
		return
	}
	if err := m.negotiator.ApplyRemoteDescription(m.ctx, *sig.Description); err != nil {
		l.Warn().Err(err).Msg("apply offer")
		return
	}
	m.advance(domain.NegotiationOfferReceived)

	if m.session.Phase == domain.PhaseActive {
		m.sendAnswer()
	}
	m.publish(true)
}

func (m *Manager) sendAnswer() {
	if err := m.negotiator.CreateAndSendAnswer(m.ctx, m.session.PeerID, m.session.SessionID); err != nil {
		m.slog().Warn().Err(err).Msg("create answer")
		m.session.MediaDegraded = true
		return
	}
	m.advance(domain.NegotiationAnswerSent)
}

func (m *Manager) onAnswer(sig domain.Signal) {
	l := m.slog()
	if sig.Description == nil || sig.Description.Type != "answer" {
		l.Warn().Err(domain.ErrProtocol).Msg("answer without answer description")
		return
	}
	if !m.session.NegotiationPhase.CanAdvanceTo(domain.NegotiationAnswerReceived) {
		l.Warn().Err(domain.ErrProtocol).Str("negotiation", string(m.session.NegotiationPhase)).Msg("unexpected answer")
		return
	}
	if !m.ensureTransport() {
		m.publish(true)
		return
	}
	if err := m.negotiator.ApplyRemoteDescription(m.ctx, *sig.Description); err != nil {
		l.Warn().Err(err).Msg("apply answer")
		return
	}
	m.advance(domain.NegotiationAnswerReceived)
	m.publish(true)
}

func (m *Manager) onCandidate(sig domain.Signal) {
	if sig.Candidate == nil {
		m.slog().Warn().Err(domain.ErrProtocol).Msg("candidate message without candidate")
		return
	}
	if !m.ensureTransport() {
		return
	}
	if err := m.negotiator.OnRemoteCandidate(m.ctx, *sig.Candidate); err != nil {
		m.slog().Warn().Err(err).Msg("apply remote candidate")
	}
	m.publish(false)
}

func (m *Manager) onTransportState(sessionID string, state domain.TransportState) {
	if !m.current(sessionID) {
		return
	}
	l := m.slog()
	switch state {
	case domain.TransportConnected:
		if m.advance(domain.NegotiationEstablished) {
			m.stopNegotiationTimer()
			m.session.MediaDegraded = false
			l.Info().Msg("media established")
			m.publish(true)
		}
	case domain.TransportFailed:
		l.Warn().Msg("media transport failed, continuing without media")
		m.session.MediaDegraded = true
		m.publish(true)
	case domain.TransportDisconnected:
		l.Info().Msg("media transport disconnected")
	}
}
