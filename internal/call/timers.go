package call

import (
	"time"

	"vico_home/callcore/internal/domain"
)

// Timer callbacks run off the loop; each posts back with the session id it
// was armed for and is ignored once that session is gone.

func (m *Manager) startRingTimer() {
	id := m.session.SessionID
	m.ringTimer = m.clock.AfterFunc(m.ringTimeout, func() {
		m.post(func() { m.onRingTimeout(id) })
	})
}

func (m *Manager) stopRingTimer() {
	if m.ringTimer == nil {
		return
	}
	m.ringTimer.Stop()
	m.ringTimer = nil
}

func (m *Manager) onRingTimeout(sessionID string) {
	if !m.current(sessionID) || m.session.Phase != domain.PhaseOutgoing {
		return
	}
	m.ringTimer = nil
	m.slog().Info().Dur("after", m.ringTimeout).Msg("no answer")
	m.emit(domain.EventEnd, domain.Signal{Reason: domain.EndTimeout})
	m.finish(domain.EndTimeout)
}

// startDuration marks the session active and publishes the duration once a
// second.
func (m *Manager) startDuration() {
	m.activeAt = m.clock.Now()
	m.session.DurationSeconds = 0

	id := m.session.SessionID
	ticker := m.clock.Ticker(time.Second)
	stop := make(chan struct{})
	m.ticker, m.stopTicker = ticker, stop

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.post(func() {
					if m.current(id) {
						m.publish(true)
					}
				})
			}
		}
	}()
}

func (m *Manager) stopDuration() {
	if m.ticker == nil {
		return
	}
	m.ticker.Stop()
	close(m.stopTicker)
	m.ticker, m.stopTicker = nil, nil
}

func (m *Manager) startNegotiationTimer() {
	if m.negotiationTimeout <= 0 || !m.negotiator.Available() || m.negTimer != nil {
		return
	}
	id := m.session.SessionID
	m.negTimer = m.clock.AfterFunc(m.negotiationTimeout, func() {
		m.post(func() { m.onNegotiationTimeout(id) })
	})
}

func (m *Manager) stopNegotiationTimer() {
	if m.negTimer == nil {
		return
	}
	m.negTimer.Stop()
	m.negTimer = nil
}

// onNegotiationTimeout drops the media path of a call that never connected.
// Call control stays up.
func (m *Manager) onNegotiationTimeout(sessionID string) {
	if !m.current(sessionID) || m.session.NegotiationPhase == domain.NegotiationEstablished {
		return
	}
	m.negTimer = nil
	m.slog().Warn().
		Dur("after", m.negotiationTimeout).
		Str("negotiation", string(m.session.NegotiationPhase)).
		Msg("media negotiation timed out, continuing without media")
	m.negotiator.Teardown()
	m.mediaAbandoned = true
	m.session.MediaDegraded = true
	m.publish(true)
}
