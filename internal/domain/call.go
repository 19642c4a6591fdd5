package domain

import "time"

// Role is fixed for the lifetime of a session.
type Role string

const (
	RoleCaller Role = "caller"
	RoleCallee Role = "callee"
)

// MediaKind decides whether a camera is captured in addition to the microphone.
type MediaKind string

const (
	MediaVoice MediaKind = "voice"
	MediaVideo MediaKind = "video"
)

// Valid reports whether k is a known media kind.
func (k MediaKind) Valid() bool {
	return k == MediaVoice || k == MediaVideo
}

// Phase is the call-control state of a session.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseOutgoing Phase = "outgoing"
	PhaseIncoming Phase = "incoming"
	PhaseActive   Phase = "active"
	PhaseEnded    Phase = "ended"
)

// NegotiationPhase tracks media negotiation independently of Phase, since
// offers and answers may lag or race the call-control messages.
type NegotiationPhase string

const (
	NegotiationNone           NegotiationPhase = "none"
	NegotiationOfferSent      NegotiationPhase = "offer-sent"
	NegotiationOfferReceived  NegotiationPhase = "offer-received"
	NegotiationAnswerSent     NegotiationPhase = "answer-sent"
	NegotiationAnswerReceived NegotiationPhase = "answer-received"
	NegotiationEstablished    NegotiationPhase = "established"
)

func (p NegotiationPhase) rank() int {
	switch p {
	case NegotiationNone:
		return 0
	case NegotiationOfferSent, NegotiationOfferReceived:
		return 1
	case NegotiationAnswerSent, NegotiationAnswerReceived:
		return 2
	case NegotiationEstablished:
		return 3
	}
	return -1
}

// CanAdvanceTo reports whether next is the immediate successor of p.
// An offer-sent session can only move to answer-received and an
// offer-received session only to answer-sent.
func (p NegotiationPhase) CanAdvanceTo(next NegotiationPhase) bool {
	if next.rank() != p.rank()+1 {
		return false
	}
	switch p {
	case NegotiationOfferSent:
		return next == NegotiationAnswerReceived
	case NegotiationOfferReceived:
		return next == NegotiationAnswerSent
	}
	return true
}

// EndReason explains why a session reached PhaseEnded.
type EndReason string

const (
	EndHangup       EndReason = "hangup"
	EndRemoteHangup EndReason = "remote-hangup"
	EndRejected     EndReason = "rejected"
	EndTimeout      EndReason = "timeout"
	EndBusy         EndReason = "busy"
	EndShutdown     EndReason = "shutdown"
)

// CallSession is the single stateful entity of the call core. Only the call
// manager writes it; everything else receives copies.
type CallSession struct {
	SessionID        string           `json:"sessionId"`
	Role             Role             `json:"role"`
	PeerID           string           `json:"peerId"`
	MediaKind        MediaKind        `json:"mediaKind"`
	Phase            Phase            `json:"phase"`
	NegotiationPhase NegotiationPhase `json:"negotiationPhase"`
	IsMuted          bool             `json:"isMuted"`
	IsVideoEnabled   bool             `json:"isVideoEnabled"`
	DurationSeconds  int              `json:"durationSeconds"`

	// Peer-reported flags, display only.
	RemoteMuted        bool `json:"remoteMuted"`
	RemoteVideoEnabled bool `json:"remoteVideoEnabled"`

	// PendingCandidates mirrors the negotiator's buffered remote candidates.
	PendingCandidates int       `json:"pendingCandidates"`
	MediaDegraded     bool      `json:"mediaDegraded"`
	StartedAt         time.Time `json:"startedAt"`
	EndReason         EndReason `json:"endReason,omitempty"`
}

// Clone returns a copy safe to hand to observers.
func (s *CallSession) Clone() *CallSession {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
