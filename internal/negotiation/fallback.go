package negotiation

import (
	"context"

	"github.com/rs/zerolog"

	"vico_home/callcore/internal/domain"
)

// SignalingOnly is the negotiation backend used when no media transport
// exists on the runtime. Call control keeps working; no media flows and no
// negotiation message is ever emitted.
type SignalingOnly struct {
	log zerolog.Logger
}

// NewSignalingOnly creates the fallback backend.
func NewSignalingOnly(logger zerolog.Logger) *SignalingOnly {
	return &SignalingOnly{log: logger.With().Str("component", "negotiation").Str("mode", "signaling-only").Logger()}
}

func (s *SignalingOnly) Available() bool { return false }

func (s *SignalingOnly) EnsureTransport(_ context.Context, b domain.Binding) error {
	s.log.Debug().Str("session_id", b.SessionID).Msg("no media transport, continuing without media")
	return nil
}

func (s *SignalingOnly) CreateAndSendOffer(context.Context, string, string) error  { return nil }
func (s *SignalingOnly) CreateAndSendAnswer(context.Context, string, string) error { return nil }

func (s *SignalingOnly) ApplyRemoteDescription(context.Context, domain.SDPPayload) error {
	return nil
}

func (s *SignalingOnly) OnRemoteCandidate(context.Context, domain.ICECandidatePayload) error {
	return nil
}

func (s *SignalingOnly) ReplaceTrack(domain.TrackKind, domain.MediaTrack) error { return nil }
func (s *SignalingOnly) PendingCandidates() int                                 { return 0 }
func (s *SignalingOnly) Teardown()                                              {}
