package domain

import (
	"context"
	"encoding/json"

	"github.com/pion/rtp"
)

// EventHandler receives the raw payload of one channel event.
type EventHandler func(payload json.RawMessage)

// EventChannel is the bidirectional event channel shared with the rest of
// the application. Retry, backoff and queuing are the adapter's business.
type EventChannel interface {
	// Connect is idempotent; concurrent callers share one in-flight attempt.
	Connect(ctx context.Context) error
	// Emit is fire-and-forget; a nil error does not imply delivery.
	Emit(event string, payload any) error
	// Subscribe registers handler for event. The returned func removes
	// exactly this registration.
	Subscribe(event string, handler EventHandler) (unsubscribe func())
	IsConnected() bool
}

// IdentityProvider looks up the local user.
type IdentityProvider interface {
	CurrentUserID() (string, error)
}

// TrackKind distinguishes audio from video tracks.
type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// MediaTrack is a local capture track.
type MediaTrack interface {
	ID() string
	Kind() TrackKind
	Close() error
}

// RemoteTrack is an inbound media track delivered by the transport.
type RemoteTrack interface {
	ID() string
	Kind() TrackKind
	MimeType() string
	ReadRTP() (*rtp.Packet, error)
}

// TransportState is the connectivity state of a media transport.
type TransportState string

const (
	TransportNew          TransportState = "new"
	TransportConnecting   TransportState = "connecting"
	TransportConnected    TransportState = "connected"
	TransportDisconnected TransportState = "disconnected"
	TransportFailed       TransportState = "failed"
	TransportClosed       TransportState = "closed"
)

// Transport is one peer-to-peer media transport.
type Transport interface {
	OnLocalCandidate(fn func(ICECandidatePayload))
	OnRemoteTrack(fn func(RemoteTrack))
	OnStateChange(fn func(TransportState))
	AddLocalTracks(tracks []MediaTrack) error
	ReplaceTrack(kind TrackKind, track MediaTrack) error
	CreateOffer() (SDPPayload, error)
	CreateAnswer() (SDPPayload, error)
	SetRemoteDescription(desc SDPPayload) error
	AddICECandidate(c ICECandidatePayload) error
	Close() error
}

// TransportFactory creates transports. Its absence is the signaling-only
// fallback mode.
type TransportFactory interface {
	NewTransport(kind MediaKind) (Transport, error)
}

// Binding ties a transport to one call attempt.
type Binding struct {
	SessionID string
	LocalID   string
	PeerID    string
	Kind      MediaKind
	// OnStateChange is called from transport goroutines.
	OnStateChange func(sessionID string, state TransportState)
}

// Negotiator is the media negotiation subsystem.
type Negotiator interface {
	Available() bool
	EnsureTransport(ctx context.Context, b Binding) error
	CreateAndSendOffer(ctx context.Context, peerID, sessionID string) error
	CreateAndSendAnswer(ctx context.Context, peerID, sessionID string) error
	ApplyRemoteDescription(ctx context.Context, desc SDPPayload) error
	OnRemoteCandidate(ctx context.Context, c ICECandidatePayload) error
	ReplaceTrack(kind TrackKind, track MediaTrack) error
	PendingCandidates() int
	Teardown()
}

// CaptureDevice is the platform's microphone/camera backend.
type CaptureDevice interface {
	RequestPermission(ctx context.Context, kind MediaKind) error
	ConfigureAudioSession() error
	OpenMicrophone(ctx context.Context) (MediaTrack, error)
	OpenCamera(ctx context.Context, deviceID string) (MediaTrack, error)
	Cameras() []string
}

// Resources owns local capture and playback for the current call.
//
// RequestPermission only asks; the outcome takes effect when passed to
// InitializeAudio. Capture is refused until then.
type Resources interface {
	RequestPermission(ctx context.Context, kind MediaKind) error
	InitializeAudio(kind MediaKind, granted bool)
	StartCapture(ctx context.Context, kind MediaKind) ([]MediaTrack, error)
	StopCapture()
	ApplyMuteState(ctx context.Context, muted bool) (MediaTrack, error)
	ApplyVideoState(ctx context.Context, enabled bool) (MediaTrack, error)
	SwitchCamera(ctx context.Context) (MediaTrack, error)
	Play(track RemoteTrack)
	CleanupAll()
}
