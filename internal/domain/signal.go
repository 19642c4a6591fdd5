package domain

// Event names used on the shared event channel. They are namespaced because
// chat, presence and notifications travel over the same channel.
const (
	EventInvite       = "call:invite"
	EventAccept       = "call:accept"
	EventReject       = "call:reject"
	EventEnd          = "call:end"
	EventMute         = "call:mute"
	EventVideo        = "call:video"
	EventCameraSwitch = "call:camera-switch"
	EventOffer        = "call:offer"
	EventAnswer       = "call:answer"
	EventCandidate    = "call:candidate"
)

// CallEvents lists every event the call core subscribes to.
var CallEvents = []string{
	EventInvite, EventAccept, EventReject, EventEnd,
	EventMute, EventVideo, EventCameraSwitch,
	EventOffer, EventAnswer, EventCandidate,
}

// SDPPayload is the JSON structure for SDP offer/answer messages.
type SDPPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidatePayload is the JSON structure for ICE candidate messages.
type ICECandidatePayload struct {
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
	Candidate     string `json:"candidate"`
}

// Signal is the payload of every call:* event. Fields not relevant to an
// event are omitted on the wire.
type Signal struct {
	SessionID      string               `json:"sessionId"`
	From           string               `json:"fromPeerId"`
	To             string               `json:"toPeerId"`
	MediaKind      MediaKind            `json:"mediaKind,omitempty"`
	IsMuted        *bool                `json:"isMuted,omitempty"`
	IsVideoEnabled *bool                `json:"isVideoEnabled,omitempty"`
	Reason         EndReason            `json:"reason,omitempty"`
	Description    *SDPPayload          `json:"description,omitempty"`
	Candidate      *ICECandidatePayload `json:"candidate,omitempty"`
}

// Bool returns a pointer to b, for the optional flag fields of Signal.
func Bool(b bool) *bool { return &b }

// Recipient returns the destination peer, used by relays that route by user.
func (s Signal) Recipient() string { return s.To }
