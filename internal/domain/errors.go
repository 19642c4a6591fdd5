package domain

import "errors"

// Usage errors, returned to the caller of a local action.
var (
	// ErrNoIdentity indicates no local user identity is available.
	ErrNoIdentity = errors.New("no local identity")

	// ErrCallInProgress indicates a session is already outgoing, incoming or active.
	ErrCallInProgress = errors.New("call already in progress")

	// ErrNoIncomingCall indicates accept/reject was requested without an incoming call.
	ErrNoIncomingCall = errors.New("no incoming call")

	// ErrNoActiveCall indicates an in-call control was requested outside an active call.
	ErrNoActiveCall = errors.New("no active call")

	// ErrInvalidMediaKind indicates an unknown media kind.
	ErrInvalidMediaKind = errors.New("invalid media kind")

	// ErrInvalidPeer indicates an empty or self-referencing peer id.
	ErrInvalidPeer = errors.New("invalid peer id")
)

// Degradation errors. These are logged, never fatal to a call.
var (
	// ErrProtocol indicates an out-of-order or malformed negotiation message.
	ErrProtocol = errors.New("signaling protocol error")

	// ErrTransportUnavailable indicates no media transport exists for the call.
	ErrTransportUnavailable = errors.New("media transport unavailable")

	// ErrPermissionDenied indicates microphone or camera access was refused.
	ErrPermissionDenied = errors.New("media permission denied")

	// ErrPermissionPending indicates capture was requested before the
	// permission outcome for the call was applied.
	ErrPermissionPending = errors.New("media permission not yet resolved")

	// ErrNotConnected indicates the event channel is not connected.
	ErrNotConnected = errors.New("event channel not connected")
)
