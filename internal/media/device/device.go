// Package device provides the local capture device. On Linux it is backed by
// pion/mediadevices (V4L2 camera and malgo microphone); elsewhere capture is
// unavailable and calls run silent.
package device

import (
	"vico_home/callcore/internal/domain"
)

// track adapts a platform capture track to domain.MediaTrack.
type track struct {
	id    string
	kind  domain.TrackKind
	close func() error
}

func (t *track) ID() string             { return t.id }
func (t *track) Kind() domain.TrackKind { return t.kind }
func (t *track) Close() error           { return t.close() }

var _ domain.CaptureDevice = (*Device)(nil)
