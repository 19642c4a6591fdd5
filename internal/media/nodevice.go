package media

import (
	"context"
	"fmt"

	"vico_home/callcore/internal/domain"
)

// NoDevice is a capture device that refuses every request. It is used when
// local media is disabled by configuration.
type NoDevice struct{}

func (NoDevice) RequestPermission(context.Context, domain.MediaKind) error {
	return fmt.Errorf("%w: local media disabled", domain.ErrPermissionDenied)
}

func (NoDevice) ConfigureAudioSession() error { return nil }

func (NoDevice) OpenMicrophone(context.Context) (domain.MediaTrack, error) {
	return nil, domain.ErrPermissionDenied
}

func (NoDevice) OpenCamera(context.Context, string) (domain.MediaTrack, error) {
	return nil, domain.ErrPermissionDenied
}

func (NoDevice) Cameras() []string { return nil }
