//go:build !linux

package device

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"vico_home/callcore/internal/domain"
)

// Device reports capture as unavailable on platforms without drivers.
type Device struct {
	log zerolog.Logger
}

func New(logger zerolog.Logger) (*Device, error) {
	return &Device{log: logger.With().Str("component", "media").Str("sub", "device").Logger()}, nil
}

func (d *Device) RequestPermission(context.Context, domain.MediaKind) error {
	return fmt.Errorf("%w: no capture drivers on this platform", domain.ErrPermissionDenied)
}

func (d *Device) ConfigureAudioSession() error { return nil }

func (d *Device) OpenMicrophone(context.Context) (domain.MediaTrack, error) {
	return nil, domain.ErrPermissionDenied
}

func (d *Device) OpenCamera(context.Context, string) (domain.MediaTrack, error) {
	return nil, domain.ErrPermissionDenied
}

func (d *Device) Cameras() []string { return nil }
