//go:build linux

package device

import (
	"context"
	"fmt"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	pion "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"vico_home/callcore/internal/domain"
)

// Device captures from local hardware through pion/mediadevices. Tracks are
// encoded as Opus and VP8.
type Device struct {
	selector *mediadevices.CodecSelector
	log      zerolog.Logger
}

// New builds the codec selector used for every capture.
func New(logger zerolog.Logger) (*Device, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = 1_000_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}

	return &Device{
		selector: mediadevices.NewCodecSelector(
			mediadevices.WithVideoEncoders(&vpxParams),
			mediadevices.WithAudioEncoders(&opusParams),
		),
		log: logger.With().Str("component", "media").Str("sub", "device").Logger(),
	}, nil
}

// RequestPermission checks that the devices kind needs are present. Linux
// has no runtime permission prompt, so a missing device counts as denial.
func (d *Device) RequestPermission(_ context.Context, kind domain.MediaKind) error {
	var mics, cams int
	for _, info := range mediadevices.EnumerateDevices() {
		d.log.Debug().Str("label", info.Label).Str("kind", fmt.Sprint(info.Kind)).Msg("media device")
		switch info.Kind {
		case mediadevices.AudioInput:
			mics++
		case mediadevices.VideoInput:
			cams++
		}
	}
	if mics == 0 {
		return fmt.Errorf("%w: no microphone", domain.ErrPermissionDenied)
	}
	if kind == domain.MediaVideo && cams == 0 {
		d.log.Warn().Msg("no camera, video call will send audio only")
	}
	return nil
}

// ConfigureAudioSession is a no-op: the default ALSA/Pulse route is duplex.
func (d *Device) ConfigureAudioSession() error { return nil }

// OpenMicrophone starts an Opus-encoded microphone track.
func (d *Device) OpenMicrophone(context.Context) (domain.MediaTrack, error) {
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(*mediadevices.MediaTrackConstraints) {},
		Codec: d.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("get microphone: %w", err)
	}
	tracks := stream.GetAudioTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("get microphone: no audio track")
	}
	return d.wrap(tracks[0], domain.TrackAudio), nil
}

// OpenCamera starts a VP8-encoded camera track. An empty deviceID picks the
// first camera.
func (d *Device) OpenCamera(_ context.Context, deviceID string) (domain.MediaTrack, error) {
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			if deviceID != "" {
				c.DeviceID = prop.StringExact(deviceID)
			}
			// MJPEG nodes on some webcams yield frames the VP8 encoder rejects.
			c.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatYUYV,
				frame.FormatI420,
				frame.FormatI444,
				frame.FormatRGBA,
			}
			c.Width = prop.IntRanged{Max: 640}
			c.Height = prop.IntRanged{Max: 480}
		},
		Codec: d.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("get camera %q: %w", deviceID, err)
	}
	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("get camera %q: no video track", deviceID)
	}
	return d.wrap(tracks[0], domain.TrackVideo), nil
}

// Cameras lists video input device ids in enumeration order.
func (d *Device) Cameras() []string {
	var ids []string
	for _, info := range mediadevices.EnumerateDevices() {
		if info.Kind == mediadevices.VideoInput {
			ids = append(ids, info.DeviceID)
		}
	}
	return ids
}

func (d *Device) wrap(t mediadevices.Track, kind domain.TrackKind) *localTrack {
	t.OnEnded(func(err error) {
		if err != nil {
			d.log.Warn().Err(err).Str("track", t.ID()).Msg("local track ended")
		}
	})
	return &localTrack{
		track: track{id: t.ID(), kind: kind, close: t.Close},
		local: t,
	}
}

// localTrack is a capture track pion can send directly.
type localTrack struct {
	track
	local mediadevices.Track
}

// TrackLocal returns the pion track handed to the peer connection.
func (t *localTrack) TrackLocal() pion.TrackLocal { return t.local }
