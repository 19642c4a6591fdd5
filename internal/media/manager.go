// Package media owns local capture and remote playback for the current call
// and guarantees their release on every exit path.
package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"vico_home/callcore/internal/domain"
)

type permission int

const (
	permissionUnknown permission = iota
	permissionGranted
	permissionDenied
)

// Manager implements domain.Resources over a capture device. Permission or
// device failures leave it in silent mode instead of failing the call.
type Manager struct {
	device   domain.CaptureDevice
	playback *Playback
	log      zerolog.Logger

	mu        sync.Mutex
	perm      permission
	kind      domain.MediaKind
	capturing bool
	muted     bool
	videoOff  bool
	mic       domain.MediaTrack
	cam       domain.MediaTrack
	camIndex  int
}

// NewManager creates a manager. playback may be nil, in which case remote
// media is drained.
func NewManager(device domain.CaptureDevice, playback *Playback, logger zerolog.Logger) *Manager {
	if playback == nil {
		playback = NewPlayback("", logger)
	}
	return &Manager{
		device:   device,
		playback: playback,
		log:      logger.With().Str("component", "media").Logger(),
	}
}

// RequestPermission asks the device for capture permission. It leaves the
// manager untouched.
func (m *Manager) RequestPermission(ctx context.Context, kind domain.MediaKind) error {
	return m.device.RequestPermission(ctx, kind)
}

// InitializeAudio applies the permission outcome for the current call. A
// grant configures call audio routing; a denial switches to silent mode and
// closes anything already capturing.
func (m *Manager) InitializeAudio(kind domain.MediaKind, granted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kind = kind
	if !granted {
		m.perm = permissionDenied
		m.stopLocked()
		m.log.Warn().Msg("capture permission denied, continuing silent")
		return
	}
	m.perm = permissionGranted
	if err := m.device.ConfigureAudioSession(); err != nil {
		m.log.Warn().Err(err).Msg("configure audio session")
	}
}

// StartCapture opens the microphone, plus the camera for video calls. It is
// idempotent: while capturing it returns the live tracks. Before
// InitializeAudio it returns domain.ErrPermissionPending.
func (m *Manager) StartCapture(ctx context.Context, kind domain.MediaKind) ([]domain.MediaTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.perm {
	case permissionUnknown:
		return nil, domain.ErrPermissionPending
	case permissionDenied:
		return nil, domain.ErrPermissionDenied
	}
	m.kind = kind
	if m.capturing {
		return m.liveTracks(), nil
	}

	var errs []error
	if !m.muted {
		mic, err := m.device.OpenMicrophone(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("open microphone: %w", err))
		} else {
			m.mic = mic
		}
	}
	if kind == domain.MediaVideo && !m.videoOff {
		cam, err := m.device.OpenCamera(ctx, m.cameraID())
		if err != nil {
			errs = append(errs, fmt.Errorf("open camera: %w", err))
		} else {
			m.cam = cam
		}
	}
	m.capturing = true

	tracks := m.liveTracks()
	if len(errs) > 0 {
		m.log.Warn().Err(errors.Join(errs...)).Int("tracks", len(tracks)).Msg("partial capture")
		if len(tracks) == 0 {
			return nil, errors.Join(errs...)
		}
	}
	m.log.Info().Str("kind", string(kind)).Int("tracks", len(tracks)).Msg("capture started")
	return tracks, nil
}

// StopCapture closes any open capture track. Safe when nothing is active.
func (m *Manager) StopCapture() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	if !m.capturing && m.mic == nil && m.cam == nil {
		return
	}
	closeTrack(m.mic, m.log)
	closeTrack(m.cam, m.log)
	m.mic, m.cam = nil, nil
	m.capturing = false
	m.log.Debug().Msg("capture stopped")
}

// ApplyMuteState stops the microphone when muted and reopens it when
// unmuted. It returns the track now feeding audio, nil while muted.
// Repeating the current state does nothing.
func (m *Manager) ApplyMuteState(ctx context.Context, muted bool) (domain.MediaTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if muted == m.muted {
		return m.mic, nil
	}
	m.muted = muted

	if muted {
		closeTrack(m.mic, m.log)
		m.mic = nil
		return nil, nil
	}
	if !m.capturing || m.perm != permissionGranted {
		return nil, nil
	}
	mic, err := m.device.OpenMicrophone(ctx)
	if err != nil {
		return nil, fmt.Errorf("open microphone: %w", err)
	}
	m.mic = mic
	return mic, nil
}

// ApplyVideoState stops or restarts the camera. It returns the track now
// feeding video, nil while disabled or on voice calls.
func (m *Manager) ApplyVideoState(ctx context.Context, enabled bool) (domain.MediaTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if enabled == !m.videoOff {
		return m.cam, nil
	}
	m.videoOff = !enabled

	if !enabled {
		closeTrack(m.cam, m.log)
		m.cam = nil
		return nil, nil
	}
	if !m.capturing || m.perm != permissionGranted || m.kind != domain.MediaVideo {
		return nil, nil
	}
	cam, err := m.device.OpenCamera(ctx, m.cameraID())
	if err != nil {
		return nil, fmt.Errorf("open camera: %w", err)
	}
	m.cam = cam
	return cam, nil
}

// SwitchCamera moves to the next camera. With a single camera it returns
// the current track unchanged.
func (m *Manager) SwitchCamera(ctx context.Context) (domain.MediaTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cams := m.device.Cameras()
	if len(cams) < 2 {
		return m.cam, nil
	}
	m.camIndex = (m.camIndex + 1) % len(cams)
	if m.cam == nil {
		return nil, nil
	}

	closeTrack(m.cam, m.log)
	m.cam = nil
	cam, err := m.device.OpenCamera(ctx, cams[m.camIndex])
	if err != nil {
		return nil, fmt.Errorf("open camera %s: %w", cams[m.camIndex], err)
	}
	m.cam = cam
	m.log.Info().Str("camera", cams[m.camIndex]).Msg("camera switched")
	return cam, nil
}

// Play starts playback of a remote track.
func (m *Manager) Play(track domain.RemoteTrack) {
	m.playback.Play(track)
}

// CleanupAll releases capture and playback and resets per-call flags. It is
// safe to call more than once.
func (m *Manager) CleanupAll() {
	m.mu.Lock()
	m.stopLocked()
	m.perm = permissionUnknown
	m.muted = false
	m.videoOff = false
	m.camIndex = 0
	m.kind = ""
	m.mu.Unlock()

	m.playback.Close()
}

// Silent reports whether capture was denied for the current call.
func (m *Manager) Silent() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.perm == permissionDenied
}

func (m *Manager) liveTracks() []domain.MediaTrack {
	var tracks []domain.MediaTrack
	if m.mic != nil {
		tracks = append(tracks, m.mic)
	}
	if m.cam != nil {
		tracks = append(tracks, m.cam)
	}
	return tracks
}

func (m *Manager) cameraID() string {
	cams := m.device.Cameras()
	if len(cams) == 0 {
		return ""
	}
	return cams[m.camIndex%len(cams)]
}

func closeTrack(t domain.MediaTrack, log zerolog.Logger) {
	if t == nil {
		return
	}
	if err := t.Close(); err != nil {
		log.Warn().Err(err).Str("track", t.ID()).Msg("close track")
	}
}
