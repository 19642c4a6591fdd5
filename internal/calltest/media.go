package calltest

import (
	"context"
	"fmt"
	"sync"

	"vico_home/callcore/internal/domain"
)

// Track is a fake local track.
type Track struct {
	TrackID string
	TKind   domain.TrackKind

	mu     sync.Mutex
	closed int
}

func (t *Track) ID() string             { return t.TrackID }
func (t *Track) Kind() domain.TrackKind { return t.TKind }

func (t *Track) Close() error {
	t.mu.Lock()
	t.closed++
	t.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (t *Track) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed > 0
}

// Device is a fake domain.CaptureDevice.
type Device struct {
	PermissionErr error
	MicErr        error
	CameraErr     error
	CameraIDs     []string

	mu      sync.Mutex
	tracks  []*Track
	cameras []string
	audio   int
}

func (d *Device) RequestPermission(context.Context, domain.MediaKind) error {
	return d.PermissionErr
}

func (d *Device) ConfigureAudioSession() error {
	d.mu.Lock()
	d.audio++
	d.mu.Unlock()
	return nil
}

func (d *Device) OpenMicrophone(context.Context) (domain.MediaTrack, error) {
	if d.MicErr != nil {
		return nil, d.MicErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	t := &Track{TrackID: fmt.Sprintf("mic-%d", len(d.tracks)), TKind: domain.TrackAudio}
	d.tracks = append(d.tracks, t)
	return t, nil
}

func (d *Device) OpenCamera(_ context.Context, deviceID string) (domain.MediaTrack, error) {
	if d.CameraErr != nil {
		return nil, d.CameraErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	t := &Track{TrackID: fmt.Sprintf("cam-%d", len(d.tracks)), TKind: domain.TrackVideo}
	d.tracks = append(d.tracks, t)
	d.cameras = append(d.cameras, deviceID)
	return t, nil
}

func (d *Device) Cameras() []string { return d.CameraIDs }

// Tracks returns every track opened so far.
func (d *Device) Tracks() []*Track {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Track(nil), d.tracks...)
}

// OpenTracks returns the tracks not yet closed.
func (d *Device) OpenTracks() []*Track {
	var out []*Track
	for _, t := range d.Tracks() {
		if !t.Closed() {
			out = append(out, t)
		}
	}
	return out
}

// CameraOpens returns the device ids passed to OpenCamera, in order.
func (d *Device) CameraOpens() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.cameras...)
}

// AudioSessions returns how many times the audio session was configured.
func (d *Device) AudioSessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.audio
}

// Resources is a minimal domain.Resources recording calls.
type Resources struct {
	CaptureErr error

	mu       sync.Mutex
	captures int
	stops    int
	cleanups int
	played   []domain.RemoteTrack
}

func (r *Resources) RequestPermission(context.Context, domain.MediaKind) error { return nil }

func (r *Resources) InitializeAudio(domain.MediaKind, bool) {}

func (r *Resources) StartCapture(_ context.Context, kind domain.MediaKind) ([]domain.MediaTrack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures++
	if r.CaptureErr != nil {
		return nil, r.CaptureErr
	}
	tracks := []domain.MediaTrack{&Track{TrackID: "mic", TKind: domain.TrackAudio}}
	if kind == domain.MediaVideo {
		tracks = append(tracks, &Track{TrackID: "cam", TKind: domain.TrackVideo})
	}
	return tracks, nil
}

func (r *Resources) StopCapture() {
	r.mu.Lock()
	r.stops++
	r.mu.Unlock()
}

func (r *Resources) ApplyMuteState(context.Context, bool) (domain.MediaTrack, error) {
	return nil, nil
}

func (r *Resources) ApplyVideoState(context.Context, bool) (domain.MediaTrack, error) {
	return nil, nil
}

func (r *Resources) SwitchCamera(context.Context) (domain.MediaTrack, error) { return nil, nil }

func (r *Resources) Play(t domain.RemoteTrack) {
	r.mu.Lock()
	r.played = append(r.played, t)
	r.mu.Unlock()
}

func (r *Resources) CleanupAll() {
	r.mu.Lock()
	r.cleanups++
	r.mu.Unlock()
}

func (r *Resources) Captures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.captures
}

func (r *Resources) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

func (r *Resources) Played() []domain.RemoteTrack {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RemoteTrack(nil), r.played...)
}

func (r *Resources) Cleanups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cleanups
}
