package media

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pion/rtp"
	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/rs/zerolog"

	"vico_home/callcore/internal/domain"
	"vico_home/callcore/internal/webrtc"
)

// sink consumes the RTP packets of one remote track.
type sink interface {
	WriteRTP(*rtp.Packet) error
	Close() error
}

// Playback routes remote tracks to sinks: Opus to Ogg, VP8 to IVF and H264
// to an Annex-B elementary stream under dir. With no dir, packets are read
// and discarded so the transport's buffers keep draining.
type Playback struct {
	dir string
	log zerolog.Logger
	now func() time.Time

	mu      sync.Mutex
	streams []*stream
}

// NewPlayback creates a playback router writing under dir.
func NewPlayback(dir string, logger zerolog.Logger) *Playback {
	return &Playback{
		dir: dir,
		log: logger.With().Str("component", "media").Str("sub", "playback").Logger(),
		now: time.Now,
	}
}

type stream struct {
	mu     sync.Mutex
	sink   sink
	closed bool
}

func (s *stream) write(pkt *rtp.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	return s.sink.WriteRTP(pkt)
}

func (s *stream) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.sink.Close()
}

// Play starts a reader goroutine for track. It returns immediately.
func (p *Playback) Play(track domain.RemoteTrack) {
	sk, path, err := p.open(track)
	if err != nil {
		p.log.Warn().Err(err).Str("track", track.ID()).Msg("open sink, draining instead")
		sk, path = discard{}, ""
	}

	s := &stream{sink: sk}
	p.mu.Lock()
	p.streams = append(p.streams, s)
	p.mu.Unlock()

	l := p.log.With().Str("track", track.ID()).Str("codec", track.MimeType()).Logger()
	if path != "" {
		l.Info().Str("path", path).Msg("recording remote track")
	}

	go func() {
		defer s.close()
		for {
			pkt, err := track.ReadRTP()
			if err != nil {
				l.Debug().Err(err).Msg("remote track ended")
				return
			}
			if err := s.write(pkt); err != nil {
				if err != io.ErrClosedPipe {
					l.Warn().Err(err).Msg("write packet")
				}
				return
			}
		}
	}()
}

// Close closes every sink. Reader goroutines exit on their next packet.
func (p *Playback) Close() {
	p.mu.Lock()
	streams := p.streams
	p.streams = nil
	p.mu.Unlock()

	for _, s := range streams {
		if err := s.close(); err != nil {
			p.log.Warn().Err(err).Msg("close sink")
		}
	}
}

func (p *Playback) open(track domain.RemoteTrack) (sink, string, error) {
	if p.dir == "" {
		return discard{}, "", nil
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return nil, "", err
	}

	base := filepath.Join(p.dir, fmt.Sprintf("%d-%s", p.now().Unix(), sanitize(track.ID())))
	mime := strings.ToLower(track.MimeType())

	switch mime {
	case strings.ToLower(pion.MimeTypeOpus):
		path := base + ".ogg"
		w, err := oggwriter.New(path, 48000, 2)
		return w, path, err
	case strings.ToLower(pion.MimeTypeVP8):
		path := base + ".ivf"
		w, err := ivfwriter.New(path)
		return w, path, err
	case strings.ToLower(pion.MimeTypeH264):
		path := base + ".h264"
		f, err := os.Create(path)
		if err != nil {
			return nil, "", err
		}
		return newAnnexB(f), path, nil
	}
	return discard{}, "", nil
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}

type discard struct{}

func (discard) WriteRTP(*rtp.Packet) error { return nil }
func (discard) Close() error               { return nil }

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// annexB writes H264 NAL units with start codes, the format ffplay and
// ffmpeg read with -f h264.
type annexB struct {
	f    *os.File
	w    *bufio.Writer
	depk *webrtc.H264Depacketizer
}

func newAnnexB(f *os.File) *annexB {
	return &annexB{f: f, w: bufio.NewWriter(f), depk: webrtc.NewH264Depacketizer()}
}

func (a *annexB) WriteRTP(pkt *rtp.Packet) error {
	for _, nalu := range a.depk.Depacketize(pkt.SequenceNumber, pkt.Payload) {
		if _, err := a.w.Write(startCode); err != nil {
			return err
		}
		if _, err := a.w.Write(nalu); err != nil {
			return err
		}
	}
	return nil
}

func (a *annexB) Close() error {
	if err := a.w.Flush(); err != nil {
		a.f.Close()
		return err
	}
	return a.f.Close()
}
