package media

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vico_home/callcore/internal/domain"
)

// packetTrack replays a fixed packet list then reports EOF.
type packetTrack struct {
	id   string
	mime string

	mu   sync.Mutex
	pkts []*rtp.Packet
}

func (p *packetTrack) ID() string             { return p.id }
func (p *packetTrack) Kind() domain.TrackKind { return domain.TrackVideo }
func (p *packetTrack) MimeType() string       { return p.mime }

func (p *packetTrack) ReadRTP() (*rtp.Packet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pkts) == 0 {
		return nil, io.EOF
	}
	pkt := p.pkts[0]
	p.pkts = p.pkts[1:]
	return pkt, nil
}

func pkt(seq uint16, payload ...byte) *rtp.Packet {
	return &rtp.Packet{Header: rtp.Header{SequenceNumber: seq, Timestamp: uint32(seq) * 3000}, Payload: payload}
}

func fixedPlayback(t *testing.T) (*Playback, string) {
	dir := t.TempDir()
	p := NewPlayback(dir, zerolog.Nop())
	p.now = func() time.Time { return time.Unix(1700000000, 0) }
	return p, dir
}

func TestPlayback_H264AnnexB(t *testing.T) {
	p, dir := fixedPlayback(t)
	track := &packetTrack{id: "video/1", mime: "video/H264", pkts: []*rtp.Packet{
		pkt(1, 0x67, 0x42),
		pkt(2, 0x7c, 0x85, 0xAA),
		pkt(3, 0x7c, 0x45, 0xBB),
	}}

	p.Play(track)

	path := filepath.Join(dir, "1700000000-video_1.h264")
	want := []byte{0, 0, 0, 1, 0x67, 0x42, 0, 0, 0, 1, 0x65, 0xAA, 0xBB}
	require.Eventually(t, func() bool {
		got, err := os.ReadFile(path)
		return err == nil && string(got) == string(want)
	}, time.Second, 10*time.Millisecond)
}

func TestPlayback_OpusWritesOgg(t *testing.T) {
	p, dir := fixedPlayback(t)
	track := &packetTrack{id: "audio", mime: "audio/opus", pkts: []*rtp.Packet{pkt(1, 0xfc, 0x01), pkt(2, 0xfc, 0x02)}}

	p.Play(track)

	path := filepath.Join(dir, "1700000000-audio.ogg")
	require.Eventually(t, func() bool {
		got, err := os.ReadFile(path)
		return err == nil && len(got) > 4 && string(got[:4]) == "OggS"
	}, time.Second, 10*time.Millisecond)
}

func TestPlayback_NoDirDrains(t *testing.T) {
	p := NewPlayback("", zerolog.Nop())
	track := &packetTrack{id: "a", mime: "audio/opus", pkts: []*rtp.Packet{pkt(1, 1), pkt(2, 2)}}

	p.Play(track)

	require.Eventually(t, func() bool {
		track.mu.Lock()
		defer track.mu.Unlock()
		return len(track.pkts) == 0
	}, time.Second, 10*time.Millisecond)
	p.Close()
}

func TestPlayback_CloseIdempotent(t *testing.T) {
	p, _ := fixedPlayback(t)
	p.Play(&packetTrack{id: "x", mime: "video/VP8"})
	p.Close()
	assert.NotPanics(t, p.Close)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a_b-c_1", sanitize("a/b-c 1"))
}
