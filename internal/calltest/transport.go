package calltest

import (
	"errors"
	"sync"

	"github.com/pion/rtp"

	"vico_home/callcore/internal/domain"
)

// Transport is a scripted domain.Transport.
type Transport struct {
	Kind domain.MediaKind

	mu          sync.Mutex
	onCandidate func(domain.ICECandidatePayload)
	onTrack     func(domain.RemoteTrack)
	onState     func(domain.TransportState)
	local       []domain.MediaTrack
	replaced    map[domain.TrackKind]domain.MediaTrack
	remote      []domain.SDPPayload
	applied     []string
	offers      int
	answers     int
	closes      int

	// FailCandidates lists candidate strings AddICECandidate rejects.
	FailCandidates map[string]bool
}

func (t *Transport) OnLocalCandidate(fn func(domain.ICECandidatePayload)) {
	t.mu.Lock()
	t.onCandidate = fn
	t.mu.Unlock()
}

func (t *Transport) OnRemoteTrack(fn func(domain.RemoteTrack)) {
	t.mu.Lock()
	t.onTrack = fn
	t.mu.Unlock()
}

func (t *Transport) OnStateChange(fn func(domain.TransportState)) {
	t.mu.Lock()
	t.onState = fn
	t.mu.Unlock()
}

func (t *Transport) AddLocalTracks(tracks []domain.MediaTrack) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.local = append(t.local, tracks...)
	return nil
}

func (t *Transport) ReplaceTrack(kind domain.TrackKind, track domain.MediaTrack) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.replaced == nil {
		t.replaced = make(map[domain.TrackKind]domain.MediaTrack)
	}
	t.replaced[kind] = track
	return nil
}

func (t *Transport) CreateOffer() (domain.SDPPayload, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.offers++
	return domain.SDPPayload{Type: "offer", SDP: "v=0 offer"}, nil
}

func (t *Transport) CreateAnswer() (domain.SDPPayload, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.answers++
	return domain.SDPPayload{Type: "answer", SDP: "v=0 answer"}, nil
}

func (t *Transport) SetRemoteDescription(d domain.SDPPayload) error {
	if d.Type != "offer" && d.Type != "answer" {
		return domain.ErrProtocol
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remote = append(t.remote, d)
	return nil
}

func (t *Transport) AddICECandidate(c domain.ICECandidatePayload) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.FailCandidates[c.Candidate] {
		return errors.New("malformed candidate")
	}
	t.applied = append(t.applied, c.Candidate)
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closes++
	return nil
}

// FireLocalCandidate simulates local ICE gathering.
func (t *Transport) FireLocalCandidate(c domain.ICECandidatePayload) {
	t.mu.Lock()
	fn := t.onCandidate
	t.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

// FireState simulates a connection state change.
func (t *Transport) FireState(s domain.TransportState) {
	t.mu.Lock()
	fn := t.onState
	t.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// FireRemoteTrack simulates inbound media.
func (t *Transport) FireRemoteTrack(r domain.RemoteTrack) {
	t.mu.Lock()
	fn := t.onTrack
	t.mu.Unlock()
	if fn != nil {
		fn(r)
	}
}

// Applied returns the candidates added, in order.
func (t *Transport) Applied() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.applied...)
}

// LocalTracks returns the tracks attached with AddLocalTracks.
func (t *Transport) LocalTracks() []domain.MediaTrack {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.MediaTrack(nil), t.local...)
}

// Replaced returns the last track passed to ReplaceTrack for kind.
func (t *Transport) Replaced(kind domain.TrackKind) (domain.MediaTrack, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.replaced[kind]
	return tr, ok
}

// RemoteDescriptions returns the applied remote descriptions.
func (t *Transport) RemoteDescriptions() []domain.SDPPayload {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.SDPPayload(nil), t.remote...)
}

func (t *Transport) Offers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offers
}

func (t *Transport) Answers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.answers
}

func (t *Transport) Closes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closes
}

// Factory hands out Transports and remembers them.
type Factory struct {
	mu      sync.Mutex
	created []*Transport

	Err            error
	FailCandidates map[string]bool
}

func (f *Factory) NewTransport(kind domain.MediaKind) (domain.Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	t := &Transport{Kind: kind, FailCandidates: f.FailCandidates}
	f.created = append(f.created, t)
	return t, nil
}

// Created returns the number of transports created.
func (f *Factory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

// Last returns the most recently created transport.
func (f *Factory) Last() *Transport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}

// RemoteTrack is an inbound track that yields no packets.
type RemoteTrack struct {
	TrackID string
	TKind   domain.TrackKind
	Mime    string
}

func (r *RemoteTrack) ID() string                    { return r.TrackID }
func (r *RemoteTrack) Kind() domain.TrackKind        { return r.TKind }
func (r *RemoteTrack) MimeType() string              { return r.Mime }
func (r *RemoteTrack) ReadRTP() (*rtp.Packet, error) { return nil, errors.New("eof") }
