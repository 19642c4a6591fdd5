// Package call implements the call session state machine. A Manager owns the
// single CallSession of the device and applies every transition on one
// event loop goroutine, so local actions, inbound signaling and timers never
// run concurrently.
package call

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"vico_home/callcore/internal/domain"
)

// DefaultRingTimeout bounds how long an outgoing call rings unanswered.
const DefaultRingTimeout = 10 * time.Second

// ErrClosed is returned by actions after Close.
var ErrClosed = errors.New("call manager closed")

// Options tunes a Manager. Zero values select defaults.
type Options struct {
	RingTimeout time.Duration
	// NegotiationTimeout bounds how long an active call may take to
	// establish media. Zero disables the deadline.
	NegotiationTimeout time.Duration
	Clock              clock.Clock
}

// Manager is the session owner. It implements the transition table for
// local actions and inbound call:* events.
type Manager struct {
	identity   domain.IdentityProvider
	channel    domain.EventChannel
	negotiator domain.Negotiator
	resources  domain.Resources
	clock      clock.Clock
	log        zerolog.Logger

	ringTimeout        time.Duration
	negotiationTimeout time.Duration

	observers Observers
	snapshot  atomic.Pointer[domain.CallSession]

	ctx     context.Context
	cancel  context.CancelFunc
	events  chan func()
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once

	unsubMu sync.Mutex
	unsubs  []func()

	// Owned by the loop goroutine.
	session    *domain.CallSession
	localID    string
	activeAt   time.Time
	ringTimer  *clock.Timer
	negTimer   *clock.Timer
	ticker     *clock.Ticker
	stopTicker chan struct{}

	// Per-session media state, reset by finish.
	mediaReady     bool // permission outcome applied
	offerPending   bool // accepted before mediaReady
	mediaAbandoned bool // negotiation deadline passed
}

// New creates a Manager and starts its event loop. Start must be called to
// receive inbound events.
func New(identity domain.IdentityProvider, channel domain.EventChannel, negotiator domain.Negotiator, resources domain.Resources, opts Options, logger zerolog.Logger) *Manager {
	if opts.RingTimeout <= 0 {
		opts.RingTimeout = DefaultRingTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		identity:           identity,
		channel:            channel,
		negotiator:         negotiator,
		resources:          resources,
		clock:              opts.Clock,
		log:                logger.With().Str("component", "call").Logger(),
		ringTimeout:        opts.RingTimeout,
		negotiationTimeout: opts.NegotiationTimeout,
		ctx:                ctx,
		cancel:             cancel,
		events:             make(chan func(), 64),
		done:               make(chan struct{}),
		stopped:            make(chan struct{}),
	}
	go m.run()
	return m
}

// Start subscribes to the call events and connects the channel. A connect
// failure is returned but the subscriptions stay; the adapter may still
// come up later.
func (m *Manager) Start(ctx context.Context) error {
	m.unsubMu.Lock()
	if len(m.unsubs) == 0 {
		for _, event := range domain.CallEvents {
			m.unsubs = append(m.unsubs, m.channel.Subscribe(event, m.inbound(event)))
		}
	}
	m.unsubMu.Unlock()

	if err := m.channel.Connect(ctx); err != nil {
		m.log.Warn().Err(err).Msg("event channel connect failed")
		return err
	}
	return nil
}

// Close ends any call with reason shutdown, drops the subscriptions and
// stops the loop. It is idempotent.
func (m *Manager) Close() {
	m.once.Do(func() {
		_ = m.do(func() error {
			if m.session != nil {
				m.emit(domain.EventEnd, domain.Signal{Reason: domain.EndShutdown})
				m.finish(domain.EndShutdown)
			}
			return nil
		})

		m.unsubMu.Lock()
		for _, unsub := range m.unsubs {
			unsub()
		}
		m.unsubs = nil
		m.unsubMu.Unlock()

		close(m.done)
		<-m.stopped
		m.cancel()
	})
}

// State returns a copy of the current session, or nil when idle.
func (m *Manager) State() *domain.CallSession {
	return m.snapshot.Load().Clone()
}

// OnStateChange registers fn for every session change. Observers run on
// the event loop and must not call back into the Manager's actions.
func (m *Manager) OnStateChange(fn Observer) (unsubscribe func()) {
	return m.observers.Subscribe(fn)
}

func (m *Manager) run() {
	defer close(m.stopped)
	for {
		select {
		case fn := <-m.events:
			fn()
		case <-m.done:
			return
		}
	}
}

// do runs fn on the loop and waits for its result.
func (m *Manager) do(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case m.events <- func() { errc <- fn() }:
	case <-m.done:
		return ErrClosed
	}
	select {
	case err := <-errc:
		return err
	case <-m.done:
		return ErrClosed
	}
}

// post queues fn on the loop without waiting.
func (m *Manager) post(fn func()) {
	select {
	case m.events <- fn:
	case <-m.done:
	}
}

func (m *Manager) inbound(event string) domain.EventHandler {
	return func(raw json.RawMessage) {
		var sig domain.Signal
		if err := json.Unmarshal(raw, &sig); err != nil {
			m.log.Warn().Err(err).Str("event", event).Msg("malformed signal")
			return
		}
		m.post(func() { m.dispatch(event, sig) })
	}
}

// current reports whether sessionID names the live session.
func (m *Manager) current(sessionID string) bool {
	return m.session != nil && m.session.SessionID == sessionID
}

// slog returns the logger tagged with the live session, if any.
func (m *Manager) slog() *zerolog.Logger {
	if m.session == nil {
		return &m.log
	}
	l := m.log.With().
		Str("session_id", m.session.SessionID).
		Str("peer_id", m.session.PeerID).
		Logger()
	return &l
}

// emit sends event to the current peer. Delivery is best effort.
func (m *Manager) emit(event string, sig domain.Signal) {
	if m.session != nil {
		sig.SessionID = m.session.SessionID
		sig.To = m.session.PeerID
	}
	sig.From = m.localID
	if err := m.channel.Emit(event, sig); err != nil {
		m.slog().Warn().Err(err).Str("event", event).Msg("emit")
	}
}

// publish refreshes the snapshot. notify additionally informs observers.
func (m *Manager) publish(notify bool) {
	if m.session == nil {
		m.snapshot.Store(nil)
		return
	}
	if m.session.Phase == domain.PhaseActive {
		m.session.DurationSeconds = int(m.clock.Since(m.activeAt) / time.Second)
	}
	m.session.PendingCandidates = m.negotiator.PendingCandidates()
	snap := m.session.Clone()
	m.snapshot.Store(snap)
	if notify {
		m.observers.Notify(snap)
	}
}

// finish is the single cleanup routine for every path into PhaseEnded. It
// is a no-op without a session.
func (m *Manager) finish(reason domain.EndReason) {
	if m.session == nil {
		return
	}
	l := m.slog()

	m.stopRingTimer()
	m.stopNegotiationTimer()
	m.stopDuration()
	m.negotiator.Teardown()
	m.resources.CleanupAll()

	if m.session.Phase == domain.PhaseActive {
		m.session.DurationSeconds = int(m.clock.Since(m.activeAt) / time.Second)
	}
	final := m.session.Clone()
	final.Phase = domain.PhaseEnded
	final.EndReason = reason
	final.PendingCandidates = 0

	m.session = nil
	m.localID = ""
	m.mediaReady, m.offerPending, m.mediaAbandoned = false, false, false
	m.snapshot.Store(nil)
	m.observers.Notify(final)

	l.Info().Str("reason", string(reason)).Int("duration", final.DurationSeconds).Msg("call ended")
}

func (m *Manager) binding() domain.Binding {
	return domain.Binding{
		SessionID: m.session.SessionID,
		LocalID:   m.localID,
		PeerID:    m.session.PeerID,
		Kind:      m.session.MediaKind,
		OnStateChange: func(sessionID string, state domain.TransportState) {
			m.post(func() { m.onTransportState(sessionID, state) })
		},
	}
}

// ensureTransport must precede every use of negotiation state. It fails
// once the media path was abandoned.
func (m *Manager) ensureTransport() bool {
	if m.mediaAbandoned {
		m.slog().Debug().Msg("media abandoned, ignoring negotiation")
		return false
	}
	if err := m.negotiator.EnsureTransport(m.ctx, m.binding()); err != nil {
		m.slog().Warn().Err(err).Msg("media transport unavailable, continuing without media")
		m.session.MediaDegraded = true
		return false
	}
	return true
}

// applyPermission records the outcome of a permission request made for the
// live session.
func (m *Manager) applyPermission(kind domain.MediaKind, err error) {
	if err != nil {
		m.slog().Warn().Err(err).Msg("capture permission refused")
	}
	m.resources.InitializeAudio(kind, err == nil)
	m.mediaReady = true
}

// self returns the local user id, or "" when it is unknown.
func (m *Manager) self() string {
	if m.localID != "" {
		return m.localID
	}
	id, err := m.identity.CurrentUserID()
	if err != nil {
		return ""
	}
	return id
}

// advance moves the negotiation phase forward when allowed.
func (m *Manager) advance(next domain.NegotiationPhase) bool {
	if !m.session.NegotiationPhase.CanAdvanceTo(next) {
		return false
	}
	m.session.NegotiationPhase = next
	return true
}
