package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"vico_home/callcore/internal/api"
	"vico_home/callcore/internal/call"
	"vico_home/callcore/internal/config"
	"vico_home/callcore/internal/control"
	"vico_home/callcore/internal/domain"
	"vico_home/callcore/internal/identity"
	"vico_home/callcore/internal/media"
	"vico_home/callcore/internal/media/device"
	"vico_home/callcore/internal/negotiation"
	sigclient "vico_home/callcore/internal/signal"
	"vico_home/callcore/internal/webrtc"
)

const helpText = `callcore - one-to-one voice/video call session service

Usage:
  callcore [options]

Runs the call session core for the local user and exposes it on a local
HTTP API. Calls are signaled over a WebSocket relay or Redis pub/sub; media
flows peer to peer over WebRTC when available.

Environment Variables (required):
  CALL_TOKEN                JWT session token of the local user

Environment Variables (optional):
  CALL_JWT_SECRET           HMAC secret to verify CALL_TOKEN
  CALL_TRANSPORT            ws (default) or redis
  CALL_SIGNAL_URL           WebSocket relay URL (ws transport)
  CALL_TICKET_URL           endpoint issuing relay tickets, overrides CALL_SIGNAL_URL
  CALL_REDIS_ADDR           Redis address (redis transport)
  CALL_ICE_SERVERS          comma separated STUN/TURN URLs
  CALL_MEDIA                false to run signaling only (default true)
  CALL_RING_TIMEOUT         unanswered ring duration (default 10s)
  CALL_NEGOTIATION_TIMEOUT  media setup deadline, 0 disables (default 0)
  CALL_PING_INTERVAL        relay keepalive (default 25s)
  CALL_PLAYBACK_DIR         directory receiving remote media recordings
  CALL_CONTROL_ADDR         control API address (default 127.0.0.1:8089)
  CALL_LOG_LEVEL            debug, info, warn, error (default info)
  CALL_LOG_FORMAT           console (default) or json

Examples:
  # Start a video call through the control API
  curl -XPOST localhost:8089/call/start -d '{"peerId":"u2","mediaKind":"video"}'

  # Follow session changes
  websocat ws://localhost:8089/call/events

Options:
  -h, --help  Show this help message
`

type closer interface {
	domain.EventChannel
	Close() error
}

// wsChannel adapts signal.Client's Close to closer.
type wsChannel struct{ *sigclient.Client }

func (c wsChannel) Close() error {
	c.Client.Close()
	return nil
}

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Print(helpText)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	log := logger.With().Str("component", "main").Logger()

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Step 1: Local identity
	ident := identity.NewTokenProvider(cfg.Token, cfg.JWTSecret)
	userID, err := ident.CurrentUserID()
	if err != nil {
		log.Fatal().Err(err).Msg("resolve local identity")
	}
	log.Info().Str("user_id", userID).Msg("starting")

	// Step 2: Relay ticket, when the backend issues one
	signalURL, relayToken, ping := cfg.SignalURL, cfg.Token, cfg.PingInterval
	var iceServers []domain.ICEServer
	if cfg.TicketURL != "" {
		ticket, err := api.NewClient(cfg.TicketURL, logger).FetchTicket(ctx, cfg.Token)
		if err != nil {
			log.Fatal().Err(err).Msg("get ticket")
		}
		log.Info().Str("ticket_id", ticket.ID).Str("signal", ticket.SignalServer).Msg("ticket obtained")
		signalURL = ticket.SignalURL()
		if ticket.AccessToken != "" {
			relayToken = ticket.AccessToken
		}
		ping = ticket.Ping(ping)
		iceServers = ticket.ICEServers
	}

	// Step 3: Event channel
	var ch closer
	switch cfg.Transport {
	case config.TransportRedis:
		rdb := sigclient.NewRedisClient(cfg.RedisAddr)
		defer rdb.Close()
		ch = sigclient.NewRedisChannel(rdb, userID, logger)
	default:
		ch = wsChannel{sigclient.NewClient(signalURL, relayToken, ping, logger)}
	}
	defer ch.Close()

	// Step 4: Local media
	var dev domain.CaptureDevice = media.NoDevice{}
	if cfg.MediaEnabled {
		d, err := device.New(logger)
		if err != nil {
			log.Warn().Err(err).Msg("capture device unavailable, calls will be silent")
		} else {
			dev = d
		}
	}
	resources := media.NewManager(dev, media.NewPlayback(cfg.PlaybackDir, logger), logger)

	// Step 5: Negotiation backend
	var neg domain.Negotiator = negotiation.NewSignalingOnly(logger)
	if !cfg.MediaEnabled {
		log.Info().Msg("media disabled, signaling only")
	} else if err := webrtc.Probe(); err != nil {
		log.Warn().Err(err).Msg("no media transport on this runtime, signaling only")
	} else {
		factory, err := webrtc.NewFactory(cfg.ICEServers, iceServers, logger)
		if err != nil {
			log.Fatal().Err(err).Msg("create transport factory")
		}
		neg = negotiation.New(factory, resources, ch, logger)
	}

	// Step 6: Call manager
	manager := call.New(ident, ch, neg, resources, call.Options{
		RingTimeout:        cfg.RingTimeout,
		NegotiationTimeout: cfg.NegotiationTimeout,
	}, logger)
	defer manager.Close()

	manager.OnStateChange(func(s *domain.CallSession) {
		log.Info().
			Str("session_id", s.SessionID).
			Str("peer_id", s.PeerID).
			Str("phase", string(s.Phase)).
			Str("negotiation", string(s.NegotiationPhase)).
			Msg("call state")
	})

	if err := manager.Start(ctx); err != nil {
		go keepConnected(ctx, ch, log)
	}

	// Step 7: Control API
	srv := control.NewServer(manager, ch.IsConnected, logger)
	go func() {
		if err := srv.ListenAndServe(ctx, cfg.ControlAddr); err != nil {
			log.Error().Err(err).Msg("control API stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
}

// keepConnected retries the first connect. Once up, reconnects are the
// adapter's job.
func keepConnected(ctx context.Context, ch domain.EventChannel, log zerolog.Logger) {
	backoff := time.Second
	for !ch.IsConnected() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := ch.Connect(cctx)
		cancel()
		if err == nil {
			log.Info().Msg("event channel connected")
			return
		}
		log.Warn().Err(err).Dur("backoff", backoff).Msg("event channel connect failed")
		if backoff *= 2; backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var logger zerolog.Logger
	if cfg.LogFormat == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
