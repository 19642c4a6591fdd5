package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TransportWebSocket = "ws"
	TransportRedis     = "redis"
)

// Config holds the application configuration.
type Config struct {
	Token     string
	JWTSecret string

	Transport    string
	SignalURL    string
	RedisAddr    string
	TicketURL    string
	PingInterval time.Duration

	ICEServers   []string
	MediaEnabled bool
	PlaybackDir  string

	RingTimeout        time.Duration
	NegotiationTimeout time.Duration

	ControlAddr string
	LogLevel    string
	LogFormat   string
}

// Load reads configuration from a .env file (if present) and environment variables.
// Environment variables take precedence over .env values.
func Load() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	var errs []error
	c := &Config{
		Token:       os.Getenv("CALL_TOKEN"),
		JWTSecret:   os.Getenv("CALL_JWT_SECRET"),
		Transport:   envOr("CALL_TRANSPORT", TransportWebSocket),
		SignalURL:   strings.TrimSpace(os.Getenv("CALL_SIGNAL_URL")),
		RedisAddr:   strings.TrimSpace(os.Getenv("CALL_REDIS_ADDR")),
		TicketURL:   strings.TrimSpace(os.Getenv("CALL_TICKET_URL")),
		ICEServers:  splitList(envOr("CALL_ICE_SERVERS", "stun:stun.l.google.com:19302")),
		PlaybackDir: strings.TrimSpace(os.Getenv("CALL_PLAYBACK_DIR")),
		ControlAddr: envOr("CALL_CONTROL_ADDR", "127.0.0.1:8089"),
		LogLevel:    envOr("CALL_LOG_LEVEL", "info"),
		LogFormat:   envOr("CALL_LOG_FORMAT", "console"),
	}

	var err error
	if c.MediaEnabled, err = envBool("CALL_MEDIA", true); err != nil {
		errs = append(errs, err)
	}
	if c.RingTimeout, err = envDuration("CALL_RING_TIMEOUT", 10*time.Second); err != nil {
		errs = append(errs, err)
	}
	if c.NegotiationTimeout, err = envDuration("CALL_NEGOTIATION_TIMEOUT", 0); err != nil {
		errs = append(errs, err)
	}
	if c.PingInterval, err = envDuration("CALL_PING_INTERVAL", 25*time.Second); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks required values and cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	if c.Token == "" {
		errs = append(errs, errors.New("CALL_TOKEN environment variable is required"))
	}

	switch c.Transport {
	case TransportWebSocket:
		if c.SignalURL == "" && c.TicketURL == "" {
			errs = append(errs, errors.New("CALL_SIGNAL_URL or CALL_TICKET_URL is required for the ws transport"))
		}
	case TransportRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("CALL_REDIS_ADDR is required for the redis transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("CALL_TRANSPORT must be one of ws, redis, got %q", c.Transport))
	}

	if c.RingTimeout <= 0 {
		errs = append(errs, fmt.Errorf("CALL_RING_TIMEOUT must be positive, got %s", c.RingTimeout))
	}
	if c.NegotiationTimeout < 0 {
		errs = append(errs, fmt.Errorf("CALL_NEGOTIATION_TIMEOUT must not be negative, got %s", c.NegotiationTimeout))
	}
	if c.PingInterval <= 0 {
		errs = append(errs, fmt.Errorf("CALL_PING_INTERVAL must be positive, got %s", c.PingInterval))
	}

	return errors.Join(errs...)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s must be a duration, got %q", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
