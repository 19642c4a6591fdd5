package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"vico_home/callcore/internal/domain"
)

const channelPrefix = "calls:"

// ChannelFor returns the pub/sub channel a user listens on.
func ChannelFor(userID string) string {
	return channelPrefix + userID
}

// RedisChannel is an event channel adapter relaying through Redis pub/sub.
// Every user subscribes to its own channel; Emit publishes to the
// recipient's channel.
type RedisChannel struct {
	rdb    *redis.Client
	selfID string
	log    zerolog.Logger

	registry *Registry
	connect  singleflight.Group

	mu        sync.Mutex
	pubsub    *redis.PubSub
	connected atomic.Bool
}

// NewRedisChannel creates an adapter for selfID over rdb.
func NewRedisChannel(rdb *redis.Client, selfID string, logger zerolog.Logger) *RedisChannel {
	return &RedisChannel{
		rdb:      rdb,
		selfID:   selfID,
		log:      logger.With().Str("component", "signal").Str("relay", "redis").Logger(),
		registry: NewRegistry(),
	}
}

// Connect subscribes to the local user's channel. Concurrent callers share
// one attempt.
func (r *RedisChannel) Connect(ctx context.Context) error {
	if r.IsConnected() {
		return nil
	}
	_, err, _ := r.connect.Do("connect", func() (any, error) {
		if r.IsConnected() {
			return nil, nil
		}
		return nil, r.subscribe(ctx)
	})
	return err
}

func (r *RedisChannel) subscribe(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	ps := r.rdb.Subscribe(ctx, ChannelFor(r.selfID))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	r.mu.Lock()
	r.pubsub = ps
	r.mu.Unlock()
	r.connected.Store(true)

	go r.readLoop(ps)

	r.log.Info().Str("channel", ChannelFor(r.selfID)).Msg("subscribed")
	return nil
}

// IsConnected reports whether the subscription is live.
func (r *RedisChannel) IsConnected() bool {
	return r.connected.Load()
}

// Subscribe registers handler for event.
func (r *RedisChannel) Subscribe(event string, handler domain.EventHandler) func() {
	return r.registry.Subscribe(event, handler)
}

// Emit publishes one event to the payload's recipient.
func (r *RedisChannel) Emit(event string, payload any) error {
	to, ok := payload.(recipient)
	if !ok || to.Recipient() == "" {
		return fmt.Errorf("emit %s: payload has no recipient", event)
	}
	if !r.IsConnected() {
		return domain.ErrNotConnected
	}

	data, err := encode(event, payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if err := r.rdb.Publish(ctx, ChannelFor(to.Recipient()), data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

// Close drops the subscription.
func (r *RedisChannel) Close() error {
	r.connected.Store(false)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pubsub == nil {
		return nil
	}
	err := r.pubsub.Close()
	r.pubsub = nil
	return err
}

func (r *RedisChannel) readLoop(ps *redis.PubSub) {
	for msg := range ps.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			r.log.Warn().Err(err).Msg("unmarshal error")
			continue
		}
		if !r.registry.Dispatch(env.Event, env.Data) {
			r.log.Debug().Str("event", env.Event).Msg("unhandled event")
		}
	}

	r.mu.Lock()
	if r.pubsub == ps {
		r.pubsub = nil
		r.connected.Store(false)
	}
	r.mu.Unlock()
	r.log.Info().Msg("subscription closed")
}

// NewRedisClient builds the go-redis client used by RedisChannel.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
}
