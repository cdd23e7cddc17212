// Package redis broadcasts invalidation events over Redis so that other
// replicas and out-of-process renderers drop stale views.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tendant/site-content/pkg/sitecontent"
)

// DefaultChannel is the pub/sub channel events are published on
const DefaultChannel = "site-content:invalidate"

// Config holds Redis connection configuration.
type Config struct {
	Address  string `env:"REDIS_ADDRESS"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
	Channel  string `env:"REDIS_CHANNEL" env-default:"site-content:invalidate"`
	// Stream additionally appends events to a Redis stream when set
	Stream string `env:"REDIS_STREAM"`
}

// ErrEmptyAddress is returned when Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// connectionTimeout is the timeout for verifying Redis connection.
const connectionTimeout = 5 * time.Second

// streamMaxLen caps the event stream
const streamMaxLen = 1000

// NewClient creates a new Redis client with the given configuration.
func NewClient(cfg Config) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// Publisher is a sitecontent.Invalidator that publishes events as JSON.
type Publisher struct {
	client  *redis.Client
	channel string
	stream  string
}

// NewPublisher creates a new event publisher.
// Returns nil if client is nil.
func NewPublisher(client *redis.Client, channel, stream string) *Publisher {
	if client == nil {
		return nil
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{
		client:  client,
		channel: channel,
		stream:  stream,
	}
}

// Invalidate publishes the event on the channel and, if configured, appends
// it to the stream.
func (p *Publisher) Invalidate(ctx context.Context, event sitecontent.InvalidationEvent) error {
	if p == nil || p.client == nil {
		return nil // No-op if publisher not configured
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to channel: %w", err)
	}

	if p.stream != "" {
		err := p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			MaxLen: streamMaxLen,
			Approx: true,
			Values: map[string]any{
				"event": string(payload),
			},
		}).Err()
		if err != nil {
			return fmt.Errorf("publish to stream: %w", err)
		}
	}

	return nil
}

// Subscriber forwards events received on a channel to a local invalidator,
// typically the view cache of this replica.
type Subscriber struct {
	client  *redis.Client
	channel string
	target  sitecontent.Invalidator
	logger  *slog.Logger
}

// NewSubscriber creates a subscriber that hands events to target
func NewSubscriber(client *redis.Client, channel string, target sitecontent.Invalidator, logger *slog.Logger) *Subscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		client:  client,
		channel: channel,
		target:  target,
		logger:  logger,
	}
}

// Run consumes events until ctx is done. Undecodable messages and target
// failures are logged and skipped.
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reading messages.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(ctx, msg.Payload)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, payload string) {
	var event sitecontent.InvalidationEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		s.logger.Warn("Discarding malformed invalidation event", "channel", s.channel, "error", err)
		return
	}
	if err := s.target.Invalidate(ctx, event); err != nil {
		s.logger.Warn("Forwarding invalidation event failed",
			"event_id", event.ID.String(),
			"document_key", event.DocumentKey,
			"error", err,
		)
	}
}
