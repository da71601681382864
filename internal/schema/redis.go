package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisSource reads a JSON schema document stored under one key. When a
// channel is configured, Store announces new documents on it and Watch
// listens for those announcements.
type RedisSource struct {
	client  redis.UniversalClient
	key     string
	channel string
}

// NewRedisSource returns a source reading key. channel may be empty.
func NewRedisSource(client redis.UniversalClient, key, channel string) *RedisSource {
	return &RedisSource{client: client, key: key, channel: channel}
}

func (s *RedisSource) Name() string {
	return "redis:" + s.key
}

func (s *RedisSource) Fetch(ctx context.Context) (*Document, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("schema key %s does not exist", s.key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schema key %s: %w", s.key, err)
	}
	return DecodeJSON(data)
}

// Store writes doc under the source key and publishes the key on the
// channel, if any.
func (s *RedisSource) Store(ctx context.Context, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store schema key %s: %w", s.key, err)
	}
	if s.channel == "" {
		return nil
	}
	if err := s.client.Publish(ctx, s.channel, s.key).Err(); err != nil {
		return fmt.Errorf("failed to publish schema update: %w", err)
	}
	return nil
}

// Watch calls onChange for every update announced on the channel until ctx
// is done. It returns immediately when no channel is configured.
func (s *RedisSource) Watch(ctx context.Context, onChange func(ctx context.Context)) error {
	if s.channel == "" {
		return nil
	}
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reporting readiness.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}
	log.Info().Str("channel", s.channel).Msg("Watching for schema updates")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg.Payload != s.key {
				continue
			}
			onChange(ctx)
		}
	}
}
