package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"twin/internal/logging"
	"twin/internal/session"
)

const (
	sessionKeyPrefix = "session:"
	// DefaultTTL applies when no TTL is configured.
	DefaultTTL = 30 * 24 * time.Hour
)

// Store keeps each transcript as a JSON string at session:<id>. Reads and
// writes refresh the key's TTL.
type Store struct {
	client redis.Cmdable
	ttl    time.Duration
	logger logging.Logger
}

// New builds a Redis backed store.
func New(client redis.Cmdable, ttl time.Duration) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis session store requires a client")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		client: client,
		ttl:    ttl,
		logger: logging.NewComponentLogger("SessionRedisStore"),
	}, nil
}

func (s *Store) key(id string) string {
	return sessionKeyPrefix + id
}

// Load returns the stored transcript, or an empty one when the key is absent.
func (s *Store) Load(ctx context.Context, id string) ([]session.Turn, error) {
	key := s.key(id)
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []session.Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	turns, err := session.Decode(val)
	if err != nil {
		s.logger.Error("Failed to decode session key %s: %v", key, err)
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}

	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		s.logger.Warn("Failed to refresh TTL for %s: %v", key, err)
	}
	return turns, nil
}

// Save replaces the stored transcript.
func (s *Store) Save(ctx context.Context, id string, turns []session.Turn) error {
	data, err := session.Encode(turns)
	if err != nil {
		return err
	}
	key := s.key(id)
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
