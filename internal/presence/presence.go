package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store tracks live websocket connections per user in Redis so any instance
// can tell whether a user is online.
// Keys: <prefix>:conn:<userID> is a set of socket ids.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewStore(r *redis.Client, prefix string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: r, prefix: prefix, ttl: ttl}
}

func (s *Store) connKey(userID string) string { return fmt.Sprintf("%s:conn:%s", s.prefix, userID) }

func (s *Store) AddConnection(ctx context.Context, userID, socketID string) error {
	key := s.connKey(userID)
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, key, socketID)
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) RemoveConnection(ctx context.Context, userID, socketID string) error {
	return s.client.SRem(ctx, s.connKey(userID), socketID).Err()
}

func (s *Store) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.SCard(ctx, s.connKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
