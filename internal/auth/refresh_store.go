package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RefreshStore tracks which refresh-token ids (jti) are still valid.
//
// Rotation invariant: a refresh token is single-use. Consume removes the id
// atomically, so a replayed token fails even if it has not expired yet.
type RefreshStore struct {
	rdb *redis.Client
}

var ErrRefreshRevoked = errors.New("refresh token revoked or already used")

func NewRefreshStore(rdb *redis.Client) *RefreshStore {
	return &RefreshStore{rdb: rdb}
}

func refreshKey(jti string) string {
	return fmt.Sprintf("auth:refresh:%s", jti)
}

// Save registers a freshly issued refresh token id for its full TTL.
func (s *RefreshStore) Save(ctx context.Context, jti, userID string, ttl time.Duration) error {
	if jti == "" || userID == "" {
		return errors.New("jti and user_id required")
	}
	return s.rdb.Set(ctx, refreshKey(jti), userID, ttl).Err()
}

// Consume atomically removes the id and returns the user it belonged to.
// Returns ErrRefreshRevoked when the id is unknown (expired, revoked, or replayed).
func (s *RefreshStore) Consume(ctx context.Context, jti string) (string, error) {
	if jti == "" {
		return "", ErrRefreshRevoked
	}
	userID, err := s.rdb.GetDel(ctx, refreshKey(jti)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrRefreshRevoked
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

// Revoke drops the id without consuming it (logout).
func (s *RefreshStore) Revoke(ctx context.Context, jti string) error {
	if jti == "" {
		return nil
	}
	return s.rdb.Del(ctx, refreshKey(jti)).Err()
}
