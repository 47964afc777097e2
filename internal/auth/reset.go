package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ResetTokens issues single-use password-reset tokens.
type ResetTokens interface {
	Issue(ctx context.Context, userID int64) (token string, expiresAt time.Time, err error)
	Consume(ctx context.Context, token string) (int64, error)
}

// RedisResetTokens keeps reset tokens in Redis with a TTL.
type RedisResetTokens struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisResetTokens constructs the store.
func NewRedisResetTokens(client *redis.Client, ttl time.Duration) *RedisResetTokens {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisResetTokens{client: client, ttl: ttl, now: time.Now}
}

func resetKey(token string) string {
	return "pwreset:" + token
}

// Issue stores a fresh token for userID.
func (s *RedisResetTokens) Issue(ctx context.Context, userID int64) (string, time.Time, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, resetKey(token), strconv.FormatInt(userID, 10), s.ttl).Err(); err != nil {
		return "", time.Time{}, fmt.Errorf("auth: store reset token: %w", err)
	}
	return token, s.now().Add(s.ttl), nil
}

// Consume returns the user bound to token and deletes it.
func (s *RedisResetTokens) Consume(ctx context.Context, token string) (int64, error) {
	if _, err := uuid.Parse(token); err != nil {
		return 0, ErrResetTokenInvalid
	}
	raw, err := s.client.GetDel(ctx, resetKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrResetTokenInvalid
	}
	if err != nil {
		return 0, fmt.Errorf("auth: consume reset token: %w", err)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrResetTokenInvalid
	}
	return id, nil
}
