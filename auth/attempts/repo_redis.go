package attempts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "gistdeck:attempt:"

// RedisRepo stores pending attempts in Redis so the callback can land on a
// different instance than the one that initiated the login. Entries carry a
// TTL, so Redis handles eviction of abandoned attempts natively.
type RedisRepo struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRepo creates a Redis-backed pending attempt repository. ttl bounds
// how long an attempt survives between redirect and callback.
func NewRedisRepo(client *redis.Client, ttl time.Duration) (*RedisRepo, error) {
	if client == nil {
		return nil, errors.New("[NewRedisRepo] redis client is required")
	}
	if ttl <= 0 {
		return nil, errors.New("[NewRedisRepo] ttl must be positive")
	}
	return &RedisRepo{client: client, ttl: ttl}, nil
}

func (r *RedisRepo) Upsert(ctx context.Context, sessionID string, attempt *Attempt) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}
	if attempt == nil {
		return errors.New("attempt cannot be nil")
	}

	payload, err := json.Marshal(attempt)
	if err != nil {
		return errors.Wrap(err, "[RedisRepo.Upsert] marshal attempt")
	}
	if err := r.client.Set(ctx, redisKeyPrefix+sessionID, payload, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Upsert] redis SET")
	}
	return nil
}

// Take uses GETDEL so retrieval and deletion are a single atomic operation.
func (r *RedisRepo) Take(ctx context.Context, sessionID string) (*Attempt, error) {
	if sessionID == "" {
		return nil, errors.New("sessionID cannot be empty")
	}

	payload, err := r.client.GetDel(ctx, redisKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[RedisRepo.Take] redis GETDEL")
	}

	var attempt Attempt
	if err := json.Unmarshal(payload, &attempt); err != nil {
		return nil, errors.Wrap(err, "[RedisRepo.Take] unmarshal attempt")
	}
	return &attempt, nil
}

func (r *RedisRepo) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}
	if err := r.client.Del(ctx, redisKeyPrefix+sessionID).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Delete] redis DEL")
	}
	return nil
}

// DeleteExpired is a no-op: Redis expires entries via the per-key TTL.
func (r *RedisRepo) DeleteExpired(context.Context, time.Time) error {
	return nil
}
