package sessions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "gistdeck:session:"

// RedisRepo stores sessions in Redis for multi-instance deployments. The
// per-key TTL mirrors the session's local expiry, so Redis evicts expired
// sessions on its own; Get still checks ExpiresAt so a session is never
// returned stale inside the TTL rounding window.
type RedisRepo struct {
	client  *redis.Client
	nowTime func() time.Time
}

// NewRedisRepo creates a Redis-backed session repository.
func NewRedisRepo(client *redis.Client) (*RedisRepo, error) {
	if client == nil {
		return nil, errors.New("[NewRedisRepo] redis client is required")
	}
	return &RedisRepo{client: client, nowTime: time.Now}, nil
}

func (r *RedisRepo) Upsert(ctx context.Context, sessionID string, session Session) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[RedisRepo.Upsert] marshal session")
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		// Already expired, nothing worth storing.
		return nil
	}
	if err := r.client.Set(ctx, redisKeyPrefix+sessionID, payload, ttl).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Upsert] redis SET")
	}
	return nil
}

func (r *RedisRepo) Get(ctx context.Context, sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, errors.New("sessionID cannot be empty")
	}

	payload, err := r.client.Get(ctx, redisKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, errors.Wrap(err, "[RedisRepo.Get] redis GET")
	}

	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return Session{}, errors.Wrap(err, "[RedisRepo.Get] unmarshal session")
	}
	if session.Expired(r.nowTime()) {
		_ = r.client.Del(ctx, redisKeyPrefix+sessionID).Err()
		return Session{}, ErrNotFound
	}
	return session, nil
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
