package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"food-whatsapp/models"
)

const sessionKeyPrefix = "session:"

// RedisSessions stores sessions as JSON with a sliding TTL so several bot instances can
// share conversations.
type RedisSessions struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessions(client *redis.Client, ttl time.Duration) *RedisSessions {
	return &RedisSessions{client: client, ttl: ttl}
}

// OpenRedis builds a client and checks connectivity.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisSessions) Get(ctx context.Context, phone string) (Session, error) {
	raw, err := r.client.Get(ctx, sessionKeyPrefix+phone).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, models.ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

func (r *RedisSessions) Set(ctx context.Context, s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return r.client.Set(ctx, sessionKeyPrefix+s.Phone, raw, r.ttl).Err()
}

func (r *RedisSessions) Delete(ctx context.Context, phone string) error {
	return r.client.Del(ctx, sessionKeyPrefix+phone).Err()
}
