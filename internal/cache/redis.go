package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/order-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL    = 15 * time.Minute
	defaultJitter = 5 * time.Minute
)

type RedisCache struct {
	client    *redis.Client
	baseTTL   time.Duration
	maxJitter time.Duration
}

type Option func(*RedisCache)

// WithTTL sets the base expiry and the upper bound of the random jitter
// added to it, so entries written together do not expire together.
func WithTTL(base, jitter time.Duration) Option {
	return func(r *RedisCache) {
		if base > 0 {
			r.baseTTL = base
		}
		if jitter >= 0 {
			r.maxJitter = jitter
		}
	}
}

func NewRedisCache(client *redis.Client, opts ...Option) *RedisCache {
	r := &RedisCache{
		client:    client,
		baseTTL:   defaultTTL,
		maxJitter: defaultJitter,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRedisClient connects and pings before returning.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (r *RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

func (r *RedisCache) Set(ctx context.Context, userID string, cart *domain.Cart) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	if err := r.client.Set(ctx, cacheKey(userID), payload, r.ttl()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisCache) ttl() time.Duration {
	if r.maxJitter <= 0 {
		return r.baseTTL
	}
	return r.baseTTL + time.Duration(rand.Int63n(int64(r.maxJitter)+1))
}

func cacheKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}
