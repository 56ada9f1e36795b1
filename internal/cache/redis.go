package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	d "github.com/fjod/go_cart/store-order/internal/domain"
)

const (
	DefaultTTL       = 15 * time.Minute
	DefaultMaxJitter = 5 * time.Minute

	breakerTripAfter = 5
	breakerCooldown  = 30 * time.Second
)

// RedisCache stores order aggregates as JSON next to a version key per order.
// All redis calls go through a circuit breaker; misses and stale sets do not
// count as failures.
type RedisCache struct {
	client    *redis.Client
	breaker   *gobreaker.CircuitBreaker[[]byte]
	baseTTL   time.Duration
	maxJitter time.Duration
}

func NewRedisCache(client *redis.Client, baseTTL, maxJitter time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baseTTL <= 0 {
		baseTTL = DefaultTTL
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "order-cache",
		Timeout: breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripAfter
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCacheMiss) || errors.Is(err, ErrStaleEntry)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &RedisCache{
		client:    client,
		breaker:   breaker,
		baseTTL:   baseTTL,
		maxJitter: maxJitter,
	}
}

func (r *RedisCache) Get(ctx context.Context, orderID string) (*d.Aggregate, error) {
	key := cacheKey(orderID)

	data, err := r.breaker.Execute(func() ([]byte, error) {
		data, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		if err != nil {
			return nil, fmt.Errorf("redis get failed: %w", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	var agg d.Aggregate
	if err := json.Unmarshal(data, &agg); err != nil {
		return nil, fmt.Errorf("unmarshal order failed: %w", err)
	}
	return &agg, nil
}

// Version returns the order's current version token, or "" when the order
// has not been invalidated within the version TTL.
func (r *RedisCache) Version(ctx context.Context, orderID string) (string, error) {
	var version string
	_, err := r.breaker.Execute(func() ([]byte, error) {
		v, err := readVersion(ctx, r.client, versionKey(orderID))
		if err != nil {
			return nil, err
		}
		version = v
		return nil, nil
	})
	return version, err
}

// Set stores agg if the order's version still equals version. The version key
// is watched, so a Delete that lands between the check and the write aborts
// the transaction and Set reports ErrStaleEntry.
func (r *RedisCache) Set(ctx context.Context, agg *d.Aggregate, version string) error {
	payload, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("marshal order failed: %w", err)
	}

	key := cacheKey(agg.Header.OrderID)
	vkey := versionKey(agg.Header.OrderID)
	ttl := r.ttl()
	_, err = r.breaker.Execute(func() ([]byte, error) {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := readVersion(ctx, tx, vkey)
			if err != nil {
				return err
			}
			if current != version {
				return ErrStaleEntry
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, ttl)
				return nil
			})
			return err
		}, vkey)
		switch {
		case err == nil, errors.Is(err, ErrStaleEntry):
			return nil, err
		case errors.Is(err, redis.TxFailedErr):
			return nil, ErrStaleEntry
		default:
			return nil, fmt.Errorf("redis set failed: %w", err)
		}
	})
	return err
}

// Delete drops the cached aggregate and gives the order a fresh version in one
// MULTI, so no Set holding an older version can succeed afterwards.
func (r *RedisCache) Delete(ctx context.Context, orderID string) error {
	key := cacheKey(orderID)
	vkey := versionKey(orderID)
	_, err := r.breaker.Execute(func() ([]byte, error) {
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, vkey, uuid.NewString(), r.versionTTL())
			pipe.Del(ctx, key)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("redis delete failed: %w", err)
		}
		return nil, nil
	})
	return err
}

// versionTTL outlives any entry, so an invalidated order keeps its version for
// as long as a stale copy could have been cached.
func (r *RedisCache) versionTTL() time.Duration {
	return r.baseTTL + max(r.maxJitter, 0)
}

// ttl spreads expiries so entries cached together do not expire together.
func (r *RedisCache) ttl() time.Duration {
	if r.maxJitter <= 0 {
		return r.baseTTL
	}
	return r.baseTTL + rand.N(r.maxJitter)
}

func cacheKey(orderID string) string {
	return fmt.Sprintf("store-order:%s", orderID)
}

func versionKey(orderID string) string {
	return fmt.Sprintf("store-order:%s:version", orderID)
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readVersion(ctx context.Context, c stringGetter, key string) (string, error) {
	v, err := c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get version failed: %w", err)
	}
	return v, nil
}
