package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idempotency:"

// inflightMarker is the value SetNX writes while a reservation is held.
// Result payloads are JSON objects, so the marker cannot collide.
const inflightMarker = "__inflight__"

// RedisStore backs the idempotency protocol with Redis. SetNX gives the
// atomic check-and-set; the TTL set at reserve time survives Complete
// via KEEPTTL, so the 24h window runs from creation as required.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Reserve(ctx context.Context, key string, ttl time.Duration) (Reservation, error) {
	rkey := keyPrefix + key

	// Two attempts cover the race where the key expires between SetNX
	// and GET.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, rkey, inflightMarker, ttl).Result()
		if err != nil {
			return Reservation{}, fmt.Errorf("reserve %s: %w", key, err)
		}
		if ok {
			return Reservation{State: StateFresh}, nil
		}

		val, err := s.client.Get(ctx, rkey).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return Reservation{}, fmt.Errorf("read reservation %s: %w", key, err)
		}
		if val == inflightMarker {
			return Reservation{State: StateInFlight}, nil
		}
		return Reservation{State: StateCached, Payload: []byte(val)}, nil
	}

	return Reservation{State: StateInFlight}, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, payload []byte) error {
	// XX: only overwrite an existing reservation; KEEPTTL preserves the
	// expiry set at creation.
	err := s.client.SetArgs(ctx, keyPrefix+key, payload, redis.SetArgs{
		Mode:    "XX",
		KeepTTL: true,
	}).Err()
	if err != nil {
		return fmt.Errorf("complete %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
