package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces bundle keys in redis.
const KeyPrefix = "gradecast:bundle:"

// RedisStore implements Store on top of redis so that every predictor replica
// loads the same artifact set. Bundles do not expire unless a TTL is given.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
}

// NewRedisStore creates a redis-backed store.
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string for no auth)
//   - db: Redis database number (typically 0)
//   - ttl: Bundle expiration (0 keeps bundles until overwritten)
//
// Returns an error if the connection to Redis fails or if parameters are invalid.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}
	if ttl < 0 {
		return nil, errors.New("redis ttl cannot be negative")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisStore{
		client: client,
		ttl:    ttl,
	}, nil
}

func bundleKey(name string) string {
	return KeyPrefix + name
}

// Put stores a bundle under "gradecast:bundle:{name}".
func (r *RedisStore) Put(ctx context.Context, b Bundle) error {
	if err := ValidateName(b.Name); err != nil {
		return err
	}

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal bundle: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.client == nil {
		return errors.New("redis store is closed")
	}

	if err := r.client.Set(ctx, bundleKey(b.Name), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store bundle in redis: %w", err)
	}
	return nil
}

// GetLatest retrieves the bundle stored under name.
//
// Returns:
//   - bundle: The bundle (zero value if not found)
//   - found: true if the key exists
//   - error: non-nil if an error occurred (excluding "not found")
func (r *RedisStore) GetLatest(ctx context.Context, name string) (Bundle, bool, error) {
	if err := ValidateName(name); err != nil {
		return Bundle{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.client == nil {
		return Bundle{}, false, errors.New("redis store is closed")
	}

	data, err := r.client.Get(ctx, bundleKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Bundle{}, false, nil
		}
		return Bundle{}, false, fmt.Errorf("failed to get bundle from redis: %w", err)
	}

	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return Bundle{}, false, fmt.Errorf("failed to unmarshal bundle: %w", err)
	}

	return bundle, true, nil
}

// Close closes the Redis client connection. It is safe to call multiple times.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}

	err := r.client.Close()
	r.client = nil
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}

// Ping checks the Redis connection health.
func (r *RedisStore) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.client == nil {
		return errors.New("redis store is closed")
	}
	return r.client.Ping(ctx).Err()
}
