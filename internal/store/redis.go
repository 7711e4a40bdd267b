package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cardroom"

func roomKey(roomID string) string {
	return fmt.Sprintf("%s:room:%s", keyPrefix, roomID)
}

// RedisConfig holds connection and retention settings for the redis
// room store.
type RedisConfig struct {
	// URL is the connection URL, e.g. redis://localhost:6379.
	URL string

	PoolSize     int
	MinIdleConns int

	// RoomTTL bounds how long a stale snapshot outlives its last write.
	RoomTTL time.Duration
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		URL:          "redis://localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		RoomTTL:      24 * time.Hour,
	}
}

// Redis is a redis-backed RoomStore.
type Redis struct {
	client *redis.Client
	cfg    RedisConfig
}

// NewRedis connects to redis and verifies the connection.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Redis{client: client, cfg: cfg}, nil
}

// NewRedisWithClient wraps an existing client. Tests use this with
// miniredis.
func NewRedisWithClient(client *redis.Client, cfg RedisConfig) *Redis {
	return &Redis{client: client, cfg: cfg}
}

var _ RoomStore = (*Redis)(nil)

func (r *Redis) SaveRoom(ctx context.Context, snapshot RoomSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, roomKey(snapshot.RoomID), data, r.cfg.RoomTTL).Err()
}

func (r *Redis) GetRoom(ctx context.Context, roomID string) (RoomSnapshot, error) {
	data, err := r.client.Get(ctx, roomKey(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return RoomSnapshot{}, ErrRoomNotFound
		}
		return RoomSnapshot{}, err
	}
	var snapshot RoomSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return RoomSnapshot{}, err
	}
	return snapshot, nil
}

func (r *Redis) DeleteRoom(ctx context.Context, roomID string) error {
	return r.client.Del(ctx, roomKey(roomID)).Err()
}

// Close closes the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
