package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	"github.com/redis/go-redis/v9"
)

const defaultPingTimeout = 5 * time.Second

type Config struct {
	Addr     string `koanf:"addr" mapstructure:"addr"`
	Password string `koanf:"password" mapstructure:"password"`
	DB       int    `koanf:"db" mapstructure:"db"`
	Prefix   string `koanf:"prefix" mapstructure:"prefix"`

	PingTimeout time.Duration `koanf:"ping_timeout" mapstructure:"ping_timeout"`
}

// Store backs the key-value contract with redis so state and credentials
// survive process restarts and are shared across instances. TTL enforcement
// is delegated to redis key expiry.
type Store struct {
	client redis.UniversalClient
	prefix string
}

func New(cfg Config) (*Store, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redisstore: addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = defaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping failed: %w", err)
	}

	return NewFromClient(client, cfg.Prefix)
}

func NewFromClient(client redis.UniversalClient, prefix string) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redisstore: redis client is required")
	}
	return &Store{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}, nil
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("redisstore: store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("redisstore: key is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("redisstore: ttl must be positive for key %q", key)
	}
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.client == nil {
		return nil, false, fmt.Errorf("redisstore: store is not configured")
	}
	value, err := s.client.Get(ctx, s.key(strings.TrimSpace(key))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Consume relies on GETDEL so the read and the delete are one redis command;
// concurrent consumers of the same key cannot both win.
func (s *Store) Consume(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.client == nil {
		return nil, false, fmt.Errorf("redisstore: store is not configured")
	}
	value, err := s.client.GetDel(ctx, s.key(strings.TrimSpace(key))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("redisstore: store is not configured")
	}
	return s.client.Del(ctx, s.key(strings.TrimSpace(key))).Err()
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("redisstore: store is not configured")
	}
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

var _ core.KeyValueStore = (*Store)(nil)
