package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Config holds redis storage configuration
type Config struct {
	Host         string        `json:"host" yaml:"host"`
	Port         int           `json:"port" yaml:"port" validate:"min=1,max=65535"`
	Password     string        `json:"-" yaml:"password"`
	DB           int           `json:"db" yaml:"db" validate:"min=0"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size" validate:"min=1,max=100"`
	MaxRetries   int           `json:"max_retries" yaml:"max_retries" validate:"min=0,max=10"`
	RetryDelay   time.Duration `json:"retry_delay" yaml:"retry_delay"`
	Namespace    string        `json:"namespace" yaml:"namespace"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	OpTimeout    time.Duration `json:"op_timeout" yaml:"op_timeout"`
	ScanPageSize int64         `json:"scan_page_size" yaml:"scan_page_size"`
}

// DefaultConfig returns default storage configuration
func DefaultConfig() *Config {
	return &Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MaxRetries:   3,
		RetryDelay:   100 * time.Millisecond,
		Namespace:    "codescribe:limiter",
		DialTimeout:  5 * time.Second,
		OpTimeout:    time.Second,
		ScanPageSize: 100,
	}
}

// Addr returns host:port
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Redis implements fiber.Storage on top of go-redis
type Redis struct {
	client *redis.Client
	config *Config
	logger zerolog.Logger
}

var _ fiber.Storage = (*Redis)(nil)

// NewRedis connects to redis and verifies the connection
func NewRedis(config *Config, logger zerolog.Logger) (*Redis, error) {
	if config == nil {
		config = DefaultConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:            config.Addr(),
		Password:        config.Password,
		DB:              config.DB,
		PoolSize:        config.PoolSize,
		MaxRetries:      config.MaxRetries,
		MinRetryBackoff: config.RetryDelay,
		DialTimeout:     config.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	s := &Redis{
		client: client,
		config: config,
		logger: logger.With().Str("component", "storage").Logger(),
	}

	s.logger.Info().
		Str("addr", config.Addr()).
		Int("db", config.DB).
		Str("namespace", config.Namespace).
		Msg("Redis storage initialized")

	return s, nil
}

// buildKey creates a namespaced key
func (s *Redis) buildKey(key string) string {
	if s.config.Namespace == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", s.config.Namespace, key)
}

func (s *Redis) opContext() (context.Context, context.CancelFunc) {
	if s.config.OpTimeout <= 0 {
		return context.Background(), func() {}
	}
	return context.WithTimeout(context.Background(), s.config.OpTimeout)
}

// Get returns the stored value, or nil when the key does not exist
func (s *Redis) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	ctx, cancel := s.opContext()
	defer cancel()

	val, err := s.client.Get(ctx, s.buildKey(key)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, nil
}

// Set stores val under key; exp of zero means no expiration
func (s *Redis) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	ctx, cancel := s.opContext()
	defer cancel()

	if err := s.client.Set(ctx, s.buildKey(key), val, exp).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Delete removes key
func (s *Redis) Delete(key string) error {
	if key == "" {
		return nil
	}
	ctx, cancel := s.opContext()
	defer cancel()

	return s.client.Del(ctx, s.buildKey(key)).Err()
}

// Reset removes every key in the namespace
func (s *Redis) Reset() error {
	ctx := context.Background()
	if s.config.Namespace == "" {
		return s.client.FlushDB(ctx).Err()
	}

	pattern := s.buildKey("*")
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, s.config.ScanPageSize).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis delete: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	s.logger.Debug().Int("keys", deleted).Msg("Storage reset")
	return nil
}

// Ping checks the redis connection
func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis connection
func (s *Redis) Close() error {
	return s.client.Close()
}
