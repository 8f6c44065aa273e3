package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/constants"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/util"
	"github.com/RobiinJonsson/marketdata-dashboard-go/pkg/errors"
)

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisStore shares cached responses between processes. Entries carry their own StoredAt and TTL,
// checked on read like the memory store; the Redis expiry only reclaims space.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
	logger *zap.Logger
}

func NewRedisStore(cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	logger = util.OrNop(logger)
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.NewCacheError("failed to connect to Redis", "ping", "", err)
	}

	logger.Info("Redis connected",
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		zap.Int("db", cfg.DB),
	)

	return NewRedisStoreFromClient(client, logger), nil
}

func NewRedisStoreFromClient(client *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: constants.CacheKeys.RedisPrefix,
		now:    time.Now,
		logger: util.OrNop(logger),
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	s.now = now
	return s
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewCacheError("get failed", "get", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.logger.Warn("Dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		_ = s.client.Del(ctx, s.prefix+key).Err()
		return nil, false, nil
	}

	if !entry.Valid(s.now()) {
		if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
			s.logger.Debug("Failed to evict expired entry", zap.String("key", key), zap.Error(err))
		}
		return nil, false, nil
	}

	return &entry, true, nil
}

func (s *RedisStore) Set(ctx context.Context, entry *Entry) error {
	if entry.StoredAt.IsZero() {
		entry.StoredAt = s.now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return errors.NewCacheError("marshal failed", "set", entry.Key, err)
	}

	if err := s.client.Set(ctx, s.prefix+entry.Key, data, entry.TTL).Err(); err != nil {
		return errors.NewCacheError("set failed", "set", entry.Key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, pattern string) (int, error) {
	match := s.prefix + "*"
	if pattern != "" {
		match = s.prefix + "*" + escapeGlob(pattern) + "*"
	}

	removed := 0
	iter := s.client.Scan(ctx, 0, match, 100).Iterator()
	batch := make([]string, 0, 100)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.client.Del(ctx, batch...).Result()
		if err != nil {
			return errors.NewCacheError("delete failed", "del", fmt.Sprintf("%d keys", len(batch)), err)
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, errors.NewCacheError("scan failed", "scan", match, err)
	}
	if err := flush(); err != nil {
		return removed, err
	}

	return removed, nil
}

func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		s.logger.Error("Failed to close Redis connection", zap.Error(err))
		return err
	}
	s.logger.Info("Redis disconnected")
	return nil
}

func escapeGlob(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
