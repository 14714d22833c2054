package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/songzhibin97/jsonforge/types"
)

// DefaultKeyPrefix namespaces run keys.
const DefaultKeyPrefix = "jsonforge:"

const runSegment = "run:"

// RedisOptions configures RedisStorage.
type RedisOptions struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	IdleTimeout  time.Duration
	// Prefix is prepended to every key; DefaultKeyPrefix when empty.
	Prefix string
	// CompletedTTL expires terminal runs; zero keeps them until ClearCompleted.
	CompletedTTL time.Duration
}

// RedisStorage stores each run as JSON under <prefix>run:<id>.
type RedisStorage struct {
	client       *redis.Client
	prefix       string
	completedTTL time.Duration
}

// NewRedisStorage connects and pings Redis.
func NewRedisStorage(opts RedisOptions) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		IdleTimeout:  opts.IdleTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStorage{client: client, prefix: prefix, completedTTL: opts.CompletedTTL}, nil
}

func (s *RedisStorage) key(id uint64) string {
	return s.prefix + runSegment + strconv.FormatUint(id, 10)
}

func (s *RedisStorage) SaveRun(ctx context.Context, rec types.RunRecord) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		data, err := json.Marshal(rec)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to marshal run %d: %w", rec.ID, err)
		}
		var ttl time.Duration
		if rec.Status.IsTerminal() {
			ttl = s.completedTTL
		}
		if err := s.client.Set(ctx, s.key(rec.ID), data, ttl).Err(); err != nil {
			return struct{}{}, fmt.Errorf("failed to set run %d in Redis: %w", rec.ID, err)
		}
		return struct{}{}, nil
	})
	return err
}

func (s *RedisStorage) GetRun(ctx context.Context, id uint64) (types.RunRecord, error) {
	return withContext(ctx, func() (types.RunRecord, error) {
		data, err := s.client.Get(ctx, s.key(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			return types.RunRecord{}, fmt.Errorf("%w: id=%d", ErrRunNotFound, id)
		} else if err != nil {
			return types.RunRecord{}, fmt.Errorf("failed to get run %d from Redis: %w", id, err)
		}
		return decodeRecord(s.key(id), data)
	})
}

func (s *RedisStorage) ListRuns(ctx context.Context) ([]types.RunRecord, error) {
	return withContext(ctx, func() ([]types.RunRecord, error) {
		keys, err := s.scanKeys(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]types.RunRecord, 0, len(keys))
		if len(keys) == 0 {
			return out, nil
		}
		values, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to load runs: %w", err)
		}
		for i, v := range values {
			str, ok := v.(string)
			if !ok {
				// expired between SCAN and MGET
				continue
			}
			rec, err := decodeRecord(keys[i], []byte(str))
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		sortByID(out)
		return out, nil
	})
}

func (s *RedisStorage) ClearCompleted(ctx context.Context) (int, error) {
	return withContext(ctx, func() (int, error) {
		runs, err := s.ListRuns(ctx)
		if err != nil {
			return 0, err
		}
		pipe := s.client.Pipeline()
		n := 0
		for _, rec := range runs {
			if rec.Status.IsTerminal() {
				pipe.Del(ctx, s.key(rec.ID))
				n++
			}
		}
		if n == 0 {
			return 0, nil
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, fmt.Errorf("failed to execute pipeline for deletion: %w", err)
		}
		return n, nil
	})
}

func (s *RedisStorage) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+runSegment+"*", 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if _, err := strconv.ParseUint(strings.TrimPrefix(k, s.prefix+runSegment), 10, 64); err != nil {
			continue
		}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan run keys: %w", err)
	}
	return keys, nil
}

func decodeRecord(key string, data []byte) (types.RunRecord, error) {
	var rec types.RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.RunRecord{}, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return rec, nil
}

// Close closes the Redis client.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
