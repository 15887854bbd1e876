// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/mvgen/internal/log"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "mvgen:session:"
	redisScanCount = 100
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// MaxAge is the key TTL written with every Set.
	MaxAge time.Duration
}

// RedisStore keeps sessions as JSON values with a server-side TTL.
type RedisStore struct {
	client *redis.Client
	maxAge time.Duration
	now    Clock
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger := log.WithComponent("session")
	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis session store")

	return newRedisStore(client, cfg.MaxAge, time.Now), nil
}

func newRedisStore(client *redis.Client, maxAge time.Duration, now Clock) *RedisStore {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &RedisStore{client: client, maxAge: maxAge, now: now}
}

func redisKey(id string) string { return redisKeyPrefix + id }

func (s *RedisStore) Set(ctx context.Context, id string, sess Session) error {
	v, err := prepare(id, sess, s.now())
	if err != nil {
		return err
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(id), buf, s.maxAge).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	buf, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("redis get: %w", err)
	}
	var v Session
	if err := json.Unmarshal(buf, &v); err != nil {
		return Session{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	if expired(v, s.now(), s.maxAge) {
		return Session{}, ErrNotFound
	}
	return v, nil
}

func (s *RedisStore) Has(ctx context.Context, id string) (bool, error) {
	_, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Cleanup scans the session keyspace. Keys normally expire through their
// TTL; this catches sessions whose createdAt predates a shorter maxAge and
// values that no longer decode.
func (s *RedisStore) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	now := s.now()
	removed := 0

	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		buf, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("redis get %s: %w", key, err)
		}
		var v Session
		if err := json.Unmarshal(buf, &v); err == nil && now.Sub(v.CreatedAt) <= maxAge {
			continue
		}
		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return removed, fmt.Errorf("redis delete %s: %w", key, err)
		}
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan: %w", err)
	}
	return removed, nil
}

// Ping reports whether Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
