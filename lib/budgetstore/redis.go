// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package budgetstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vhc-foundation/luma/lib/budget"
	"github.com/vhc-foundation/luma/lib/clock"
	"github.com/vhc-foundation/luma/lib/codec"
)

// ErrContention is returned when a Redis update lost the optimistic
// race MaxRetries times in a row.
var ErrContention = errors.New("budgetstore: too much contention on budget key")

// RedisConfig configures a Redis store.
type RedisConfig struct {
	// Client is the connection to use. The store does not close a
	// caller-supplied client.
	Client redis.UniversalClient

	// KeyPrefix is prepended to the nullifier. Default "luma:budget:".
	KeyPrefix string

	// TTL bounds how long an untouched budget survives. Budgets are
	// per day, so anything past two days is dead weight. Default 48h.
	TTL time.Duration

	// MaxRetries bounds optimistic retries per Update. Default 32.
	MaxRetries int

	// RetryBackoff is slept between retries, multiplied by the
	// attempt number. Default 2ms.
	RetryBackoff time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Redis stores CBOR-encoded budgets under one key per nullifier and
// serializes writers with WATCH/MULTI.
type Redis struct {
	client       redis.UniversalClient
	ownsClient   bool
	keyPrefix    string
	ttl          time.Duration
	maxRetries   int
	retryBackoff time.Duration
	clock        clock.Clock
	logger       *slog.Logger
}

// NewRedis wraps an existing client.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("budgetstore: redis client is required")
	}
	store := &Redis{
		client:       cfg.Client,
		keyPrefix:    cfg.KeyPrefix,
		ttl:          cfg.TTL,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
	}
	if store.keyPrefix == "" {
		store.keyPrefix = "luma:budget:"
	}
	if store.ttl <= 0 {
		store.ttl = 48 * time.Hour
	}
	if store.maxRetries <= 0 {
		store.maxRetries = 32
	}
	if store.retryBackoff <= 0 {
		store.retryBackoff = 2 * time.Millisecond
	}
	if store.clock == nil {
		store.clock = clock.Real()
	}
	if store.logger == nil {
		store.logger = slog.New(slog.DiscardHandler)
	}
	return store, nil
}

// DialRedis connects to a single Redis server and verifies it with
// PING. The returned store owns the client and closes it on Close.
func DialRedis(ctx context.Context, addr, password string, db int, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingContext, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingContext).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("budgetstore: redis ping failed (%s): %w", addr, err)
	}

	cfg.Client = client
	store, err := NewRedis(cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	store.ownsClient = true
	store.logger.Info("redis budget store connected", "addr", addr, "db", db)
	return store, nil
}

func (r *Redis) key(nullifier string) string {
	return r.keyPrefix + nullifier
}

// Load implements Store.
func (r *Redis) Load(ctx context.Context, nullifier string) (*budget.NullifierBudget, error) {
	return r.get(ctx, r.client, nullifier)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *Redis) get(ctx context.Context, client getter, nullifier string) (*budget.NullifierBudget, error) {
	data, err := client.Get(ctx, r.key(nullifier)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("budgetstore: redis get: %w", err)
	}
	return decodeBudget(nullifier, data)
}

// Update implements Store. fn may run several times when other
// writers touch the same key concurrently.
func (r *Redis) Update(ctx context.Context, nullifier string, fn UpdateFunc) (*budget.NullifierBudget, error) {
	key := r.key(nullifier)
	var result *budget.NullifierBudget

	transaction := func(tx *redis.Tx) error {
		current, err := r.get(ctx, tx, nullifier)
		if errors.Is(err, ErrNotFound) {
			current, err = nil, nil
		}
		current, err = currentForUpdate(current, err)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			return errNilBudget
		}
		if next == current {
			result = next
			return nil
		}

		data, err := codec.Marshal(next)
		if err != nil {
			return fmt.Errorf("budgetstore: encoding budget: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		err := r.client.Watch(ctx, transaction, key)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
		r.logger.Debug("budget update lost optimistic race, retrying",
			"nullifier", nullifier,
			"attempt", attempt,
		)
		r.clock.Sleep(time.Duration(attempt) * r.retryBackoff)
	}
	return nil, fmt.Errorf("%w: %s after %d attempts", ErrContention, nullifier, r.maxRetries)
}

// Close implements Store.
func (r *Redis) Close() error {
	if !r.ownsClient {
		return nil
	}
	return r.client.Close()
}
