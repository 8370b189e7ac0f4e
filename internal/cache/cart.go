// Package cache implements the Redis-backed cart store. Carts are anonymous
// and short-lived, so they live in Redis with a sliding TTL instead of the
// relational store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/nilecart/storefront/internal/domain/cart"
)

// DefaultCartTTL is how long an untouched cart survives. Every save renews it.
const DefaultCartTTL = 7 * 24 * time.Hour

var _ cart.Store = (*RedisCartStore)(nil)

// RedisCartStore stores each cart as a single JSON document keyed by cart ID.
// Optimistic concurrency uses the cart's Version field under WATCH: a save
// whose base version no longer matches fails with cart.ErrConcurrentUpdate.
type RedisCartStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCartStore creates a RedisCartStore. A non-positive ttl falls back
// to DefaultCartTTL.
func NewRedisCartStore(client *redis.Client, ttl time.Duration) *RedisCartStore {
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	return &RedisCartStore{client: client, ttl: ttl}
}

// Get loads a cart by ID.
func (s *RedisCartStore) Get(ctx context.Context, id string) (*cart.Cart, error) {
	data, err := s.client.Get(ctx, cartKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cart %q: %w", id, err)
	}

	var c cart.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart %q: %w", id, err)
	}
	return &c, nil
}

// Save writes the cart if its stored version still matches the version the
// caller loaded, then bumps the version and renews the TTL.
func (s *RedisCartStore) Save(ctx context.Context, c *cart.Cart) error {
	key := cartKey(c.ID)
	baseVersion := c.Version

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			// New cart; only a zero base version may create it.
			if baseVersion != 0 {
				return cart.ErrConcurrentUpdate
			}
		case err != nil:
			return fmt.Errorf("redis get cart %q: %w", c.ID, err)
		default:
			var stored cart.Cart
			if err := json.Unmarshal(data, &stored); err != nil {
				return fmt.Errorf("unmarshal cart %q: %w", c.ID, err)
			}
			if stored.Version != baseVersion {
				return cart.ErrConcurrentUpdate
			}
		}

		next := *c
		next.Version = baseVersion + 1
		next.UpdatedAt = time.Now().UTC()

		payload, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("marshal cart %q: %w", c.ID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}

		c.Version = next.Version
		c.UpdatedAt = next.UpdatedAt
		return nil
	}

	err := s.client.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		// The key changed between WATCH and EXEC.
		return cart.ErrConcurrentUpdate
	}
	return err
}

// Delete removes a cart. Deleting a missing cart is not an error.
func (s *RedisCartStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, cartKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete cart %q: %w", id, err)
	}
	return nil
}

func cartKey(id string) string {
	return "cart:" + id
}
