// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel location updates travel on.
const DefaultChannel = "safemap:updates"

// OpenRedis returns a client for addr, or nil when addr is empty.
func OpenRedis(addr, password string) *redis.Client {
	if addr == "" {
		return nil
	}

	return redis.NewClient(&redis.Options{Addr: addr, Password: password})
}

// RedisRelay shares location updates between server instances. Publish
// writes to a Redis channel and Run copies everything on that channel into
// the local hub, so each instance broadcasts updates received by any other.
// Once Run stops on an error, updates go straight to the local hub.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	local   atomic.Bool
}

// NewRedisRelay creates a relay between client's channel and hub.
func NewRedisRelay(client *redis.Client, channel string, hub *Hub) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}

	return &RedisRelay{client: client, channel: channel, hub: hub}
}

// Publish sends u to every instance listening on the channel, this one
// included. After Run has failed only local subscribers receive u.
func (r *RedisRelay) Publish(ctx context.Context, u Update) error {
	if r.local.Load() {
		return r.hub.Publish(ctx, u)
	}

	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encoding update for %q: %w", u.Name, err)
	}

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing update for %q: %w", u.Name, err)
	}

	return nil
}

// Local reports whether the relay has fallen back to local delivery.
func (r *RedisRelay) Local() bool {
	return r.local.Load()
}

// Run forwards channel messages into the hub until ctx is done. Any other exit
// switches Publish to local delivery.
func (r *RedisRelay) Run(ctx context.Context) error {
	defer func() {
		if ctx.Err() == nil {
			r.local.Store(true)
		}
	}()

	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", r.channel, err)
	}

	msgs := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}

			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("subscription to %s closed", r.channel)
			}

			var u Update
			if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
				log.Printf("Ignoring malformed update on %s: %v", r.channel, err)

				continue
			}

			_ = r.hub.Publish(ctx, u)
		}
	}
}
