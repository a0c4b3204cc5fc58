// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// AssistantRegistry remembers which assistant configuration to reuse.
// Resolve returns "" when no ID is known.
type AssistantRegistry interface {
	Resolve(ctx context.Context) (string, error)
	Store(ctx context.Context, id string) error
}

// StaticRegistry starts from a configured ID and keeps replacements in
// memory for the life of the process.
type StaticRegistry struct {
	mu sync.RWMutex
	id string
}

// NewStaticRegistry creates a registry seeded with id, which may be empty.
func NewStaticRegistry(id string) *StaticRegistry {
	return &StaticRegistry{id: id}
}

// Resolve returns the current ID.
func (r *StaticRegistry) Resolve(context.Context) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.id, nil
}

// Store replaces the current ID.
func (r *StaticRegistry) Store(_ context.Context, id string) error {
	r.mu.Lock()
	r.id = id
	r.mu.Unlock()
	return nil
}

// registryKey holds the assistant ID in Redis.
const registryKey = "outreach:assistant_id"

// RedisRegistry shares the assistant ID across instances and restarts.
type RedisRegistry struct {
	rdb      *redis.Client
	fallback string
}

// NewRedisRegistry creates a Redis-backed registry. fallback is returned
// while Redis holds no ID.
func NewRedisRegistry(rdb *redis.Client, fallback string) *RedisRegistry {
	return &RedisRegistry{rdb: rdb, fallback: fallback}
}

// Resolve reads the stored ID.
func (r *RedisRegistry) Resolve(ctx context.Context) (string, error) {
	id, err := r.rdb.Get(ctx, registryKey).Result()
	if errors.Is(err, redis.Nil) {
		return r.fallback, nil
	}
	if err != nil {
		return r.fallback, fmt.Errorf("registry GET: %w", err)
	}
	return id, nil
}

// Store persists id without expiry.
func (r *RedisRegistry) Store(ctx context.Context, id string) error {
	if err := r.rdb.Set(ctx, registryKey, id, 0).Err(); err != nil {
		return fmt.Errorf("registry SET: %w", err)
	}
	return nil
}
