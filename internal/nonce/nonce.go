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

// Package nonce tracks single-use OAuth state nonces. A nonce is issued when
// the authorization redirect is built and consumed exactly once when the
// callback arrives, so a replayed or forged callback cannot attach tokens
// to an account.
package nonce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL matches the lifetime of the oauth_state cookie.
	DefaultTTL = 10 * time.Minute

	// keyPrefix namespaces nonce keys in Redis.
	keyPrefix = "outreach:oauth_nonce:"
)

// ErrDuplicate is returned when issuing a nonce that is already outstanding.
var ErrDuplicate = errors.New("nonce already issued")

// Store issues and consumes nonces bound to a user ID.
type Store interface {
	Issue(ctx context.Context, nonce, userID string) error
	// Consume returns the bound user ID and true the first time it is called
	// for an unexpired nonce, and false afterwards.
	Consume(ctx context.Context, nonce string) (string, bool, error)
}

// RedisStore keeps nonces in Redis with a TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a nonce store backed by Redis.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		ttl: DefaultTTL,
	}
}

// Issue records nonce for userID. SET NX refuses to overwrite a live nonce.
func (s *RedisStore) Issue(ctx context.Context, nonce, userID string) error {
	set, err := s.rdb.SetNX(ctx, keyPrefix+nonce, userID, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("nonce SETNX: %w", err)
	}
	if !set {
		return ErrDuplicate
	}
	return nil
}

// Consume atomically reads and deletes nonce.
func (s *RedisStore) Consume(ctx context.Context, nonce string) (string, bool, error) {
	userID, err := s.rdb.GetDel(ctx, keyPrefix+nonce).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("nonce GETDEL: %w", err)
	}
	return userID, true, nil
}

// MemoryStore is an in-process Store for single-instance deployments
// without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	userID  string
	expires time.Time
}

// NewMemoryStore creates an in-memory nonce store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ttl:     DefaultTTL,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Issue records nonce for userID.
func (s *MemoryStore) Issue(_ context.Context, nonce, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)
	if _, ok := s.entries[nonce]; ok {
		return ErrDuplicate
	}
	s.entries[nonce] = memoryEntry{userID: userID, expires: now.Add(s.ttl)}
	return nil
}

// Consume returns the bound user and removes the nonce.
func (s *MemoryStore) Consume(_ context.Context, nonce string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[nonce]
	if !ok {
		return "", false, nil
	}
	delete(s.entries, nonce)
	if !s.now().Before(e.expires) {
		return "", false, nil
	}
	return e.userID, true, nil
}

// sweep drops expired entries. Callers hold mu.
func (s *MemoryStore) sweep(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, k)
		}
	}
}
