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

package nonce

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestMemoryStoreSingleUse verifies a nonce can be consumed only once.
func TestMemoryStoreSingleUse(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Issue(ctx, "n1", "user-1"); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := s.Issue(ctx, "n1", "user-2"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	userID, ok, err := s.Consume(ctx, "n1")
	if err != nil || !ok || userID != "user-1" {
		t.Fatalf("first Consume = %q, %v, %v", userID, ok, err)
	}
	if _, ok, _ := s.Consume(ctx, "n1"); ok {
		t.Error("second Consume should fail")
	}
	if _, ok, _ := s.Consume(ctx, "unknown"); ok {
		t.Error("unknown nonce should not be consumable")
	}
}

// TestMemoryStoreExpiry verifies expired nonces are refused and swept.
func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	s.Issue(ctx, "old", "user-1")
	now = now.Add(DefaultTTL)

	if _, ok, _ := s.Consume(ctx, "old"); ok {
		t.Error("expired nonce should not be consumable")
	}

	s.Issue(ctx, "stale", "user-1")
	now = now.Add(DefaultTTL + time.Second)
	s.Issue(ctx, "fresh", "user-2")
	if _, present := s.entries["stale"]; present {
		t.Error("expected stale entry to be swept")
	}
}
