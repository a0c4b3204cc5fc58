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

// Package notify publishes post-send events to downstream automation: an
// HTTP webhook and, optionally, a Redis list consumed by background workers.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventEmailSent is published after a successful send.
const EventEmailSent = "email_sent"

// Event is the payload delivered to every sink.
type Event struct {
	ID             string    `json:"id"`
	Event          string    `json:"event"`
	EmailID        string    `json:"emailId"`
	UserID         string    `json:"userId"`
	RecipientEmail string    `json:"recipientEmail"`
	RecipientName  string    `json:"recipientName,omitempty"`
	Subject        string    `json:"subject"`
	SentVia        string    `json:"sentVia"`
	SentAt         time.Time `json:"sentAt"`
}

// Sink delivers a single event.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Notifier fans an event out to its sinks. Delivery failures are logged
// and never surface to the caller.
type Notifier struct {
	sinks   []Sink
	timeout time.Duration
}

// New returns a notifier over the non-nil sinks.
func New(sinks ...Sink) *Notifier {
	n := &Notifier{timeout: 10 * time.Second}
	for _, s := range sinks {
		if s != nil {
			n.sinks = append(n.sinks, s)
		}
	}
	return n
}

// Notify stamps ev with an ID and publishes it to every sink.
func (n *Notifier) Notify(ctx context.Context, ev Event) {
	if n == nil || len(n.sinks) == 0 {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.SentAt.IsZero() {
		ev.SentAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	for _, s := range n.sinks {
		if err := s.Publish(ctx, ev); err != nil {
			slog.Warn("event delivery failed",
				"event", ev.Event,
				"event_id", ev.ID,
				"email_id", ev.EmailID,
				"error", err,
			)
		}
	}
}

// Webhook POSTs events as JSON to a fixed URL.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook returns nil when url is empty so it can be passed straight to New.
func NewWebhook(url string, client *http.Client) Sink {
	if url == "" {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Webhook{url: url, client: client}
}

func (w *Webhook) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	slog.Info("published event to webhook", "event", ev.Event, "event_id", ev.ID)
	return nil
}

// Queue pushes events onto a Redis list.
type Queue struct {
	rdb  *redis.Client
	name string
}

// NewQueue returns nil when rdb is nil or name is empty.
func NewQueue(rdb *redis.Client, name string) Sink {
	if rdb == nil || name == "" {
		return nil
	}
	return &Queue{rdb: rdb, name: name}
}

func (q *Queue) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.name, body).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}
	slog.Info("published event to queue", "event", ev.Event, "event_id", ev.ID, "queue", q.name)
	return nil
}
