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
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bcem/outreach/internal/assistants"
	"github.com/bcem/outreach/internal/models"
)

// mockBackend is an in-memory assistants backend. Runs report the queued
// statuses in order, then stay on the last one.
type mockBackend struct {
	mu sync.Mutex

	known     map[string]bool
	created   int
	statuses  []assistants.RunStatus
	lastError *assistants.RunError
	reply     []assistants.Message

	threadErr error

	prompts       []string
	retrieveCalls int
	cancelCalls   int
}

func newMockBackend(reply string, statuses ...assistants.RunStatus) *mockBackend {
	return &mockBackend{
		known:    map[string]bool{"asst_1": true},
		statuses: statuses,
		reply: []assistants.Message{
			{Role: "assistant", Content: []assistants.Content{{Type: "text", Text: &assistants.Text{Value: reply}}}},
			{Role: "user", Content: []assistants.Content{{Type: "text", Text: &assistants.Text{Value: "prompt"}}}},
		},
	}
}

func (m *mockBackend) RetrieveAssistant(_ context.Context, id string) (*assistants.Assistant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.known[id] {
		return nil, &assistants.APIError{StatusCode: 404, Message: "not found"}
	}
	return &assistants.Assistant{ID: id}, nil
}

func (m *mockBackend) CreateAssistant(_ context.Context, p assistants.AssistantParams) (*assistants.Assistant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
	id := fmt.Sprintf("asst_new_%d", m.created)
	m.known[id] = true
	return &assistants.Assistant{ID: id, Model: p.Model}, nil
}

func (m *mockBackend) CreateThread(context.Context) (*assistants.Thread, error) {
	if m.threadErr != nil {
		return nil, m.threadErr
	}
	return &assistants.Thread{ID: "thread_1"}, nil
}

func (m *mockBackend) AddMessage(_ context.Context, _ string, content string) (*assistants.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, content)
	return &assistants.Message{Role: "user"}, nil
}

func (m *mockBackend) CreateRun(context.Context, string, string) (*assistants.Run, error) {
	return &assistants.Run{ID: "run_1", Status: assistants.RunQueued}, nil
}

func (m *mockBackend) RetrieveRun(context.Context, string, string) (*assistants.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retrieveCalls++
	i := m.retrieveCalls - 1
	if i >= len(m.statuses) {
		i = len(m.statuses) - 1
	}
	return &assistants.Run{ID: "run_1", Status: m.statuses[i], LastError: m.lastError}, nil
}

func (m *mockBackend) CancelRun(context.Context, string, string) (*assistants.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelCalls++
	return &assistants.Run{ID: "run_1", Status: assistants.RunCancelling}, nil
}

func (m *mockBackend) ListMessages(context.Context, string) ([]assistants.Message, error) {
	return m.reply, nil
}

func (m *mockBackend) polls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retrieveCalls
}

type failingRegistry struct{ id string }

func (r failingRegistry) Resolve(context.Context) (string, error) { return r.id, nil }
func (r failingRegistry) Store(context.Context, string) error    { return errors.New("read-only") }

func fastConfig() Config {
	return Config{PollInterval: time.Millisecond, Timeout: 2 * time.Second, CompanyName: "Cheshire Sheds"}
}

// TestGenerateCompletes verifies the happy path: poll to completion,
// sanitize, then append the signature.
func TestGenerateCompletes(t *testing.T) {
	be := newMockBackend(
		"Subject: Your cabin\n\nHi Alice.\n\nWarm regards,\nCheshire Sheds\nIbex House, Nat Lane, Winsford\nTel: 01606 352352\nsales@x.co.uk",
		assistants.RunInProgress, assistants.RunCompleted,
	)
	c := NewClient(be, NewStaticRegistry("asst_1"), nil, fastConfig())

	res, err := c.Generate(context.Background(), models.GenerationRequest{
		RecipientName:  "Alice",
		RecipientEmail: "alice@example.com",
		Signature:      &models.UserSignature{Name: "Jane", Phone: "555"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Subject != "Your cabin" {
		t.Errorf("subject = %q", res.Subject)
	}
	if want := "Hi Alice.\n\nWarm regards,\n\nJane\nPhone: 555"; res.Body != want {
		t.Errorf("body = %q, want %q", res.Body, want)
	}
	if be.polls() != 2 {
		t.Errorf("expected 2 polls, got %d", be.polls())
	}
	if be.created != 0 {
		t.Error("existing assistant should be reused")
	}
	if !strings.Contains(be.prompts[0], "Recipient Name: Alice\n") {
		t.Errorf("unexpected prompt %q", be.prompts[0])
	}
}

// TestGenerateCreatesAssistant verifies a missing assistant is replaced and
// the new ID remembered for the next call.
func TestGenerateCreatesAssistant(t *testing.T) {
	be := newMockBackend("Subject: s\nbody", assistants.RunCompleted)
	reg := NewStaticRegistry("asst_gone")
	c := NewClient(be, reg, nil, fastConfig())

	for i := 0; i < 2; i++ {
		if _, err := c.Generate(context.Background(), models.GenerationRequest{RecipientEmail: "a@b.c"}); err != nil {
			t.Fatalf("Generate: %v", err)
		}
	}
	if be.created != 1 {
		t.Errorf("expected 1 assistant created, got %d", be.created)
	}
	if id, _ := reg.Resolve(context.Background()); id != "asst_new_1" {
		t.Errorf("registry holds %q", id)
	}
}

// TestGenerateRegistryStoreFailure verifies a lost assistant ID is not an error.
func TestGenerateRegistryStoreFailure(t *testing.T) {
	be := newMockBackend("Subject: s\nbody", assistants.RunCompleted)
	c := NewClient(be, failingRegistry{}, nil, fastConfig())

	if _, err := c.Generate(context.Background(), models.GenerationRequest{RecipientEmail: "a@b.c"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := c.Generate(context.Background(), models.GenerationRequest{RecipientEmail: "a@b.c"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if be.created != 2 {
		t.Errorf("expected a create per call, got %d", be.created)
	}
}

// TestGenerateTimeout verifies a run that never finishes raises ErrTimeout,
// is cancelled, and is not polled afterwards.
func TestGenerateTimeout(t *testing.T) {
	be := newMockBackend("unused", assistants.RunInProgress)
	cfg := fastConfig()
	cfg.PollInterval = 5 * time.Millisecond
	cfg.Timeout = 40 * time.Millisecond
	c := NewClient(be, NewStaticRegistry("asst_1"), nil, cfg)

	_, err := c.Generate(context.Background(), models.GenerationRequest{RecipientEmail: "a@b.c"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if errors.Is(err, ErrFailed) || errors.Is(err, ErrEmpty) {
		t.Errorf("timeout should be distinct: %v", err)
	}

	after := be.polls()
	time.Sleep(30 * time.Millisecond)
	if be.polls() != after {
		t.Errorf("polling continued after timeout: %d -> %d", after, be.polls())
	}
	if be.cancelCalls != 1 {
		t.Errorf("expected 1 cancel, got %d", be.cancelCalls)
	}
}

// TestGenerateCallerCancel verifies the caller's deadline aborts the poll loop promptly.
func TestGenerateCallerCancel(t *testing.T) {
	be := newMockBackend("unused", assistants.RunQueued)
	cfg := fastConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.Timeout = time.Minute
	c := NewClient(be, NewStaticRegistry("asst_1"), nil, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Generate(ctx, models.GenerationRequest{RecipientEmail: "a@b.c"})
	if !errors.Is(err, ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected ErrTimeout wrapping DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("poll loop did not stop promptly")
	}
}

// TestGenerateTerminalStatuses verifies failed and other terminal states.
func TestGenerateTerminalStatuses(t *testing.T) {
	tests := []struct {
		status assistants.RunStatus
		want   error
	}{
		{assistants.RunFailed, ErrFailed},
		{assistants.RunCancelled, ErrFailed},
		{assistants.RunIncomplete, ErrFailed},
		{assistants.RunRequiresAction, ErrFailed},
		{assistants.RunExpired, ErrTimeout},
	}
	for _, tt := range tests {
		be := newMockBackend("unused", tt.status)
		be.lastError = &assistants.RunError{Code: "server_error", Message: "backend exploded"}
		c := NewClient(be, NewStaticRegistry("asst_1"), nil, fastConfig())

		_, err := c.Generate(context.Background(), models.GenerationRequest{RecipientEmail: "a@b.c"})
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.status, tt.want, err)
		}
		if tt.status == assistants.RunFailed && !strings.Contains(err.Error(), "backend exploded") {
			t.Errorf("failed run should carry last_error: %v", err)
		}
	}
}

// TestGenerateEmpty verifies a completed run without assistant text.
func TestGenerateEmpty(t *testing.T) {
	be := newMockBackend("", assistants.RunCompleted)
	be.reply = be.reply[1:]
	c := NewClient(be, NewStaticRegistry("asst_1"), nil, fastConfig())

	_, err := c.Generate(context.Background(), models.GenerationRequest{RecipientEmail: "a@b.c"})
	if !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

// TestGenerateTransportError verifies backend call failures map to ErrFailed.
func TestGenerateTransportError(t *testing.T) {
	be := newMockBackend("", assistants.RunCompleted)
	be.threadErr = errors.New("connection reset")
	c := NewClient(be, NewStaticRegistry("asst_1"), nil, fastConfig())

	_, err := c.Generate(context.Background(), models.GenerationRequest{RecipientEmail: "a@b.c"})
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("expected ErrFailed, got %v", err)
	}
}

// TestShortenKeepsSignature verifies the signature is held back from the
// backend and re-attached verbatim.
func TestShortenKeepsSignature(t *testing.T) {
	be := newMockBackend("Short hello.\n\nBest regards,\nCheshire Sheds", assistants.RunCompleted)
	c := NewClient(be, NewStaticRegistry("asst_1"), nil, fastConfig())

	body := "A long hello with many words.\n\nBest regards,\n\nJane\nSales\nPhone: 555\nEmail: jane@x.co"
	res, err := c.Shorten(context.Background(), "Original subject", body)
	if err != nil {
		t.Fatalf("Shorten: %v", err)
	}
	if res.Subject != "Original subject" {
		t.Errorf("subject = %q", res.Subject)
	}
	if want := "Short hello.\n\nBest regards,\n\nJane\nSales\nPhone: 555\nEmail: jane@x.co"; res.Body != want {
		t.Errorf("body = %q, want %q", res.Body, want)
	}
	if strings.Contains(be.prompts[0], "Phone: 555") {
		t.Error("signature should not be sent to the backend")
	}
	if !strings.Contains(be.prompts[0], "Subject: Original subject") {
		t.Error("prompt missing subject")
	}
}
