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

package web

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bcem/outreach/internal/graph"
	"github.com/bcem/outreach/internal/models"
	"github.com/bcem/outreach/internal/nonce"
	"github.com/bcem/outreach/internal/notify"
	"github.com/bcem/outreach/internal/oauth"
	"github.com/bcem/outreach/internal/store"
	"github.com/bcem/outreach/internal/vault"
)

var testSecret = []byte("test-jwt-secret")

const testVaultKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type mockStore struct {
	mu      sync.Mutex
	users   map[string]models.User
	emails  map[string]models.EmailRecord
	pingErr error
}

func newMockStore(users ...models.User) *mockStore {
	s := &mockStore{users: map[string]models.User{}, emails: map[string]models.EmailRecord{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *mockStore) CreateUser(_ context.Context, u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *mockStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *mockStore) UpdateProfile(_ context.Context, userID, name string, sig models.UserSignature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.Name, u.Signature = name, sig
	s.users[userID] = u
	return nil
}

func (s *mockStore) UpdateMailCredential(_ context.Context, userID string, cred *models.MailCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.Credential = cred
	s.users[userID] = u
	return nil
}

func (s *mockStore) SaveEmail(_ context.Context, rec *models.EmailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = "email-" + rec.RecipientEmail
	}
	s.emails[rec.ID] = *rec
	return nil
}

func (s *mockStore) GetEmail(_ context.Context, id string) (*models.EmailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.emails[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *mockStore) UpdateEmailStatus(_ context.Context, id, status, sentVia string, sentAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.emails[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.Status, rec.SentVia, rec.SentAt = status, sentVia, sentAt
	s.emails[id] = rec
	return nil
}

func (s *mockStore) Ping(context.Context) error { return s.pingErr }
func (s *mockStore) Close() error               { return nil }

type mockGenerator struct {
	mu      sync.Mutex
	lastReq models.GenerationRequest
	result  models.GenerationResult
	err     error
}

func (g *mockGenerator) Generate(_ context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastReq = req
	if g.err != nil {
		return nil, g.err
	}
	res := g.result
	return &res, nil
}

func (g *mockGenerator) Shorten(_ context.Context, subject, body string) (*models.GenerationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return &models.GenerationResult{Subject: subject, Body: "short: " + body}, nil
}

type mockSender struct {
	mu   sync.Mutex
	sent []models.OutboundMessage
	err  error
}

func (m *mockSender) Send(_ context.Context, _ string, msg models.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type mockOAuth struct {
	mu        sync.Mutex
	exchanges int
	err       error
}

func (m *mockOAuth) AuthorizationURL(state string) string {
	return "https://login.example.com/authorize?state=" + state
}

func (m *mockOAuth) Exchange(_ context.Context, code string) (*oauth.TokenPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchanges++
	if m.err != nil {
		return nil, m.err
	}
	return &oauth.TokenPair{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

type mockMailbox struct{}

func (mockMailbox) Me(context.Context, string) (*graph.Profile, error) {
	return &graph.Profile{UserPrincipalName: "jane@contoso.com"}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

type testEnv struct {
	router    *chi.Mux
	store     *mockStore
	generator *mockGenerator
	sender    *mockSender
	oauth     *mockOAuth
	vault     *vault.Vault
	nonces    *nonce.MemoryStore
	notifier  *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	v, err := vault.New(testVaultKey)
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	env := &testEnv{
		store: newMockStore(models.User{
			ID:        "u1",
			Email:     "jane@example.com",
			Name:      "Jane Doe",
			Signature: models.UserSignature{Name: "Jane Doe", Phone: "01606 000000"},
		}),
		generator: &mockGenerator{result: models.GenerationResult{Subject: "Hi", Body: "Hello"}},
		sender:    &mockSender{},
		oauth:     &mockOAuth{},
		vault:     v,
		nonces:    nonce.NewMemoryStore(),
		notifier:  &recordingNotifier{},
	}
	env.router = NewRouter(Deps{
		Store:     env.store,
		Generator: env.generator,
		Sender:    env.sender,
		OAuth:     env.oauth,
		Mailbox:   mockMailbox{},
		Vault:     v,
		Nonces:    env.nonces,
		Notifier:  env.notifier,
		JWTSecret: testSecret,
	})
	return env
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := IssueToken(testSecret, Claims{ID: userID, Email: userID + "@example.com"}, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return tok
}

// do sends an authenticated request as u1.
func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token(t, "u1"))
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}
