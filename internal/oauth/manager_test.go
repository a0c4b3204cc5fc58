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

package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

// tokenServer is a fake token endpoint recording the grants it receives.
type tokenServer struct {
	mu       sync.Mutex
	grants   []url.Values
	rotate   bool
	failWith int
}

func (s *tokenServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.grants = append(s.grants, r.PostForm)
	rotate, failWith := s.rotate, s.failWith
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if failWith != 0 {
		w.WriteHeader(failWith)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant", "error_description": "AADSTS70008: expired"})
		return
	}

	resp := map[string]any{
		"access_token": "access-" + r.PostForm.Get("grant_type"),
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if r.PostForm.Get("grant_type") == "authorization_code" || rotate {
		resp["refresh_token"] = "refresh-new"
	}
	json.NewEncoder(w).Encode(resp)
}

func newTestManager(t *testing.T, ts *tokenServer) *Manager {
	t.Helper()
	srv := httptest.NewServer(ts)
	t.Cleanup(srv.Close)

	return NewManager(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://app.example.com/api/auth/microsoft/callback",
		AuthURL:      srv.URL + "/authorize",
		TokenURL:     srv.URL + "/token",
		HTTPClient:   srv.Client(),
	})
}

// TestAuthorizationURL verifies the redirect carries state, scopes and query response mode.
func TestAuthorizationURL(t *testing.T) {
	m := NewManager(Config{ClientID: "cid", RedirectURI: "https://app/cb", Tenant: "contoso"})

	u, err := url.Parse(m.AuthorizationURL("user-1:nonce"))
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if !strings.Contains(u.Path, "/contoso/oauth2/v2.0/authorize") {
		t.Errorf("unexpected path %q", u.Path)
	}
	q := u.Query()
	checks := map[string]string{
		"client_id":     "cid",
		"redirect_uri":  "https://app/cb",
		"response_type": "code",
		"response_mode": "query",
		"state":         "user-1:nonce",
		"scope":         strings.Join(Scopes, " "),
	}
	for k, want := range checks {
		if got := q.Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
}

// TestExchange verifies the code grant and the resulting expiry.
func TestExchange(t *testing.T) {
	ts := &tokenServer{}
	m := newTestManager(t, ts)

	pair, err := m.Exchange(context.Background(), "the-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if pair.AccessToken != "access-authorization_code" || pair.RefreshToken != "refresh-new" {
		t.Errorf("unexpected pair %+v", pair)
	}
	if d := time.Until(pair.ExpiresAt); d < 59*time.Minute || d > 61*time.Minute {
		t.Errorf("expiry %v not about an hour away", pair.ExpiresAt)
	}

	if len(ts.grants) != 1 {
		t.Fatalf("expected 1 grant, got %d", len(ts.grants))
	}
	g := ts.grants[0]
	if g.Get("code") != "the-code" || g.Get("client_secret") != "client-secret" {
		t.Errorf("unexpected grant form %v", g)
	}
}

// TestRefreshKeepsRefreshToken verifies the old refresh token survives a
// response that does not rotate it.
func TestRefreshKeepsRefreshToken(t *testing.T) {
	m := newTestManager(t, &tokenServer{})

	pair, err := m.Refresh(context.Background(), "refresh-old")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if pair.AccessToken != "access-refresh_token" {
		t.Errorf("access token = %q", pair.AccessToken)
	}
	if pair.RefreshToken != "refresh-old" {
		t.Errorf("refresh token = %q, want refresh-old", pair.RefreshToken)
	}
}

// TestRefreshRotates verifies a rotated refresh token replaces the old one.
func TestRefreshRotates(t *testing.T) {
	m := newTestManager(t, &tokenServer{rotate: true})

	pair, err := m.Refresh(context.Background(), "refresh-old")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if pair.RefreshToken != "refresh-new" {
		t.Errorf("refresh token = %q, want refresh-new", pair.RefreshToken)
	}
}

// TestRefreshFailure verifies provider rejections surface as errors.
func TestRefreshFailure(t *testing.T) {
	m := newTestManager(t, &tokenServer{failWith: http.StatusBadRequest})

	_, err := m.Refresh(context.Background(), "refresh-old")
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *oauth2.RetrieveError, got %v", err)
	}

	if _, err := m.Refresh(context.Background(), ""); !errors.Is(err, ErrNoRefreshToken) {
		t.Errorf("expected ErrNoRefreshToken, got %v", err)
	}
}

// TestIsExpired verifies the five minute skew boundary.
func TestIsExpired(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"zero", time.Time{}, true},
		{"past", now.Add(-time.Minute), true},
		{"inside skew", now.Add(4 * time.Minute), true},
		{"outside skew", now.Add(6 * time.Minute), false},
		{"far future", now.Add(time.Hour), false},
	}
	for _, tt := range tests {
		if got := IsExpired(tt.expiresAt, DefaultSkew); got != tt.want {
			t.Errorf("%s: IsExpired = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// TestState verifies state values bind the user to a nonce.
func TestState(t *testing.T) {
	state, nonce := NewState("user-42")
	if !strings.HasPrefix(state, "user-42:") {
		t.Fatalf("state %q missing user prefix", state)
	}

	userID, got, err := ParseState(state)
	if err != nil {
		t.Fatalf("ParseState: %v", err)
	}
	if userID != "user-42" || got != nonce {
		t.Errorf("ParseState = %q, %q", userID, got)
	}

	for _, bad := range []string{"", "nonce-only", ":abc", "user:", "user:not-a-uuid"} {
		if _, _, err := ParseState(bad); !errors.Is(err, ErrInvalidState) {
			t.Errorf("ParseState(%q): expected ErrInvalidState, got %v", bad, err)
		}
	}
}
