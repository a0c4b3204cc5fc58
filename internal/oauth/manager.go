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

// Package oauth manages the delegated mailbox connection: building the
// authorization redirect, exchanging the returned code and refreshing
// expired access tokens against the Microsoft identity platform.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const (
	// DefaultSkew is the safety margin subtracted from a token's expiry.
	DefaultSkew = 5 * time.Minute

	// defaultLifetime is assumed when the provider omits expires_in.
	defaultLifetime = time.Hour
)

// Scopes requested for the mailbox connection. offline_access is what makes
// the provider return a refresh token.
var Scopes = []string{
	"https://graph.microsoft.com/Mail.Send",
	"https://graph.microsoft.com/User.Read",
	"offline_access",
}

var (
	// ErrInvalidState is returned when an OAuth state value cannot be parsed.
	ErrInvalidState = errors.New("invalid oauth state")
	// ErrNoRefreshToken is returned when a refresh is requested without a token.
	ErrNoRefreshToken = errors.New("no refresh token")
)

// Config holds the app registration used for the delegated flow.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Tenant       string // "common" when empty

	// AuthURL and TokenURL override the tenant endpoints (tests, sovereign clouds).
	AuthURL  string
	TokenURL string

	HTTPClient *http.Client
}

// TokenPair is the result of a code exchange or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Manager performs the authorization-code and refresh-token grants.
type Manager struct {
	cfg        *oauth2.Config
	httpClient *http.Client
}

// NewManager builds a Manager for the given app registration.
func NewManager(cfg Config) *Manager {
	tenant := cfg.Tenant
	if tenant == "" {
		tenant = "common"
	}

	endpoint := microsoft.AzureADEndpoint(tenant)
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	return &Manager{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint:     endpoint,
			Scopes:       Scopes,
		},
		httpClient: cfg.HTTPClient,
	}
}

// AuthorizationURL returns the provider URL the user is redirected to.
func (m *Manager) AuthorizationURL(state string) string {
	return m.cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("response_mode", "query"))
}

// Exchange trades an authorization code for a token pair.
func (m *Manager) Exchange(ctx context.Context, code string) (*TokenPair, error) {
	tok, err := m.cfg.Exchange(m.context(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return toPair(tok, ""), nil
}

// Refresh obtains a new token pair. When the provider does not rotate the
// refresh token, the old one is carried over.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	// An empty access token forces the source to hit the token endpoint.
	src := m.cfg.TokenSource(m.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return toPair(tok, refreshToken), nil
}

func (m *Manager) context(ctx context.Context) context.Context {
	if m.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

func toPair(tok *oauth2.Token, previousRefresh string) *TokenPair {
	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(defaultLifetime)
	}
	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}
	return &TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt.UTC(),
	}
}

// IsExpired reports whether a token expiring at expiresAt should be
// refreshed now, treating anything within skew of expiry as expired.
// A zero expiry is always expired.
func IsExpired(expiresAt time.Time, skew time.Duration) bool {
	if expiresAt.IsZero() {
		return true
	}
	return !time.Now().Add(skew).Before(expiresAt)
}

// NewState returns an OAuth state value binding userID to a fresh
// single-use nonce, along with the nonce itself.
func NewState(userID string) (state, nonce string) {
	nonce = uuid.NewString()
	return userID + ":" + nonce, nonce
}

// ParseState splits a state value produced by NewState.
func ParseState(state string) (userID, nonce string, err error) {
	i := strings.LastIndex(state, ":")
	if i <= 0 || i == len(state)-1 {
		return "", "", ErrInvalidState
	}
	userID, nonce = state[:i], state[i+1:]
	if _, err := uuid.Parse(nonce); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	return userID, nonce, nil
}
