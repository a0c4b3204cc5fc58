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

// Package web serves the outreach HTTP API: email generation, sending, and
// the mailbox connection flow. Handlers orchestrate the core packages and
// own all persistence side effects.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/bcem/outreach/internal/graph"
	"github.com/bcem/outreach/internal/models"
	"github.com/bcem/outreach/internal/nonce"
	"github.com/bcem/outreach/internal/notify"
	"github.com/bcem/outreach/internal/oauth"
	"github.com/bcem/outreach/internal/store"
)

// Generator writes and condenses emails.
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error)
	Shorten(ctx context.Context, subject, body string) (*models.GenerationResult, error)
}

// Sender delivers a message through the user's configured provider.
type Sender interface {
	Send(ctx context.Context, userID string, msg models.OutboundMessage) error
}

// OAuthFlow is the authorization-code half of the token manager.
type OAuthFlow interface {
	AuthorizationURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth.TokenPair, error)
}

// MailboxProfiler reads the connected mailbox's identity.
type MailboxProfiler interface {
	Me(ctx context.Context, accessToken string) (*graph.Profile, error)
}

// Vault encrypts credentials before they are stored.
type Vault interface {
	Encrypt(plaintext string) (string, error)
	Ephemeral() bool
}

// Notifier receives post-send events.
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event)
}

// Deps holds everything the router needs.
type Deps struct {
	Store     store.Store
	Generator Generator
	Sender    Sender
	OAuth     OAuthFlow // nil when no app registration is configured
	Mailbox   MailboxProfiler
	Vault     Vault
	Nonces    nonce.Store
	Notifier  Notifier

	JWTSecret      []byte
	SecureCookies  bool
	RequestTimeout time.Duration
}

type handler struct {
	Deps
}

// NewRouter wires all routes into a chi router.
func NewRouter(deps Deps) *chi.Mux {
	if deps.RequestTimeout == 0 {
		deps.RequestTimeout = 90 * time.Second
	}
	h := &handler{Deps: deps}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", h.health)

	// The callback is authenticated by the state nonce, not the session.
	r.Get("/api/auth/microsoft/callback", h.oauthCallback)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(deps.JWTSecret))
		r.Use(chiMiddleware.Timeout(deps.RequestTimeout))

		r.Post("/api/generate-email", h.generateEmail)
		r.Post("/api/shorten-email", h.shortenEmail)
		r.Post("/api/send-email", h.sendEmail)

		r.Get("/api/auth/microsoft/authorize", h.oauthAuthorize)
		r.Post("/api/auth/microsoft/disconnect", h.oauthDisconnect)
		r.Get("/api/auth/microsoft/status", h.oauthStatus)

		r.Post("/api/profile", h.updateProfile)
		r.Post("/api/profile/mail", h.updateMailSettings)
	})

	return r
}

// requestLogger logs one line per request with slog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chiMiddleware.GetReqID(r.Context()),
		)
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	vaultMode := "persistent"
	if h.Vault != nil && h.Vault.Ephemeral() {
		vaultMode = "ephemeral"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		slog.Error("health check: database unreachable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "unhealthy",
			"database": "unreachable",
			"vault":    vaultMode,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"database": "ok",
		"vault":    vaultMode,
	})
}
