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
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bcem/outreach/internal/models"
	"github.com/bcem/outreach/internal/oauth"
)

const (
	stateCookie    = "oauth_state"
	stateCookieAge = 600
)

// oauthAuthorize starts the mailbox connection flow.
func (h *handler) oauthAuthorize(w http.ResponseWriter, r *http.Request) {
	if h.OAuth == nil {
		writeError(w, http.StatusServiceUnavailable, "Microsoft sign-in is not configured on this server")
		return
	}
	claims := ClaimsFromContext(r.Context())

	state, n := oauth.NewState(claims.ID)
	if err := h.Nonces.Issue(r.Context(), n, claims.ID); err != nil {
		slog.Error("failed to issue oauth nonce", "user_id", claims.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to initiate OAuth flow")
		return
	}

	h.setStateCookie(w, state, stateCookieAge)
	slog.Info("oauth flow started", "user_id", claims.ID)
	http.Redirect(w, r, h.OAuth.AuthorizationURL(state), http.StatusFound)
}

// oauthCallback completes the flow. Every failure redirects home with a
// distinct oauth_error code.
func (h *handler) oauthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fail := func(code string, attrs ...any) {
		slog.Warn("oauth callback rejected", append(attrs, "reason", code)...)
		http.Redirect(w, r, "/?oauth_error="+url.QueryEscape(code), http.StatusFound)
	}

	cookie, _ := r.Cookie(stateCookie)
	h.setStateCookie(w, "", -1)

	if e := q.Get("error"); e != "" {
		fail(e, "description", q.Get("error_description"))
		return
	}
	if h.OAuth == nil {
		fail("oauth_not_configured")
		return
	}
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		fail("missing_code_or_state")
		return
	}
	if cookie == nil || cookie.Value != state {
		fail("invalid_state")
		return
	}
	userID, n, err := oauth.ParseState(state)
	if err != nil {
		fail("invalid_state", "error", err)
		return
	}

	ctx := r.Context()
	boundUser, ok, err := h.Nonces.Consume(ctx, n)
	if err != nil {
		fail("state_check_failed", "error", err)
		return
	}
	if !ok {
		fail("state_reused", "user_id", userID)
		return
	}
	if boundUser != userID {
		fail("invalid_state", "user_id", userID)
		return
	}

	user, err := h.Store.GetUserByID(ctx, userID)
	if err != nil {
		fail("user_lookup_failed", "user_id", userID, "error", err)
		return
	}
	if user == nil {
		fail("user_not_found", "user_id", userID)
		return
	}

	pair, err := h.OAuth.Exchange(ctx, code)
	if err != nil {
		fail("token_exchange_failed", "user_id", userID, "error", err)
		return
	}
	profile, err := h.Mailbox.Me(ctx, pair.AccessToken)
	if err != nil {
		fail("profile_lookup_failed", "user_id", userID, "error", err)
		return
	}

	accessEnc, err := h.Vault.Encrypt(pair.AccessToken)
	if err != nil {
		fail("encryption_failed", "user_id", userID, "error", err)
		return
	}
	refreshEnc, err := h.Vault.Encrypt(pair.RefreshToken)
	if err != nil {
		fail("encryption_failed", "user_id", userID, "error", err)
		return
	}

	cred := models.NewOAuthCredential(models.OAuthCredential{
		AccessTokenEnc:  accessEnc,
		RefreshTokenEnc: refreshEnc,
		ExpiresAt:       pair.ExpiresAt,
		MailboxAddress:  profile.Address(),
	})
	if err := h.Store.UpdateMailCredential(ctx, userID, cred); err != nil {
		fail("store_failed", "user_id", userID, "error", err)
		return
	}

	slog.Info("mailbox connected", "user_id", userID, "expires_at", pair.ExpiresAt)
	http.Redirect(w, r, "/profile?oauth_success=true", http.StatusFound)
}

// oauthDisconnect clears a connected mailbox. SMTP settings are left alone.
func (h *handler) oauthDisconnect(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	user, err := h.Store.GetUserByID(r.Context(), claims.ID)
	if err != nil {
		writeProblem(w, r, "load user", err, "user_id", claims.ID)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	if user.Credential != nil && user.Credential.Provider == models.ProviderOAuth {
		if err := h.Store.UpdateMailCredential(r.Context(), claims.ID, nil); err != nil {
			writeProblem(w, r, "disconnect mailbox", err, "user_id", claims.ID)
			return
		}
		slog.Info("mailbox disconnected", "user_id", claims.ID)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Microsoft account disconnected"})
}

type oauthStatus struct {
	Connected    bool       `json:"connected"`
	Provider     *string    `json:"provider"`
	Email        *string    `json:"email"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	IsExpired    bool       `json:"isExpired"`
	ConfiguredAt *time.Time `json:"configuredAt"`
}

// oauthStatus reports the mailbox connection state.
func (h *handler) oauthStatus(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	user, err := h.Store.GetUserByID(r.Context(), claims.ID)
	if err != nil {
		writeProblem(w, r, "load user", err, "user_id", claims.ID)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	st := oauthStatus{IsExpired: true}
	if c := user.Credential; c != nil {
		p := string(c.Provider)
		st.Provider = &p
		if !c.ConfiguredAt.IsZero() {
			st.ConfiguredAt = &c.ConfiguredAt
		}
		if o := c.OAuth; c.Provider == models.ProviderOAuth && o != nil && o.AccessTokenEnc != "" && o.RefreshTokenEnc != "" {
			st.IsExpired = oauth.IsExpired(o.ExpiresAt, oauth.DefaultSkew)
			st.Connected = !st.IsExpired
			st.ExpiresAt = &o.ExpiresAt
			if o.MailboxAddress != "" {
				st.Email = &o.MailboxAddress
			}
		}
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handler) setStateCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
