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
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/bcem/outreach/internal/models"
)

type profileRequest struct {
	Name      string               `json:"name"`
	Signature models.UserSignature `json:"signature"`
}

// updateProfile handles POST /api/profile.
func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	claims := ClaimsFromContext(r.Context())
	if err := h.Store.UpdateProfile(r.Context(), claims.ID, req.Name, req.Signature); err != nil {
		writeProblem(w, r, "update profile", err, "user_id", claims.ID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type mailSettingsRequest struct {
	Provider *string     `json:"provider"`
	Host     string      `json:"host"`
	Port     json.Number `json:"port"`
	Username string      `json:"username"`
	Password string      `json:"password"`
	FromName string      `json:"fromName"`
}

// updateMailSettings stores SMTP settings, or clears the mail provider when
// provider is null.
func (h *handler) updateMailSettings(w http.ResponseWriter, r *http.Request) {
	var req mailSettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	claims := ClaimsFromContext(ctx)

	if req.Provider == nil {
		if err := h.Store.UpdateMailCredential(ctx, claims.ID, nil); err != nil {
			writeProblem(w, r, "clear mail settings", err, "user_id", claims.ID)
			return
		}
		slog.Info("mail settings cleared", "user_id", claims.ID)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}
	if *req.Provider != string(models.ProviderSMTP) {
		writeError(w, http.StatusBadRequest, "provider must be \"smtp\" or null")
		return
	}

	port, err := strconv.Atoi(req.Port.String())
	if req.Host == "" || req.Username == "" || err != nil || port <= 0 || port > 65535 {
		writeError(w, http.StatusBadRequest, "SMTP host, port, and username are required")
		return
	}

	user, err := h.Store.GetUserByID(ctx, claims.ID)
	if err != nil {
		writeProblem(w, r, "load user", err, "user_id", claims.ID)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	var passwordEnc string
	switch {
	case req.Password != "":
		passwordEnc, err = h.Vault.Encrypt(req.Password)
		if err != nil {
			writeProblem(w, r, "encrypt smtp password", err, "user_id", claims.ID)
			return
		}
	case user.Credential != nil && user.Credential.SMTP != nil:
		passwordEnc = user.Credential.SMTP.PasswordEnc
	}

	cred := models.NewSMTPCredential(models.SMTPCredential{
		Host:        req.Host,
		Port:        port,
		Username:    req.Username,
		PasswordEnc: passwordEnc,
		FromName:    req.FromName,
	})
	if err := h.Store.UpdateMailCredential(ctx, claims.ID, cred); err != nil {
		writeProblem(w, r, "store mail settings", err, "user_id", claims.ID)
		return
	}
	slog.Info("smtp settings stored", "user_id", claims.ID, "host", req.Host, "port", port)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
