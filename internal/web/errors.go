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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bcem/outreach/internal/generation"
	"github.com/bcem/outreach/internal/mail"
	"github.com/bcem/outreach/internal/store"
	"github.com/bcem/outreach/internal/vault"
)

// Category tells the client what kind of action an error calls for.
type Category string

const (
	// CategoryReconfigure means the user must change their mail settings.
	CategoryReconfigure Category = "reconfigure"
	// CategoryRetry means the failure is transient.
	CategoryRetry Category = "retry"
	// CategoryOperator means the deployment is misconfigured.
	CategoryOperator Category = "operator"
)

// Problem is an error translated for the user.
type Problem struct {
	Status   int
	Category Category
	Message  string
}

// Classify maps a core error to its user-facing problem.
func Classify(err error) Problem {
	var vErr *vault.Error
	switch {
	case errors.Is(err, mail.ErrNotConfigured):
		return Problem{http.StatusBadRequest, CategoryReconfigure,
			"No email provider is configured. Connect your Microsoft account or add SMTP settings in your profile."}
	case errors.Is(err, mail.ErrOAuthReauthRequired):
		return Problem{http.StatusUnauthorized, CategoryReconfigure,
			"Your Microsoft connection has expired. Reconnect your account from your profile."}
	case errors.Is(err, mail.ErrSMTPConfigIncomplete):
		return Problem{http.StatusBadRequest, CategoryReconfigure,
			"Your SMTP settings are incomplete. Add the host, username and password in your profile."}
	case errors.As(err, &vErr) && vErr.Ephemeral:
		return Problem{http.StatusInternalServerError, CategoryOperator,
			"Stored credentials cannot be read because the server has no persistent encryption key. Ask an administrator to set ENCRYPTION_KEY, then reconnect your mail account."}
	case errors.Is(err, vault.ErrDecryption):
		return Problem{http.StatusInternalServerError, CategoryOperator,
			"Stored credentials cannot be decrypted with the current encryption key. Ask an administrator to check ENCRYPTION_KEY, then reconnect your mail account."}
	case errors.Is(err, mail.ErrUnknownUser), errors.Is(err, store.ErrNotFound):
		return Problem{http.StatusNotFound, CategoryReconfigure, "User not found."}
	case errors.Is(err, mail.ErrSendFailed):
		return Problem{http.StatusBadGateway, CategoryRetry,
			"The mail server did not accept the message. Try again in a few minutes."}
	case errors.Is(err, generation.ErrTimeout):
		return Problem{http.StatusGatewayTimeout, CategoryRetry,
			"Email generation took too long. Try again."}
	case errors.Is(err, generation.ErrFailed), errors.Is(err, generation.ErrEmpty):
		return Problem{http.StatusBadGateway, CategoryRetry,
			"Email generation failed. Try again."}
	default:
		return Problem{http.StatusInternalServerError, CategoryOperator, "Internal server error."}
	}
}

type errorResponse struct {
	Error    string   `json:"error"`
	Category Category `json:"category,omitempty"`
	EmailID  string   `json:"emailId,omitempty"`
}

// logProblem classifies and logs err.
func logProblem(ctx context.Context, op string, err error, attrs ...any) Problem {
	p := Classify(err)
	level := slog.LevelWarn
	if p.Category == CategoryOperator {
		level = slog.LevelError
	}
	slog.Log(ctx, level, op+" failed", append(attrs, "category", p.Category, "error", err)...)
	return p
}

// writeProblem logs err and writes its classified response.
func writeProblem(w http.ResponseWriter, r *http.Request, op string, err error, attrs ...any) {
	p := logProblem(r.Context(), op, err, attrs...)
	writeJSON(w, p.Status, errorResponse{Error: p.Message, Category: p.Category})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}
