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

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bcem/outreach/internal/models"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "emails.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	err = s.CreateUser(context.Background(), models.User{
		ID:        "u1",
		Email:     "jane@example.com",
		Name:      "Jane",
		Signature: models.UserSignature{Name: "Jane Doe", Phone: "0123"},
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return s
}

func TestSQLiteGetUser(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	u, err := s.GetUserByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if u == nil || u.Email != "jane@example.com" || u.Role != "user" {
		t.Fatalf("user = %+v", u)
	}
	if u.Signature.Name != "Jane Doe" || u.Signature.Phone != "0123" {
		t.Errorf("signature = %+v", u.Signature)
	}
	if u.Credential != nil {
		t.Errorf("expected no credential, got %+v", u.Credential)
	}

	missing, err := s.GetUserByID(ctx, "nobody")
	if err != nil || missing != nil {
		t.Errorf("missing user = %+v, %v", missing, err)
	}
}

// TestSQLiteCredentialVariants verifies storing one variant clears the other.
func TestSQLiteCredentialVariants(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	oauthCred := models.NewOAuthCredential(models.OAuthCredential{
		AccessTokenEnc:  "iv:tag:access",
		RefreshTokenEnc: "iv:tag:refresh",
		ExpiresAt:       expires,
		MailboxAddress:  "jane@contoso.com",
	})
	if err := s.UpdateMailCredential(ctx, "u1", oauthCred); err != nil {
		t.Fatalf("store oauth: %v", err)
	}
	u, _ := s.GetUserByID(ctx, "u1")
	if u.Credential == nil || u.Credential.Provider != models.ProviderOAuth || u.Credential.SMTP != nil {
		t.Fatalf("credential = %+v", u.Credential)
	}
	got := u.Credential.OAuth
	if got.AccessTokenEnc != "iv:tag:access" || got.MailboxAddress != "jane@contoso.com" || !got.ExpiresAt.Equal(expires) {
		t.Errorf("oauth = %+v", got)
	}
	if u.Credential.ConfiguredAt.IsZero() {
		t.Error("configured_at not stored")
	}

	smtpCred := models.NewSMTPCredential(models.SMTPCredential{
		Host: "smtp.example.com", Port: 465, Username: "jane", PasswordEnc: "iv:tag:pw", FromName: "Jane",
	})
	if err := s.UpdateMailCredential(ctx, "u1", smtpCred); err != nil {
		t.Fatalf("store smtp: %v", err)
	}
	u, _ = s.GetUserByID(ctx, "u1")
	if u.Credential == nil || u.Credential.Provider != models.ProviderSMTP || u.Credential.OAuth != nil {
		t.Fatalf("credential = %+v", u.Credential)
	}
	if *u.Credential.SMTP != *smtpCred.SMTP {
		t.Errorf("smtp = %+v", u.Credential.SMTP)
	}

	var row userRow
	if err := s.db.Get(&row, `SELECT `+userColumns+` FROM users WHERE id = ?`, "u1"); err != nil {
		t.Fatal(err)
	}
	if row.AccessTokenEnc != nil || row.RefreshTokenEnc != nil || row.TokenExpiresAt != nil || row.MailboxAddress != nil {
		t.Errorf("oauth columns not cleared: %+v", row)
	}

	if err := s.UpdateMailCredential(ctx, "u1", nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	u, _ = s.GetUserByID(ctx, "u1")
	if u.Credential != nil {
		t.Errorf("expected cleared credential, got %+v", u.Credential)
	}

	if err := s.UpdateMailCredential(ctx, "nobody", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteUpdateProfile(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	sig := models.UserSignature{Name: "Jane Doe", Title: "Sales Lead", Company: "Acme"}
	if err := s.UpdateProfile(ctx, "u1", "Jane D", sig); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	u, _ := s.GetUserByID(ctx, "u1")
	if u.Name != "Jane D" || u.Signature != sig {
		t.Errorf("user = %+v", u)
	}
}

func TestSQLiteEmails(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	rec := &models.EmailRecord{
		UserID:         "u1",
		RecipientEmail: "alice@example.com",
		Subject:        "Hi",
		Body:           "Hello",
		IsFollowUp:     true,
	}
	if err := s.SaveEmail(ctx, rec); err != nil {
		t.Fatalf("SaveEmail: %v", err)
	}
	if rec.ID == "" || rec.Status != models.StatusDraft {
		t.Fatalf("defaults not applied: %+v", rec)
	}

	sentAt := time.Now().UTC().Truncate(time.Second)
	if err := s.UpdateEmailStatus(ctx, rec.ID, models.StatusSent, "smtp", &sentAt); err != nil {
		t.Fatalf("UpdateEmailStatus: %v", err)
	}

	got, err := s.GetEmail(ctx, rec.ID)
	if err != nil || got == nil {
		t.Fatalf("GetEmail = %+v, %v", got, err)
	}
	if got.Status != models.StatusSent || got.SentVia != "smtp" || !got.IsFollowUp || got.Attachments != "[]" {
		t.Errorf("email = %+v", got)
	}
	if got.SentAt == nil || !got.SentAt.Equal(sentAt) {
		t.Errorf("sent_at = %v, want %v", got.SentAt, sentAt)
	}

	if err := s.UpdateEmailStatus(ctx, "missing", models.StatusFailed, "", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "mysql"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}
