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
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/bcem/outreach/internal/models"
)

// SQLite implements Store on a local database file.
type SQLite struct {
	db *sqlx.DB
}

// NewSQLite opens (or creates) the database at path, enables WAL mode and
// ensures the schema exists.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &SQLite{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure sqlite schema: %w", err)
	}
	slog.Info("sqlite store initialised", "path", path)
	return s, nil
}

func (s *SQLite) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id                  TEXT PRIMARY KEY,
			email               TEXT NOT NULL UNIQUE,
			name                TEXT NOT NULL DEFAULT '',
			role                TEXT NOT NULL DEFAULT 'user',
			signature_name      TEXT NOT NULL DEFAULT '',
			signature_title     TEXT NOT NULL DEFAULT '',
			signature_phone     TEXT NOT NULL DEFAULT '',
			signature_email     TEXT NOT NULL DEFAULT '',
			signature_company   TEXT NOT NULL DEFAULT '',
			email_provider      TEXT,
			ms_access_token     TEXT,
			ms_refresh_token    TEXT,
			ms_token_expires_at DATETIME,
			ms_email            TEXT,
			smtp_host           TEXT,
			smtp_port           INTEGER,
			smtp_user           TEXT,
			smtp_password       TEXT,
			smtp_from_name      TEXT,
			email_configured_at DATETIME,
			created_at          DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS emails (
			id                 TEXT PRIMARY KEY,
			user_id            TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			recipient_email    TEXT NOT NULL,
			recipient_name     TEXT NOT NULL DEFAULT '',
			subject            TEXT NOT NULL,
			body               TEXT NOT NULL,
			lead_source        TEXT NOT NULL DEFAULT '',
			product_type       TEXT NOT NULL DEFAULT '',
			urgency            TEXT NOT NULL DEFAULT '',
			is_follow_up       BOOLEAN NOT NULL DEFAULT 0,
			qualification_info TEXT NOT NULL DEFAULT '',
			special_offers     TEXT NOT NULL DEFAULT '',
			lead_times         TEXT NOT NULL DEFAULT '',
			template_used      TEXT NOT NULL DEFAULT '',
			attachments        TEXT NOT NULL DEFAULT '[]',
			status             TEXT NOT NULL DEFAULT 'draft',
			sent_via           TEXT NOT NULL DEFAULT '',
			created_at         DATETIME NOT NULL,
			sent_at            DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_emails_user ON emails(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_emails_status ON emails(status);
	`)
	return err
}

// CreateUser inserts a user row without a mail credential.
func (s *SQLite) CreateUser(ctx context.Context, u models.User) error {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users
			(id, email, name, role, signature_name, signature_title,
			 signature_phone, signature_email, signature_company, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.Name, roleOrDefault(u.Role),
		u.Signature.Name, u.Signature.Title, u.Signature.Phone, u.Signature.Email, u.Signature.Company,
		createdAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByID returns the user with the given ID, or nil if none exists.
func (s *SQLite) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return row.user(), nil
}

// UpdateProfile sets the display name and signature fields.
func (s *SQLite) UpdateProfile(ctx context.Context, userID, name string, sig models.UserSignature) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET name = ?, signature_name = ?, signature_title = ?,
		    signature_phone = ?, signature_email = ?, signature_company = ?
		WHERE id = ?
	`, name, sig.Name, sig.Title, sig.Phone, sig.Email, sig.Company, userID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return expectRow(res)
}

// UpdateMailCredential writes every credential column in one statement.
func (s *SQLite) UpdateMailCredential(ctx context.Context, userID string, cred *models.MailCredential) error {
	args := append(credentialArgs(cred), userID)
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email_provider = ?,
		    ms_access_token = ?, ms_refresh_token = ?, ms_token_expires_at = ?, ms_email = ?,
		    smtp_host = ?, smtp_port = ?, smtp_user = ?, smtp_password = ?, smtp_from_name = ?,
		    email_configured_at = ?
		WHERE id = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("update mail credential: %w", err)
	}
	return expectRow(res)
}

// SaveEmail inserts rec, assigning an ID and defaults where unset.
func (s *SQLite) SaveEmail(ctx context.Context, rec *models.EmailRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO emails (`+emailColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, prepareEmail(rec)...)
	if err != nil {
		return fmt.Errorf("insert email: %w", err)
	}
	return nil
}

// GetEmail returns the email record with the given ID, or nil if none exists.
func (s *SQLite) GetEmail(ctx context.Context, id string) (*models.EmailRecord, error) {
	var row emailRow
	err := s.db.GetContext(ctx, &row, `SELECT `+emailColumns+` FROM emails WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query email: %w", err)
	}
	return row.record(), nil
}

// UpdateEmailStatus records the outcome of a send attempt.
func (s *SQLite) UpdateEmailStatus(ctx context.Context, id, status, sentVia string, sentAt *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE emails SET status = ?, sent_via = ?, sent_at = ? WHERE id = ?`,
		status, sentVia, nullTime(sentAt), id)
	if err != nil {
		return fmt.Errorf("update email status: %w", err)
	}
	return expectRow(res)
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
