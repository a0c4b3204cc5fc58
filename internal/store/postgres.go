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
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bcem/outreach/internal/models"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to url and ensures the schema exists.
func NewPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	s := &Postgres{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure postgres schema: %w", err)
	}
	slog.Info("postgres store initialised")
	return s, nil
}

func (s *Postgres) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
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
			ms_token_expires_at TIMESTAMPTZ,
			ms_email            TEXT,
			smtp_host           TEXT,
			smtp_port           INTEGER,
			smtp_user           TEXT,
			smtp_password       TEXT,
			smtp_from_name      TEXT,
			email_configured_at TIMESTAMPTZ,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
			is_follow_up       BOOLEAN NOT NULL DEFAULT FALSE,
			qualification_info TEXT NOT NULL DEFAULT '',
			special_offers     TEXT NOT NULL DEFAULT '',
			lead_times         TEXT NOT NULL DEFAULT '',
			template_used      TEXT NOT NULL DEFAULT '',
			attachments        TEXT NOT NULL DEFAULT '[]',
			status             TEXT NOT NULL DEFAULT 'draft',
			sent_via           TEXT NOT NULL DEFAULT '',
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			sent_at            TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_emails_user ON emails(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_emails_status ON emails(status);
	`)
	return err
}

// CreateUser inserts a user row without a mail credential.
func (s *Postgres) CreateUser(ctx context.Context, u models.User) error {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users
			(id, email, name, role, signature_name, signature_title,
			 signature_phone, signature_email, signature_company, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, u.ID, u.Email, u.Name, roleOrDefault(u.Role),
		u.Signature.Name, u.Signature.Title, u.Signature.Phone, u.Signature.Email, u.Signature.Company,
		createdAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByID returns the user with the given ID, or nil if none exists.
func (s *Postgres) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[userRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return row.user(), nil
}

// UpdateProfile sets the display name and signature fields.
func (s *Postgres) UpdateProfile(ctx context.Context, userID, name string, sig models.UserSignature) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET name = $1, signature_name = $2, signature_title = $3,
		    signature_phone = $4, signature_email = $5, signature_company = $6
		WHERE id = $7
	`, name, sig.Name, sig.Title, sig.Phone, sig.Email, sig.Company, userID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateMailCredential writes every credential column in one statement.
func (s *Postgres) UpdateMailCredential(ctx context.Context, userID string, cred *models.MailCredential) error {
	args := append(credentialArgs(cred), userID)
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET email_provider = $1,
		    ms_access_token = $2, ms_refresh_token = $3, ms_token_expires_at = $4, ms_email = $5,
		    smtp_host = $6, smtp_port = $7, smtp_user = $8, smtp_password = $9, smtp_from_name = $10,
		    email_configured_at = $11
		WHERE id = $12
	`, args...)
	if err != nil {
		return fmt.Errorf("update mail credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveEmail inserts rec, assigning an ID and defaults where unset.
func (s *Postgres) SaveEmail(ctx context.Context, rec *models.EmailRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO emails (`+emailColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, prepareEmail(rec)...)
	if err != nil {
		return fmt.Errorf("insert email: %w", err)
	}
	return nil
}

// GetEmail returns the email record with the given ID, or nil if none exists.
func (s *Postgres) GetEmail(ctx context.Context, id string) (*models.EmailRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+emailColumns+` FROM emails WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query email: %w", err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[emailRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan email: %w", err)
	}
	return row.record(), nil
}

// UpdateEmailStatus records the outcome of a send attempt.
func (s *Postgres) UpdateEmailStatus(ctx context.Context, id, status, sentVia string, sentAt *time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE emails SET status = $1, sent_via = $2, sent_at = $3 WHERE id = $4
	`, status, sentVia, nullTime(sentAt), id)
	if err != nil {
		return fmt.Errorf("update email status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

func roleOrDefault(role string) string {
	if role == "" {
		return "user"
	}
	return role
}
