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

// Package store persists users, their mail credentials, and email records.
// The backend is chosen once at startup: Postgres when a database URL is
// configured, otherwise a local SQLite file.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bcem/outreach/internal/models"
)

// ErrNotFound is returned by updates that match no row.
var ErrNotFound = errors.New("not found")

// Store is the persistence surface used by the service.
type Store interface {
	CreateUser(ctx context.Context, u models.User) error
	// GetUserByID returns nil, nil when the user does not exist.
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID, name string, sig models.UserSignature) error
	// UpdateMailCredential replaces the stored credential. A nil credential
	// clears both variants; storing one variant nulls the other's columns.
	UpdateMailCredential(ctx context.Context, userID string, cred *models.MailCredential) error

	SaveEmail(ctx context.Context, rec *models.EmailRecord) error
	GetEmail(ctx context.Context, id string) (*models.EmailRecord, error)
	UpdateEmailStatus(ctx context.Context, id, status, sentVia string, sentAt *time.Time) error

	Ping(ctx context.Context) error
	Close() error
}

// Config selects and locates the backend.
type Config struct {
	Driver     string // "postgres" or "sqlite"
	URL        string // Postgres connection string
	SQLitePath string
}

// Open connects to the configured backend and ensures its schema.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg.URL)
	case "sqlite", "":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		return NewSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
