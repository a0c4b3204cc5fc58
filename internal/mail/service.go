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

// Package mail delivers finished emails through the sending user's own
// mail identity: either a connected Microsoft 365 mailbox (OAuth + Graph)
// or the user's SMTP server.
//
// The service never records delivery status. Callers own that bookkeeping.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bcem/outreach/internal/graph"
	"github.com/bcem/outreach/internal/models"
	"github.com/bcem/outreach/internal/oauth"
)

var (
	// ErrNotConfigured means the user has no mail provider set up.
	ErrNotConfigured = errors.New("no mail provider configured")
	// ErrOAuthReauthRequired means the mailbox connection must be re-established.
	ErrOAuthReauthRequired = errors.New("mailbox connection expired, reconnect required")
	// ErrSMTPConfigIncomplete means the stored SMTP settings are missing fields.
	ErrSMTPConfigIncomplete = errors.New("smtp settings incomplete")
	// ErrSendFailed means the transport rejected or failed to deliver the message.
	ErrSendFailed = errors.New("send failed")
	// ErrUnknownUser means the sending user does not exist.
	ErrUnknownUser = errors.New("unknown user")
)

// UserStore loads users and persists refreshed credentials.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateMailCredential(ctx context.Context, userID string, cred *models.MailCredential) error
}

// Cipher seals and opens stored secrets.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(triple string) (string, error)
}

// TokenRefresher exchanges a refresh token for a new pair.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth.TokenPair, error)
}

// MailboxSender submits a message through the mailbox API.
type MailboxSender interface {
	SendMail(ctx context.Context, accessToken string, msg graph.Message) error
}

// Config holds delivery defaults.
type Config struct {
	DefaultSMTPPort int
	DefaultFromName string
	// UploadsDir is the root attachment paths are resolved under.
	UploadsDir  string
	RefreshSkew time.Duration
}

// Service sends a user's outbound messages.
type Service struct {
	users     UserStore
	vault     Cipher
	refresher TokenRefresher
	mailbox   MailboxSender
	cfg       Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a delivery service.
func NewService(users UserStore, vault Cipher, refresher TokenRefresher, mailbox MailboxSender, cfg Config) *Service {
	if cfg.DefaultSMTPPort == 0 {
		cfg.DefaultSMTPPort = 587
	}
	if cfg.DefaultFromName == "" {
		cfg.DefaultFromName = "Sales Team"
	}
	if cfg.RefreshSkew == 0 {
		cfg.RefreshSkew = oauth.DefaultSkew
	}
	return &Service{
		users:     users,
		vault:     vault,
		refresher: refresher,
		mailbox:   mailbox,
		cfg:       cfg,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Send delivers msg using the provider configured for userID.
func (s *Service) Send(ctx context.Context, userID string, msg models.OutboundMessage) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	if msg.To == "" {
		return fmt.Errorf("%w: missing recipient", ErrSendFailed)
	}

	cred := user.Credential
	switch {
	case cred != nil && cred.Provider == models.ProviderOAuth && cred.OAuth != nil:
		return s.sendOAuth(ctx, user, msg)
	case cred != nil && cred.Provider == models.ProviderSMTP && cred.SMTP != nil:
		return s.sendSMTP(ctx, user, msg)
	default:
		return ErrNotConfigured
	}
}

func (s *Service) sendOAuth(ctx context.Context, user *models.User, msg models.OutboundMessage) error {
	accessToken, mailbox, err := s.accessToken(ctx, user)
	if err != nil {
		return err
	}

	atts, err := loadAttachments(s.cfg.UploadsDir, msg.Attachments)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	files := make([]graph.FileAttachment, 0, len(atts))
	for _, a := range atts {
		files = append(files, graph.FileAttachment{Name: a.Filename, ContentType: a.ContentType, Content: a.Content})
	}

	htmlBody, _ := bodies(msg)
	gm := graph.Message{
		To:          []string{msg.To},
		CC:          msg.CC,
		BCC:         msg.BCC,
		Subject:     msg.Subject,
		HTMLBody:    htmlBody,
		Attachments: files,
	}
	if mailbox != "" {
		gm.From = &models.EmailAddress{Address: mailbox, Name: user.Name}
	}

	if err := s.mailbox.SendMail(ctx, accessToken, gm); err != nil {
		if errors.Is(err, graph.ErrUnauthorized) {
			return fmt.Errorf("%w: %w", ErrOAuthReauthRequired, err)
		}
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	slog.Info("email sent", "user_id", user.ID, "provider", models.ProviderOAuth, "attachments", len(files))
	return nil
}

// accessToken returns a usable access token and the mailbox address,
// refreshing and persisting a new pair when the stored one is expired.
func (s *Service) accessToken(ctx context.Context, user *models.User) (string, string, error) {
	cred := user.Credential.OAuth
	if !oauth.IsExpired(cred.ExpiresAt, s.cfg.RefreshSkew) {
		token, err := s.vault.Decrypt(cred.AccessTokenEnc)
		if err != nil {
			return "", "", fmt.Errorf("decrypt access token: %w", err)
		}
		return token, cred.MailboxAddress, nil
	}

	unlock := s.lock(user.ID)
	defer unlock()

	// Another send may have refreshed while we waited.
	fresh, err := s.users.GetUserByID(ctx, user.ID)
	if err != nil {
		return "", "", fmt.Errorf("reload user: %w", err)
	}
	if fresh == nil || fresh.Credential == nil || fresh.Credential.OAuth == nil {
		return "", "", ErrNotConfigured
	}
	cred = fresh.Credential.OAuth
	if !oauth.IsExpired(cred.ExpiresAt, s.cfg.RefreshSkew) {
		token, err := s.vault.Decrypt(cred.AccessTokenEnc)
		if err != nil {
			return "", "", fmt.Errorf("decrypt access token: %w", err)
		}
		return token, cred.MailboxAddress, nil
	}

	if cred.RefreshTokenEnc == "" {
		return "", "", fmt.Errorf("%w: no refresh token stored", ErrOAuthReauthRequired)
	}
	refreshToken, err := s.vault.Decrypt(cred.RefreshTokenEnc)
	if err != nil {
		return "", "", fmt.Errorf("decrypt refresh token: %w", err)
	}

	pair, err := s.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		slog.Warn("token refresh failed", "user_id", user.ID, "error", err)
		return "", "", fmt.Errorf("%w: %w", ErrOAuthReauthRequired, err)
	}

	accessEnc, err := s.vault.Encrypt(pair.AccessToken)
	if err != nil {
		return "", "", fmt.Errorf("encrypt access token: %w", err)
	}
	refreshEnc, err := s.vault.Encrypt(pair.RefreshToken)
	if err != nil {
		return "", "", fmt.Errorf("encrypt refresh token: %w", err)
	}

	updated := models.NewOAuthCredential(models.OAuthCredential{
		AccessTokenEnc:  accessEnc,
		RefreshTokenEnc: refreshEnc,
		ExpiresAt:       pair.ExpiresAt,
		MailboxAddress:  cred.MailboxAddress,
	})
	updated.ConfiguredAt = fresh.Credential.ConfiguredAt
	if err := s.users.UpdateMailCredential(ctx, user.ID, updated); err != nil {
		return "", "", fmt.Errorf("%w: persist refreshed tokens: %w", ErrSendFailed, err)
	}

	slog.Info("refreshed mailbox token", "user_id", user.ID, "expires_at", pair.ExpiresAt)
	return pair.AccessToken, cred.MailboxAddress, nil
}

// lock serializes token refresh per user within this process.
func (s *Service) lock(userID string) func() {
	s.mu.Lock()
	m, ok := s.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[userID] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}
