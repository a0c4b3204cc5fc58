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

package models

import "time"

// Provider identifies which mail credential variant a user has configured.
type Provider string

const (
	ProviderOAuth Provider = "oauth"
	ProviderSMTP  Provider = "smtp"
)

// OAuthCredential is the mailbox API variant. Token fields hold vault
// ciphertext triples, never plaintext.
type OAuthCredential struct {
	AccessTokenEnc  string
	RefreshTokenEnc string
	ExpiresAt       time.Time
	MailboxAddress  string
}

// SMTPCredential is the direct SMTP variant. PasswordEnc holds a vault
// ciphertext triple.
type SMTPCredential struct {
	Host        string
	Port        int
	Username    string
	PasswordEnc string
	FromName    string
}

// MailCredential is a tagged union: exactly one of OAuth or SMTP is set,
// matching Provider.
type MailCredential struct {
	Provider     Provider
	OAuth        *OAuthCredential
	SMTP         *SMTPCredential
	ConfiguredAt time.Time
}

// NewOAuthCredential wraps an OAuth variant.
func NewOAuthCredential(c OAuthCredential) *MailCredential {
	return &MailCredential{Provider: ProviderOAuth, OAuth: &c, ConfiguredAt: time.Now().UTC()}
}

// NewSMTPCredential wraps an SMTP variant.
func NewSMTPCredential(c SMTPCredential) *MailCredential {
	return &MailCredential{Provider: ProviderSMTP, SMTP: &c, ConfiguredAt: time.Now().UTC()}
}

// User is the subset of a user profile the core consumes.
type User struct {
	ID         string
	Email      string
	Name       string
	Role       string
	Signature  UserSignature
	Credential *MailCredential // nil when no provider is configured
	CreatedAt  time.Time
}
