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
	"time"

	"github.com/google/uuid"

	"github.com/bcem/outreach/internal/models"
)

// userColumns is the select list shared by both backends. It matches the
// db tags on userRow.
const userColumns = `id, email, name, role,
	signature_name, signature_title, signature_phone, signature_email, signature_company,
	email_provider, ms_access_token, ms_refresh_token, ms_token_expires_at, ms_email,
	smtp_host, smtp_port, smtp_user, smtp_password, smtp_from_name,
	email_configured_at, created_at`

// userRow is the flat column layout of the users table.
type userRow struct {
	ID    string `db:"id"`
	Email string `db:"email"`
	Name  string `db:"name"`
	Role  string `db:"role"`

	SignatureName    string `db:"signature_name"`
	SignatureTitle   string `db:"signature_title"`
	SignaturePhone   string `db:"signature_phone"`
	SignatureEmail   string `db:"signature_email"`
	SignatureCompany string `db:"signature_company"`

	Provider        *string    `db:"email_provider"`
	AccessTokenEnc  *string    `db:"ms_access_token"`
	RefreshTokenEnc *string    `db:"ms_refresh_token"`
	TokenExpiresAt  *time.Time `db:"ms_token_expires_at"`
	MailboxAddress  *string    `db:"ms_email"`
	SMTPHost        *string    `db:"smtp_host"`
	SMTPPort        *int       `db:"smtp_port"`
	SMTPUser        *string    `db:"smtp_user"`
	SMTPPassword    *string    `db:"smtp_password"`
	SMTPFromName    *string    `db:"smtp_from_name"`
	ConfiguredAt    *time.Time `db:"email_configured_at"`

	CreatedAt time.Time `db:"created_at"`
}

func (r userRow) user() *models.User {
	u := &models.User{
		ID:    r.ID,
		Email: r.Email,
		Name:  r.Name,
		Role:  r.Role,
		Signature: models.UserSignature{
			Name:    r.SignatureName,
			Title:   r.SignatureTitle,
			Phone:   r.SignaturePhone,
			Email:   r.SignatureEmail,
			Company: r.SignatureCompany,
		},
		CreatedAt: r.CreatedAt,
	}

	var configured time.Time
	if r.ConfiguredAt != nil {
		configured = *r.ConfiguredAt
	}

	switch models.Provider(deref(r.Provider)) {
	case models.ProviderOAuth:
		c := models.OAuthCredential{
			AccessTokenEnc:  deref(r.AccessTokenEnc),
			RefreshTokenEnc: deref(r.RefreshTokenEnc),
			MailboxAddress:  deref(r.MailboxAddress),
		}
		if r.TokenExpiresAt != nil {
			c.ExpiresAt = *r.TokenExpiresAt
		}
		u.Credential = &models.MailCredential{Provider: models.ProviderOAuth, OAuth: &c, ConfiguredAt: configured}
	case models.ProviderSMTP:
		c := models.SMTPCredential{
			Host:        deref(r.SMTPHost),
			Username:    deref(r.SMTPUser),
			PasswordEnc: deref(r.SMTPPassword),
			FromName:    deref(r.SMTPFromName),
		}
		if r.SMTPPort != nil {
			c.Port = *r.SMTPPort
		}
		u.Credential = &models.MailCredential{Provider: models.ProviderSMTP, SMTP: &c, ConfiguredAt: configured}
	}
	return u
}

// credentialArgs flattens cred into the eleven credential columns in
// userColumns order, leaving the unused variant NULL.
func credentialArgs(cred *models.MailCredential) []any {
	args := make([]any, 11)
	if cred == nil {
		return args
	}
	args[0] = string(cred.Provider)
	if cred.OAuth != nil {
		args[1] = cred.OAuth.AccessTokenEnc
		args[2] = cred.OAuth.RefreshTokenEnc
		args[3] = cred.OAuth.ExpiresAt.UTC()
		args[4] = cred.OAuth.MailboxAddress
	}
	if cred.SMTP != nil {
		args[5] = cred.SMTP.Host
		args[6] = cred.SMTP.Port
		args[7] = cred.SMTP.Username
		args[8] = cred.SMTP.PasswordEnc
		args[9] = cred.SMTP.FromName
	}
	configured := cred.ConfiguredAt
	if configured.IsZero() {
		configured = time.Now()
	}
	args[10] = configured.UTC()
	return args
}

// emailRow is the flat column layout of the emails table.
type emailRow struct {
	ID                string     `db:"id"`
	UserID            string     `db:"user_id"`
	RecipientEmail    string     `db:"recipient_email"`
	RecipientName     string     `db:"recipient_name"`
	Subject           string     `db:"subject"`
	Body              string     `db:"body"`
	LeadSource        string     `db:"lead_source"`
	ProductType       string     `db:"product_type"`
	Urgency           string     `db:"urgency"`
	IsFollowUp        bool       `db:"is_follow_up"`
	QualificationInfo string     `db:"qualification_info"`
	SpecialOffers     string     `db:"special_offers"`
	LeadTimes         string     `db:"lead_times"`
	TemplateUsed      string     `db:"template_used"`
	Attachments       string     `db:"attachments"`
	Status            string     `db:"status"`
	SentVia           string     `db:"sent_via"`
	CreatedAt         time.Time  `db:"created_at"`
	SentAt            *time.Time `db:"sent_at"`
}

const emailColumns = `id, user_id, recipient_email, recipient_name, subject, body,
	lead_source, product_type, urgency, is_follow_up, qualification_info,
	special_offers, lead_times, template_used, attachments, status, sent_via,
	created_at, sent_at`

func (r emailRow) record() *models.EmailRecord {
	rec := models.EmailRecord(r)
	return &rec
}

// prepareEmail fills the ID, status and creation time of a new record and
// returns its values in emailColumns order.
func prepareEmail(rec *models.EmailRecord) []any {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = models.StatusDraft
	}
	if rec.Attachments == "" {
		rec.Attachments = "[]"
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return []any{
		rec.ID, rec.UserID, rec.RecipientEmail, rec.RecipientName, rec.Subject, rec.Body,
		rec.LeadSource, rec.ProductType, rec.Urgency, rec.IsFollowUp, rec.QualificationInfo,
		rec.SpecialOffers, rec.LeadTimes, rec.TemplateUsed, rec.Attachments, rec.Status, rec.SentVia,
		rec.CreatedAt, nullTime(rec.SentAt),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nullTime binds a nil *time.Time as NULL.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
