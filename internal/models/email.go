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

// Package models defines the data structures shared across the outreach service.
package models

import "time"

// EmailAddress represents a sender or recipient with an address and optional name.
type EmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// Attachment is a file attached to an outbound email. Either Content or Path
// must be set; the transport loads Path lazily when Content is empty.
type Attachment struct {
	Filename    string `json:"filename"`
	Path        string `json:"path,omitempty"`
	Content     []byte `json:"-"`
	ContentType string `json:"contentType,omitempty"`
}

// OutboundMessage is a finished email ready for delivery.
type OutboundMessage struct {
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	HTMLBody    string       `json:"htmlBody,omitempty"`
	TextBody    string       `json:"textBody,omitempty"`
	CC          []string     `json:"cc,omitempty"`
	BCC         []string     `json:"bcc,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Email status values recorded by the orchestrating caller.
const (
	StatusDraft  = "draft"
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// EmailRecord is the caller's bookkeeping row for a composed email.
type EmailRecord struct {
	ID                string
	UserID            string
	RecipientEmail    string
	RecipientName     string
	Subject           string
	Body              string
	LeadSource        string
	ProductType       string
	Urgency           string
	IsFollowUp        bool
	QualificationInfo string
	SpecialOffers     string
	LeadTimes         string
	TemplateUsed      string
	Attachments       string // JSON-encoded []Attachment
	Status            string
	SentVia           string
	CreatedAt         time.Time
	SentAt            *time.Time
}
