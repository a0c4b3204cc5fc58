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

// Mood is the tone requested for a generated email.
type Mood string

const (
	MoodProfessional Mood = "Professional"
	MoodFriendly     Mood = "Friendly"
	MoodCasual       Mood = "Casual"
	MoodUrgent       Mood = "Urgent"
	MoodEnthusiastic Mood = "Enthusiastic"
	MoodEmpathetic   Mood = "Empathetic"
)

// Valid reports whether m is one of the known moods.
func (m Mood) Valid() bool {
	switch m {
	case MoodProfessional, MoodFriendly, MoodCasual, MoodUrgent, MoodEnthusiastic, MoodEmpathetic:
		return true
	}
	return false
}

// UserSignature holds the profile fields rendered below a generated email.
// Every field is optional.
type UserSignature struct {
	Name    string `json:"name,omitempty"`
	Title   string `json:"title,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Company string `json:"company,omitempty"`
}

// IsEmpty reports whether no signature field is set.
func (s UserSignature) IsEmpty() bool {
	return s.Name == "" && s.Title == "" && s.Phone == "" && s.Email == "" && s.Company == ""
}

// Merge fills the empty fields of s from other.
func (s UserSignature) Merge(other UserSignature) UserSignature {
	if s.Name == "" {
		s.Name = other.Name
	}
	if s.Title == "" {
		s.Title = other.Title
	}
	if s.Phone == "" {
		s.Phone = other.Phone
	}
	if s.Email == "" {
		s.Email = other.Email
	}
	if s.Company == "" {
		s.Company = other.Company
	}
	return s
}

// GenerationRequest is the structured input for one email generation call.
// It is built once per call and not mutated afterwards.
type GenerationRequest struct {
	RecipientName     string         `json:"recipientName,omitempty"`
	RecipientEmail    string         `json:"recipientEmail"`
	LeadSource        string         `json:"leadSource,omitempty"`
	ProductType       string         `json:"productType,omitempty"`
	Urgency           string         `json:"urgency,omitempty"`
	IsFollowUp        bool           `json:"isFollowUp,omitempty"`
	QualificationInfo string         `json:"qualificationInfo,omitempty"`
	SpecialOffers     string         `json:"specialOffers,omitempty"`
	LeadTimes         string         `json:"leadTimes,omitempty"`
	Postcode          string         `json:"postcode,omitempty"`
	AdditionalContext string         `json:"additionalContext,omitempty"`
	Template          string         `json:"template,omitempty"`
	Mood              Mood           `json:"mood,omitempty"`
	Signature         *UserSignature `json:"userSignature,omitempty"`
}

// GenerationResult is a parsed and sanitized email.
type GenerationResult struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
