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
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bcem/outreach/internal/models"
	"github.com/bcem/outreach/internal/notify"
)

// generateEmail handles POST /api/generate-email.
func (h *handler) generateEmail(w http.ResponseWriter, r *http.Request) {
	var req models.GenerationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.RecipientEmail) == "" {
		writeError(w, http.StatusBadRequest, "Recipient email is required")
		return
	}
	if req.Mood != "" && !req.Mood.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown mood")
		return
	}

	claims := ClaimsFromContext(r.Context())
	user, err := h.Store.GetUserByID(r.Context(), claims.ID)
	if err != nil {
		writeProblem(w, r, "load user", err, "user_id", claims.ID)
		return
	}

	// The profile wins; request-supplied fields only fill its gaps.
	var sig models.UserSignature
	if user != nil {
		sig = user.Signature
	}
	if req.Signature != nil {
		sig = sig.Merge(*req.Signature)
	}
	req.Signature = nil
	if !sig.IsEmpty() {
		req.Signature = &sig
	}

	res, err := h.Generator.Generate(r.Context(), req)
	if err != nil {
		writeProblem(w, r, "generate email", err, "user_id", claims.ID)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type shortenRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// shortenEmail handles POST /api/shorten-email.
func (h *handler) shortenEmail(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Body) == "" {
		writeError(w, http.StatusBadRequest, "Subject and body are required")
		return
	}

	res, err := h.Generator.Shorten(r.Context(), req.Subject, req.Body)
	if err != nil {
		writeProblem(w, r, "shorten email", err, "user_id", ClaimsFromContext(r.Context()).ID)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type sendRequest struct {
	RecipientEmail    string              `json:"recipientEmail"`
	RecipientName     string              `json:"recipientName"`
	Subject           string              `json:"subject"`
	Body              string              `json:"body"`
	CC                []string            `json:"cc"`
	BCC               []string            `json:"bcc"`
	LeadSource        string              `json:"leadSource"`
	ProductType       string              `json:"productType"`
	Urgency           string              `json:"urgency"`
	IsFollowUp        bool                `json:"isFollowUp"`
	QualificationInfo string              `json:"qualificationInfo"`
	SpecialOffers     string              `json:"specialOffers"`
	LeadTimes         string              `json:"leadTimes"`
	TemplateUsed      string              `json:"templateUsed"`
	Attachments       []models.Attachment `json:"attachments"`
	SendNow           bool                `json:"sendNow"`
	Status            string              `json:"status"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	EmailID string `json:"emailId"`
	Status  string `json:"status"`
}

// clientStatusVia records how a draft left the app without being sent by it.
var clientStatusVia = map[string]string{
	"opened_in_client": "mailto",
	"downloaded":       "eml_file",
}

// sendEmail handles POST /api/send-email. The record is saved first; with
// sendNow it is then delivered and its status updated to the outcome.
func (h *handler) sendEmail(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RecipientEmail == "" || req.Subject == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	ctx := r.Context()
	claims := ClaimsFromContext(ctx)

	attachments, err := json.Marshal(req.Attachments)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid attachments")
		return
	}
	if req.Attachments == nil {
		attachments = []byte("[]")
	}

	rec := &models.EmailRecord{
		UserID:            claims.ID,
		RecipientEmail:    req.RecipientEmail,
		RecipientName:     req.RecipientName,
		Subject:           req.Subject,
		Body:              req.Body,
		LeadSource:        req.LeadSource,
		ProductType:       req.ProductType,
		Urgency:           req.Urgency,
		IsFollowUp:        req.IsFollowUp,
		QualificationInfo: req.QualificationInfo,
		SpecialOffers:     req.SpecialOffers,
		LeadTimes:         req.LeadTimes,
		TemplateUsed:      req.TemplateUsed,
		Attachments:       string(attachments),
		Status:            models.StatusDraft,
	}
	if !req.SendNow && req.Status != "" {
		rec.Status = req.Status
		rec.SentVia = clientStatusVia[req.Status]
	}
	if err := h.Store.SaveEmail(ctx, rec); err != nil {
		writeProblem(w, r, "save email", err, "user_id", claims.ID)
		return
	}

	if !req.SendNow {
		writeJSON(w, http.StatusOK, sendResponse{Success: true, EmailID: rec.ID, Status: rec.Status})
		return
	}

	msg := models.OutboundMessage{
		To:          req.RecipientEmail,
		Subject:     req.Subject,
		TextBody:    req.Body,
		CC:          req.CC,
		BCC:         req.BCC,
		Attachments: req.Attachments,
	}
	if strings.Contains(req.Body, "<") {
		msg.HTMLBody, msg.TextBody = req.Body, ""
	}

	if err := h.Sender.Send(ctx, claims.ID, msg); err != nil {
		if uErr := h.Store.UpdateEmailStatus(ctx, rec.ID, models.StatusFailed, "", nil); uErr != nil {
			slog.Error("failed to mark email failed", "email_id", rec.ID, "error", uErr)
		}
		p := logProblem(ctx, "send email", err, "user_id", claims.ID, "email_id", rec.ID)
		writeJSON(w, p.Status, errorResponse{Error: p.Message, Category: p.Category, EmailID: rec.ID})
		return
	}

	sentAt := time.Now().UTC()
	via := h.provider(r, claims.ID)
	if err := h.Store.UpdateEmailStatus(ctx, rec.ID, models.StatusSent, via, &sentAt); err != nil {
		slog.Error("failed to mark email sent", "email_id", rec.ID, "error", err)
	}

	if h.Notifier != nil {
		h.Notifier.Notify(ctx, notify.Event{
			Event:          notify.EventEmailSent,
			EmailID:        rec.ID,
			UserID:         claims.ID,
			RecipientEmail: rec.RecipientEmail,
			RecipientName:  rec.RecipientName,
			Subject:        rec.Subject,
			SentVia:        via,
			SentAt:         sentAt,
		})
	}

	writeJSON(w, http.StatusOK, sendResponse{Success: true, EmailID: rec.ID, Status: models.StatusSent})
}

// provider names the credential variant a send went through.
func (h *handler) provider(r *http.Request, userID string) string {
	u, err := h.Store.GetUserByID(r.Context(), userID)
	if err != nil || u == nil || u.Credential == nil {
		return ""
	}
	return string(u.Credential.Provider)
}
