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

package graph

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/bcem/outreach/internal/models"
)

// Profile is the subset of /me the mailbox connection needs.
type Profile struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// Address returns the mailbox address, falling back to the UPN for
// accounts without a primary SMTP address.
func (p *Profile) Address() string {
	if p.Mail != "" {
		return p.Mail
	}
	return p.UserPrincipalName
}

// FileAttachment is an attachment embedded in the sendMail payload.
type FileAttachment struct {
	Name        string
	ContentType string
	Content     []byte
}

// Message is an outbound message for /me/sendMail.
type Message struct {
	From        *models.EmailAddress
	To          []string
	CC          []string
	BCC         []string
	Subject     string
	HTMLBody    string
	Attachments []FileAttachment
}

type emailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type fileAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes []byte `json:"contentBytes"` // encoding/json emits base64
}

type graphMessage struct {
	Subject       string           `json:"subject"`
	Body          itemBody         `json:"body"`
	From          *recipient       `json:"from,omitempty"`
	ToRecipients  []recipient      `json:"toRecipients"`
	CcRecipients  []recipient      `json:"ccRecipients,omitempty"`
	BccRecipients []recipient      `json:"bccRecipients,omitempty"`
	Attachments   []fileAttachment `json:"attachments,omitempty"`
}

type sendMailRequest struct {
	Message         graphMessage `json:"message"`
	SaveToSentItems bool         `json:"saveToSentItems"`
}

func buildSendMail(msg Message) sendMailRequest {
	gm := graphMessage{
		Subject:       msg.Subject,
		Body:          itemBody{ContentType: "HTML", Content: msg.HTMLBody},
		ToRecipients:  recipients(msg.To),
		CcRecipients:  recipients(msg.CC),
		BccRecipients: recipients(msg.BCC),
	}
	if msg.From != nil && msg.From.Address != "" {
		gm.From = &recipient{EmailAddress: emailAddress{Address: msg.From.Address, Name: msg.From.Name}}
	}
	for _, a := range msg.Attachments {
		gm.Attachments = append(gm.Attachments, fileAttachment{
			ODataType:    "#microsoft.graph.fileAttachment",
			Name:         a.Name,
			ContentType:  a.ContentType,
			ContentBytes: a.Content,
		})
	}
	return sendMailRequest{Message: gm, SaveToSentItems: true}
}

func recipients(addrs []string) []recipient {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]recipient, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, recipient{EmailAddress: emailAddress{Address: a}})
	}
	return out
}

func parseProfile(body io.Reader) (*Profile, error) {
	var p Profile
	if err := json.NewDecoder(body).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// parseError reads a Graph error envelope into an APIError.
func parseError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(data, &envelope)

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       envelope.Error.Code,
		Message:    envelope.Error.Message,
	}
}
