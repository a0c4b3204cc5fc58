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

// Package signature renders a user's profile fields into the block appended
// after a generated email's closing line.
package signature

import (
	"strings"

	"github.com/bcem/outreach/internal/models"
)

// Compose renders sig as name, title, company, phone and email lines in that
// order, skipping empty fields. It returns "" when every field is empty.
func Compose(sig models.UserSignature) string {
	var b strings.Builder
	add := func(line string) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}

	if sig.Name != "" {
		add(sig.Name)
	}
	if sig.Title != "" {
		add(sig.Title)
	}
	if sig.Company != "" {
		add(sig.Company)
	}
	if sig.Phone != "" {
		add("Phone: " + sig.Phone)
	}
	if sig.Email != "" {
		add("Email: " + sig.Email)
	}
	return b.String()
}

// Append adds the composed signature to body after a blank line. A nil or
// empty signature leaves body unchanged.
func Append(body string, sig *models.UserSignature) string {
	if sig == nil {
		return body
	}
	block := Compose(*sig)
	if block == "" {
		return body
	}
	return body + "\n\n" + block
}

// Extract splits a trailing signature block from body. A block is the text
// after the last blank line when one of its lines carries a Phone: or Email:
// label. When no block is found, rest is body and sig is "".
func Extract(body string) (rest, sig string) {
	idx := strings.LastIndex(body, "\n\n")
	if idx < 0 {
		return body, ""
	}

	tail := body[idx+2:]
	for _, line := range strings.Split(tail, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Phone:") || strings.HasPrefix(line, "Email:") {
			return strings.TrimRight(body[:idx], " \t\n"), tail
		}
	}
	return body, ""
}
