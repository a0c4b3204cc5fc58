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

package mail

import (
	"html"
	"regexp"
	"strings"

	"github.com/bcem/outreach/internal/models"
	"github.com/microcosm-cc/bluemonday"
)

var (
	breakTag     = regexp.MustCompile(`(?i)<br\s*/?>`)
	paragraphEnd = regexp.MustCompile(`(?i)</p\s*>`)
	textPolicy   = bluemonday.StrictPolicy()
)

// bodies returns the HTML and plain-text parts for msg, deriving whichever
// one is missing from the other.
func bodies(msg models.OutboundMessage) (htmlBody, textBody string) {
	htmlBody, textBody = msg.HTMLBody, msg.TextBody
	if htmlBody == "" {
		htmlBody = toHTML(textBody)
	}
	if textBody == "" {
		textBody = toText(htmlBody)
	}
	return htmlBody, textBody
}

// toHTML passes markup through and turns plain text line breaks into <br>.
func toHTML(body string) string {
	if strings.Contains(body, "<") {
		return body
	}
	return strings.ReplaceAll(html.EscapeString(body), "\n", "<br>")
}

// toText strips markup, keeping line and paragraph breaks.
func toText(body string) string {
	if !strings.Contains(body, "<") {
		return body
	}
	s := breakTag.ReplaceAllString(body, "\n")
	s = paragraphEnd.ReplaceAllString(s, "\n\n")
	s = textPolicy.Sanitize(s)
	return strings.TrimSpace(html.UnescapeString(s))
}
