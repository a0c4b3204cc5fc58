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

package generation

import (
	"regexp"
	"strings"

	"github.com/bcem/outreach/internal/models"
)

var (
	namePlaceholder     = regexp.MustCompile(`(?i)\{\{\s*(?:customer_?name|recipient_?name)\s*\}\}`)
	postcodePlaceholder = regexp.MustCompile(`(?i)\{\{\s*postcode\s*\}\}`)
	leadSourceHolder    = regexp.MustCompile(`(?i)\{\{\s*lead_?source\s*\}\}`)
	productTypeHolder   = regexp.MustCompile(`(?i)\{\{\s*product_?type\s*\}\}`)

	// ukPostcode matches outward and inward codes such as "CW7 3BS" or "M11AE".
	ukPostcode = regexp.MustCompile(`(?i)\b[A-Z]{1,2}\d{1,2}[A-Z]?\s?\d[A-Z]{2}\b`)
)

// BuildPrompt renders req as the user turn sent to the backend. Optional
// fields appear only when set, one labeled line each, always in the same
// order regardless of how the request was assembled.
func BuildPrompt(req models.GenerationRequest) string {
	var b strings.Builder

	b.WriteString("Please write a professional sales email with the following details:\n\n")

	writeLine(&b, "Recipient Name", req.RecipientName)
	b.WriteString("Recipient Email: " + req.RecipientEmail + "\n\n")

	writeLine(&b, "Lead Source", req.LeadSource)
	writeLine(&b, "Product Type Customer is Interested In", req.ProductType)
	writeLine(&b, "Urgency Level", req.Urgency)

	if req.IsFollowUp {
		b.WriteString("This is a FOLLOW-UP email. Please reference previous conversation appropriately.\n")
	} else {
		b.WriteString("This is an INITIAL contact email.\n")
	}

	writeLine(&b, "Information needed to qualify the lead", req.QualificationInfo)
	writeLine(&b, "Special offers available", req.SpecialOffers)
	writeLine(&b, "Lead times information", req.LeadTimes)
	writeLine(&b, "Customer Postcode (for delivery quotes)", req.Postcode)
	writeLine(&b, "Additional context", req.AdditionalContext)
	writeLine(&b, "Tone/Mood", string(req.Mood))

	if req.Template != "" {
		b.WriteString("\nUse this template as a base structure (placeholders have been replaced with actual values):\n")
		b.WriteString(ApplyTemplate(req))
		b.WriteString("\n\nPlease enhance and personalize this template while maintaining its core structure and key information.")
	}

	return b.String()
}

// ApplyTemplate substitutes the known placeholders in req.Template.
// Placeholders it does not know are left untouched.
func ApplyTemplate(req models.GenerationRequest) string {
	out := req.Template

	if req.RecipientName != "" {
		out = namePlaceholder.ReplaceAllLiteralString(out, req.RecipientName)
	}

	postcode := req.Postcode
	if postcode == "" {
		postcode = ExtractPostcode(req.AdditionalContext)
	}
	if postcode != "" {
		out = postcodePlaceholder.ReplaceAllLiteralString(out, postcode)
	}

	out = leadSourceHolder.ReplaceAllLiteralString(out, req.LeadSource)
	out = productTypeHolder.ReplaceAllLiteralString(out, req.ProductType)
	return out
}

// ExtractPostcode returns the first UK postcode found in text, or "".
func ExtractPostcode(text string) string {
	return ukPostcode.FindString(text)
}

func writeLine(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString(label + ": " + value + "\n")
}

func shortenPrompt(subject, body string) string {
	return "Please condense the following email to be more concise while keeping ALL essential information:\n\n" +
		"Subject: " + subject + "\n\n" +
		"Body:\n" + body + "\n\n" +
		"Requirements:\n" +
		"- Keep all key information (recipient name, product details, special offers, lead times)\n" +
		"- Maintain the professional tone and style\n" +
		"- Preserve the call-to-action\n" +
		"- Make it shorter and more concise without losing important details\n" +
		"- End with a closing such as \"Best regards,\" and nothing after it\n\n" +
		"Format your response as:\n" +
		"Subject: [shortened subject]\n\n" +
		"[shortened email body]"
}
