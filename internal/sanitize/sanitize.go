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

// Package sanitize turns raw generated text into a subject and a clean body.
//
// Generation models routinely invent signatures, company contact blocks and
// label lines the user never asked for. The sanitizer strips them with an
// ordered list of named rules, then makes sure the body ends in a closing
// phrase so the real signature can be appended after it.
package sanitize

import (
	"regexp"
	"sort"
	"strings"

	"github.com/bcem/outreach/internal/models"
)

// DefaultSubject is used when the raw text carries no Subject: line.
const DefaultSubject = "Follow-up from our conversation"

// maxPasses bounds the fixed-point loop for each rule and for the pipeline.
const maxPasses = 8

// Profile names the operator-specific strings that generated text tends to
// hallucinate into signatures.
type Profile struct {
	// CompanyNames are company or trading names stripped from signature areas.
	CompanyNames []string `yaml:"company_names"`
	// AddressTokens anchor multi-line address/contact blocks.
	AddressTokens []string `yaml:"address_tokens"`
}

// DefaultProfile matches the operator's trading names and head office address.
var DefaultProfile = Profile{
	CompanyNames: []string{
		"Cheshire Stables",
		"Cheshire Sheds and Garden Buildings",
		"Cheshire Sheds",
	},
	AddressTokens: []string{"Ibex House", "Nat Lane", "Winsford", "Cheshire", "CW7"},
}

// Rule is one named transformation in the pipeline.
type Rule struct {
	Name string
	re   *regexp.Regexp
	repl string
}

// Apply runs the rule until its output stops changing.
func (r Rule) Apply(s string) string {
	for i := 0; i < maxPasses; i++ {
		next := r.re.ReplaceAllString(s, r.repl)
		if next == s {
			break
		}
		s = next
	}
	return s
}

const (
	strippableClosings = `Warm regards|Best regards|Kind regards|Regards`
	closingPhrases     = strippableClosings + `|Sincerely|Thank you|Thanks`

	// nameTail matches the rest of a company-name line: capitalized words,
	// connectors and punctuation such as "Ltd.", "- CSGB Group" or "T/A".
	nameTail = `(?:[ \t]+|[-–,&|()/.:]|(?-i:\p{Lu}[\p{L}\d&.'/]*|and|of|the))*`
)

var (
	subjectRe = regexp.MustCompile(`(?im)^[ \t]*Subject:[ \t]*([^\n]*)`)
	closingRe = regexp.MustCompile(`(?i)(?:` + closingPhrases + `),?\s*$`)
)

// Sanitizer applies a fixed rule pipeline built from a Profile.
type Sanitizer struct {
	rules []Rule
}

// New builds the rule pipeline for p.
func New(p Profile) *Sanitizer {
	names := alternation(p.CompanyNames)
	anchors := alternation(append(append([]string{}, p.CompanyNames...), p.AddressTokens...))
	if anchors != "" {
		anchors += "|"
	}
	anchors += `(?-i:[A-Z][a-z]+\s+House)`

	rules := []Rule{
		{Name: "subject-lines", re: regexp.MustCompile(`(?im)^[ \t]*Subject:[^\n]*(?:\n|\z)`)},
		{Name: "body-label", re: regexp.MustCompile(`(?im)^[ \t]*Body:[ \t]*`)},
		{Name: "name-placeholder", re: regexp.MustCompile(`(?im)\n\s*\[(?:Your Name|Name)\][^\n]*$`)},
		{
			Name: "closing-placeholder",
			re:   regexp.MustCompile(`(?im)(` + closingPhrases + `),?[ \t]*\[(?:Your Name|Name)\][ \t]*$`),
			repl: "${1},",
		},
	}
	if names != "" {
		// Only lines that are nothing but a trading name; prose mentioning
		// the company stays.
		rules = append(rules, Rule{
			Name: "standalone-company",
			re:   regexp.MustCompile(`(?im)\n\s*(?:` + names + `)\b` + nameTail + `[ \t]*$`),
		})
	}
	rules = append(rules, Rule{
		Name: "separator",
		re:   regexp.MustCompile(`\n[ \t]*---[^\n]*`),
	})
	if names != "" {
		rules = append(rules, Rule{
			Name: "company-after-closing",
			re:   regexp.MustCompile(`(?i)(` + strippableClosings + `),?[ \t]*,?[ \t]*\n?[ \t]*(?:` + names + `)\b[^\n]*`),
			repl: "${1},",
		})
	}
	rules = append(rules,
		Rule{
			Name: "contact-block",
			re: regexp.MustCompile(`(?i)\n[ \t]*(?:` + anchors + `)[^\n]*\n(?:[^\n]+\n)*?` +
				`[ \t]*(?:Tel|Phone):[ \t]*\d[^\n]*\n[ \t]*[^\n]*@[^\n]*`),
		},
		Rule{
			Name: "contact-after-closing",
			re: regexp.MustCompile(`(?im)(` + strippableClosings + `),?[ \t]*\n\s*` +
				`(?:[^\n]*(?:Tel|Phone):[ \t]*\d|[^\n]*@|(?-i:[A-Z][a-z]+\s+House))[^\n]*$`),
			repl: "${1},",
		},
	)

	return &Sanitizer{rules: rules}
}

// Rules returns the pipeline in application order.
func (s *Sanitizer) Rules() []Rule {
	return s.rules
}

// Sanitize parses raw using DefaultSubject when no subject line is present.
func (s *Sanitizer) Sanitize(raw string) models.GenerationResult {
	return s.Parse(raw, DefaultSubject)
}

// Parse splits raw into subject and body, strips hallucinated content from
// the body and guarantees a closing phrase on a non-empty body.
func (s *Sanitizer) Parse(raw, defaultSubject string) models.GenerationResult {
	subject := defaultSubject
	body := raw

	if m := subjectRe.FindStringSubmatch(raw); m != nil {
		if v := strings.TrimSpace(m[1]); v != "" {
			subject = v
		}
		if i := strings.IndexByte(raw, '\n'); i >= 0 {
			body = raw[i+1:]
		} else {
			body = ""
		}
	}

	body = s.Clean(strings.TrimSpace(body))
	return models.GenerationResult{Subject: subject, Body: body}
}

// Clean runs the rule pipeline to a fixed point and ensures a closing.
func (s *Sanitizer) Clean(body string) string {
	for i := 0; i < maxPasses; i++ {
		next := body
		for _, r := range s.rules {
			next = r.Apply(next)
		}
		next = strings.TrimSpace(next)
		if next == body {
			break
		}
		body = next
	}

	if body != "" && !HasClosing(body) {
		body += "\n\nBest regards,"
	}
	return body
}

// HasClosing reports whether body ends in a recognized closing phrase.
func HasClosing(body string) bool {
	return closingRe.MatchString(body)
}

var defaultSanitizer = New(DefaultProfile)

// Sanitize applies the default profile's pipeline to raw.
func Sanitize(raw string) models.GenerationResult {
	return defaultSanitizer.Sanitize(raw)
}

// alternation quotes each non-empty value and joins them longest first so
// longer names win over their prefixes.
func alternation(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			quoted = append(quoted, v)
		}
	}
	sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	for i, v := range quoted {
		quoted[i] = regexp.QuoteMeta(v)
	}
	return strings.Join(quoted, "|")
}
