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

package signature

import (
	"testing"

	"github.com/bcem/outreach/internal/models"
)

// TestCompose verifies field order and omission of empty fields.
func TestCompose(t *testing.T) {
	tests := []struct {
		name string
		sig  models.UserSignature
		want string
	}{
		{"empty", models.UserSignature{}, ""},
		{"name and phone", models.UserSignature{Name: "Jane", Phone: "555"}, "Jane\nPhone: 555"},
		{"email only", models.UserSignature{Email: "j@x.co"}, "Email: j@x.co"},
		{
			"all fields",
			models.UserSignature{Name: "Jane Doe", Title: "Sales Lead", Phone: "01606 1", Email: "j@x.co", Company: "Acme"},
			"Jane Doe\nSales Lead\nAcme\nPhone: 01606 1\nEmail: j@x.co",
		},
		{"title and company", models.UserSignature{Title: "Manager", Company: "Acme"}, "Manager\nAcme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compose(tt.sig); got != tt.want {
				t.Errorf("Compose = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestAppend verifies the blank-line separator and the empty cases.
func TestAppend(t *testing.T) {
	body := "Hello.\n\nBest regards,"

	if got := Append(body, nil); got != body {
		t.Errorf("nil signature changed body: %q", got)
	}
	if got := Append(body, &models.UserSignature{}); got != body {
		t.Errorf("empty signature changed body: %q", got)
	}

	got := Append(body, &models.UserSignature{Name: "Jane"})
	if want := "Hello.\n\nBest regards,\n\nJane"; got != want {
		t.Errorf("Append = %q, want %q", got, want)
	}
}

// TestExtract verifies that Extract reverses Append for signatures with
// contact lines and ignores ordinary trailing paragraphs.
func TestExtract(t *testing.T) {
	body := "Hello.\n\nBest regards,"
	sig := &models.UserSignature{Name: "Jane", Phone: "555", Email: "j@x.co"}

	rest, block := Extract(Append(body, sig))
	if rest != body {
		t.Errorf("rest = %q, want %q", rest, body)
	}
	if block != Compose(*sig) {
		t.Errorf("block = %q, want %q", block, Compose(*sig))
	}

	plain := "Hello.\n\nThanks for your time.\n\nBest regards,"
	rest, block = Extract(plain)
	if rest != plain || block != "" {
		t.Errorf("expected no signature, got rest=%q block=%q", rest, block)
	}

	rest, block = Extract("single line")
	if rest != "single line" || block != "" {
		t.Errorf("unexpected split of single line: %q %q", rest, block)
	}
}
