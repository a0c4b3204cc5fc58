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

package vault

import (
	"errors"
	"strings"
	"testing"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// TestRoundTrip verifies that decrypt(encrypt(x)) == x for assorted inputs.
func TestRoundTrip(t *testing.T) {
	v, err := New(testKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	inputs := []string{
		"a",
		"refresh-token-0.AXEA",
		"pässwörd with ünïcode ✓",
		strings.Repeat("x", 4096),
	}
	for _, in := range inputs {
		ct, err := v.Encrypt(in)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", in, err)
		}
		if strings.Count(ct, ":") != 2 {
			t.Errorf("ciphertext %q is not a triple", ct)
		}
		got, err := v.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != in {
			t.Errorf("round trip = %q, want %q", got, in)
		}
	}
}

// TestFreshIV verifies that two encryptions of the same value differ.
func TestFreshIV(t *testing.T) {
	v, _ := New(testKey)
	a, _ := v.Encrypt("same")
	b, _ := v.Encrypt("same")
	if a == b {
		t.Error("expected distinct ciphertexts for repeated plaintext")
	}
}

// TestTamperedTag verifies that a flipped byte in the auth tag fails closed.
func TestTamperedTag(t *testing.T) {
	v, _ := New(testKey)
	ct, _ := v.Encrypt("secret")

	parts := strings.Split(ct, ":")
	tag := []byte(parts[1])
	if tag[0] == '0' {
		tag[0] = '1'
	} else {
		tag[0] = '0'
	}
	parts[1] = string(tag)

	got, err := v.Decrypt(strings.Join(parts, ":"))
	if !errors.Is(err, ErrDecryption) {
		t.Fatalf("expected ErrDecryption, got %v", err)
	}
	if got != "" {
		t.Errorf("expected no plaintext on failure, got %q", got)
	}
}

// TestMalformed verifies that structurally invalid triples are rejected.
func TestMalformed(t *testing.T) {
	v, _ := New(testKey)
	cases := []string{
		"",
		"abc",
		"zz:zz:zz",
		"00:00:00",
		"00112233445566778899aabbccddeeff:00:00",
	}
	for _, c := range cases {
		if _, err := v.Decrypt(c); !errors.Is(err, ErrDecryption) {
			t.Errorf("Decrypt(%q): expected ErrDecryption, got %v", c, err)
		}
	}
}

// TestPassphraseKey verifies that a non-hex secret derives a stable key.
func TestPassphraseKey(t *testing.T) {
	a, _ := New("correct horse battery staple")
	b, _ := New("correct horse battery staple")

	ct, err := a.Encrypt("token")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := b.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt with same passphrase: %v", err)
	}
	if got != "token" {
		t.Errorf("got %q", got)
	}

	other, _ := New("a different passphrase")
	if _, err := other.Decrypt(ct); !errors.Is(err, ErrDecryption) {
		t.Errorf("expected ErrDecryption under a different key, got %v", err)
	}
}

// TestEphemeral verifies the no-key degradation is observable.
func TestEphemeral(t *testing.T) {
	v, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !v.Ephemeral() {
		t.Fatal("expected ephemeral vault")
	}

	ct, _ := v.Encrypt("x")
	restarted, _ := New("")
	_, err = restarted.Decrypt(ct)

	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if !verr.Ephemeral {
		t.Error("expected error to record ephemeral key")
	}
	if !errors.Is(err, ErrDecryption) {
		t.Error("expected ErrDecryption")
	}
}

// TestGenerateKey verifies generated keys are accepted as direct hex keys.
func TestGenerateKey(t *testing.T) {
	k, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if len(k) != 64 || !isHexKey(k) {
		t.Fatalf("unexpected key %q", k)
	}
	v, err := New(k)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if v.Ephemeral() {
		t.Error("hex key should not be ephemeral")
	}
}
