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

// Package vault encrypts user mail secrets at rest.
//
// Every value is sealed with AES-256-GCM under a fresh random IV and stored
// as a hex triple "iv:authTag:ciphertext". The key is derived once from the
// operator-supplied secret: a 64-character hex string is used directly as
// the 32-byte key, anything else is stretched with PBKDF2-SHA512.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLen     = 32
	ivLen      = 16
	tagLen     = 16
	iterations = 100000
	salt       = "email-assistant-salt"
)

var (
	// ErrDecryption is returned for malformed, tampered or foreign ciphertexts.
	ErrDecryption = errors.New("decryption failed")
	// ErrEncryption is returned when a value cannot be sealed.
	ErrEncryption = errors.New("encryption failed")
)

// Error carries the failing operation and whether the vault was running on
// an ephemeral key, which turns a decryption failure into an operator problem.
type Error struct {
	Op        string
	Ephemeral bool
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("vault %s: %v", e.Op, e.Err)
	if e.Ephemeral {
		msg += " (no ENCRYPTION_KEY set; using ephemeral key)"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Vault seals and opens secret strings.
type Vault struct {
	aead      cipher.AEAD
	ephemeral bool
}

// New derives the vault key from secret. An empty secret falls back to a
// random per-process key; values sealed under it are lost on restart.
func New(secret string) (*Vault, error) {
	var key []byte
	ephemeral := false

	switch {
	case secret == "":
		key = make([]byte, keyLen)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate ephemeral key: %w", err)
		}
		ephemeral = true
		slog.Warn("ENCRYPTION_KEY is not set; using an ephemeral random key. Stored mail credentials will be unreadable after restart")
	case isHexKey(secret):
		key, _ = hex.DecodeString(secret)
	default:
		key = pbkdf2.Key([]byte(secret), []byte(salt), iterations, keyLen, sha512.New)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivLen)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return &Vault{aead: aead, ephemeral: ephemeral}, nil
}

// Ephemeral reports whether the vault is running without operator key material.
func (v *Vault) Ephemeral() bool {
	return v.ephemeral
}

// Encrypt seals plaintext and returns the "iv:authTag:ciphertext" triple.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return "", v.fail("encrypt", fmt.Errorf("%w: read iv: %w", ErrEncryption, err))
	}

	sealed := v.aead.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagLen], sealed[len(sealed)-tagLen:]

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt opens a triple produced by Encrypt. It never returns partial or
// unauthenticated plaintext.
func (v *Vault) Decrypt(triple string) (string, error) {
	parts := strings.Split(triple, ":")
	if len(parts) != 3 {
		return "", v.fail("decrypt", fmt.Errorf("%w: expected 3 parts, got %d", ErrDecryption, len(parts)))
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivLen {
		return "", v.fail("decrypt", fmt.Errorf("%w: bad iv", ErrDecryption))
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagLen {
		return "", v.fail("decrypt", fmt.Errorf("%w: bad auth tag", ErrDecryption))
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", v.fail("decrypt", fmt.Errorf("%w: bad ciphertext", ErrDecryption))
	}

	plain, err := v.aead.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return "", v.fail("decrypt", fmt.Errorf("%w: %w", ErrDecryption, err))
	}
	return string(plain), nil
}

// GenerateKey returns a random 32-byte key encoded as 64 hex characters,
// suitable for ENCRYPTION_KEY.
func GenerateKey() (string, error) {
	key := make([]byte, keyLen)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

func (v *Vault) fail(op string, err error) error {
	return &Error{Op: op, Ephemeral: v.ephemeral, Err: err}
}

func isHexKey(s string) bool {
	if len(s) != keyLen*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
