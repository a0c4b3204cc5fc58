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

// Vault Key Tool
//
// Operator CLI for the credential vault. With no flags it prints a fresh
// 32-byte hex key suitable for ENCRYPTION_KEY. With --verify it checks that
// the key in ENCRYPTION_KEY can open a stored ciphertext.
//
// Usage:
//
//	go run ./cmd/vaultkey/
//	ENCRYPTION_KEY=... go run ./cmd/vaultkey/ --verify <iv:tag:ciphertext>
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/bcem/outreach/internal/vault"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	verifyFlag := flag.String("verify", "", "Ciphertext triple to test against ENCRYPTION_KEY")
	flag.Parse()

	if *verifyFlag == "" {
		key, err := vault.GenerateKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: generate key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(key)
		return
	}

	secret := os.Getenv("ENCRYPTION_KEY")
	if secret == "" {
		fmt.Fprintf(os.Stderr, "Error: ENCRYPTION_KEY must be set to use --verify\n")
		os.Exit(1)
	}

	v, err := vault.New(secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if _, err := v.Decrypt(*verifyFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("ok: ciphertext opens with the configured key")
}
