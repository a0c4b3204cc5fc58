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

// Outreach Service
//
// Entry point for the sales email service. It:
//  1. Loads configuration from config.yaml and the environment
//  2. Opens the persistence backend (Postgres or SQLite) and, if set, Redis
//  3. Builds the credential vault, OAuth manager and mailbox client
//  4. Wires generation, mail transport and notifications into the HTTP API
//  5. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bcem/outreach/internal/assistants"
	"github.com/bcem/outreach/internal/config"
	"github.com/bcem/outreach/internal/generation"
	"github.com/bcem/outreach/internal/graph"
	"github.com/bcem/outreach/internal/mail"
	"github.com/bcem/outreach/internal/nonce"
	"github.com/bcem/outreach/internal/notify"
	"github.com/bcem/outreach/internal/oauth"
	"github.com/bcem/outreach/internal/sanitize"
	"github.com/bcem/outreach/internal/store"
	"github.com/bcem/outreach/internal/vault"
	"github.com/bcem/outreach/internal/web"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting outreach service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"database", cfg.Database.Driver,
		"model", cfg.Generation.Model,
		"oauth_enabled", cfg.OAuth.Enabled(),
		"redis", cfg.RedisURL != "",
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Persistence ---
	db, err := store.Open(ctx, store.Config{
		Driver:     cfg.Database.Driver,
		URL:        cfg.Database.URL,
		SQLitePath: cfg.Database.SQLitePath,
	})
	if err != nil {
		slog.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}

	// --- Redis (optional) ---
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opt)

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		err = rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		slog.Info("connected to Redis")
	}

	// --- Credential Vault ---
	v, err := vault.New(cfg.EncryptionKey)
	if err != nil {
		slog.Error("failed to initialise vault", "error", err)
		os.Exit(1)
	}

	// --- Mailbox OAuth + Graph ---
	httpClient := &http.Client{Timeout: 30 * time.Second}
	oauthMgr := oauth.NewManager(oauth.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		RedirectURI:  cfg.OAuth.RedirectURI,
		Tenant:       cfg.OAuth.Tenant,
		HTTPClient:   httpClient,
	})
	mailbox := graph.NewClient(httpClient, cfg.OAuth.GraphBaseURL)

	var nonces nonce.Store = nonce.NewMemoryStore()
	if rdb != nil {
		nonces = nonce.NewRedisStore(rdb)
	}

	// --- Generation ---
	var registry generation.AssistantRegistry = generation.NewStaticRegistry(cfg.Generation.AssistantID)
	if rdb != nil {
		registry = generation.NewRedisRegistry(rdb, cfg.Generation.AssistantID)
	}
	backend := assistants.NewClient(assistants.Config{
		APIKey:     cfg.Generation.APIKey,
		BaseURL:    cfg.Generation.BaseURL,
		HTTPClient: httpClient,
	})
	generator := generation.NewClient(backend, registry, sanitize.New(cfg.Sanitizer), generation.Config{
		Model:        cfg.Generation.Model,
		Temperature:  cfg.Generation.Temperature,
		CompanyName:  cfg.Generation.CompanyName,
		ProductTypes: cfg.Generation.ProductTypes,
		PollInterval: cfg.Generation.PollInterval,
		Timeout:      cfg.Generation.Timeout,
	})

	// --- Mail Transport ---
	sender := mail.NewService(db, v, oauthMgr, mailbox, mail.Config{
		DefaultSMTPPort: cfg.SMTP.DefaultPort,
		DefaultFromName: cfg.SMTP.DefaultFromName,
		UploadsDir:      cfg.Server.UploadsDir,
	})

	notifier := notify.New(
		notify.NewWebhook(cfg.WebhookURL, httpClient),
		notify.NewQueue(rdb, cfg.EventsQueue),
	)

	deps := web.Deps{
		Store:          db,
		Generator:      generator,
		Sender:         sender,
		Mailbox:        mailbox,
		Vault:          v,
		Nonces:         nonces,
		Notifier:       notifier,
		JWTSecret:      []byte(cfg.JWTSecret),
		SecureCookies:  cfg.Server.SecureCookies,
		RequestTimeout: cfg.Server.RequestTimeout,
	}
	if cfg.OAuth.Enabled() {
		deps.OAuth = oauthMgr
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           web.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 10*time.Second,
	}

	// --- Graceful Shutdown ---
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh

		slog.Info("received shutdown signal", "signal", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		if rdb != nil {
			rdb.Close()
		}
		db.Close()
	}()

	slog.Info("outreach service listening", "addr", addr, "base_url", cfg.Server.BaseURL)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("outreach service stopped")
}
