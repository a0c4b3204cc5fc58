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

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bcem/outreach/internal/sanitize"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port           int
	BaseURL        string // public origin used for OAuth redirects
	SecureCookies  bool
	RequestTimeout time.Duration
	UploadsDir     string
}

// GenerationConfig configures the generative backend.
type GenerationConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  float64
	AssistantID  string
	PollInterval time.Duration
	Timeout      time.Duration
	CompanyName  string
	ProductTypes []string
}

// OAuthConfig holds the Microsoft identity platform app registration.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Tenant       string
	GraphBaseURL string
}

// Enabled reports whether the mailbox connection flow can be offered.
func (o OAuthConfig) Enabled() bool {
	return o.ClientID != "" && o.ClientSecret != ""
}

// SMTPConfig holds defaults applied to stored SMTP settings.
type SMTPConfig struct {
	DefaultPort     int
	DefaultFromName string
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	Driver     string // "postgres" or "sqlite"
	URL        string
	SQLitePath string
}

// Config holds all configuration for the outreach service.
type Config struct {
	Server     ServerConfig
	Generation GenerationConfig
	OAuth      OAuthConfig
	SMTP       SMTPConfig
	Database   DatabaseConfig

	// EncryptionKey is a 64-char hex key or a passphrase. Empty means an
	// ephemeral key is generated at startup.
	EncryptionKey string
	JWTSecret     string

	// Redis is optional; without it nonces and the assistant ID are kept in memory.
	RedisURL    string
	EventsQueue string
	WebhookURL  string

	Sanitizer sanitize.Profile
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Server struct {
		Port           int    `yaml:"port"`
		BaseURL        string `yaml:"base_url"`
		SecureCookies  *bool  `yaml:"secure_cookies"`
		RequestTimeout string `yaml:"request_timeout"`
		UploadsDir     string `yaml:"uploads_dir"`
	} `yaml:"server"`
	Generation struct {
		APIKey       string   `yaml:"api_key"`
		BaseURL      string   `yaml:"base_url"`
		Model        string   `yaml:"model"`
		Temperature  *float64 `yaml:"temperature"`
		AssistantID  string   `yaml:"assistant_id"`
		PollInterval string   `yaml:"poll_interval"`
		Timeout      string   `yaml:"timeout"`
		CompanyName  string   `yaml:"company_name"`
		ProductTypes []string `yaml:"product_types"`
	} `yaml:"generation"`
	OAuth struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		RedirectURI  string `yaml:"redirect_uri"`
		Tenant       string `yaml:"tenant"`
		GraphBaseURL string `yaml:"graph_base_url"`
	} `yaml:"oauth"`
	SMTP struct {
		DefaultPort     int    `yaml:"default_port"`
		DefaultFromName string `yaml:"default_from_name"`
	} `yaml:"smtp"`
	Database struct {
		Driver     string `yaml:"driver"`
		URL        string `yaml:"url"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Vault struct {
		Key string `yaml:"key"`
	} `yaml:"vault"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Redis struct {
		URL    string `yaml:"url"`
		Queues struct {
			Events string `yaml:"events"`
		} `yaml:"queues"`
	} `yaml:"redis"`
	Notify struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"notify"`
	Sanitizer *sanitize.Profile `yaml:"sanitizer"`
}

// Load reads configuration from CONFIG_PATH (with env var expansion) and
// fills anything the file leaves out from environment variables. A missing
// file is not an error.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "config.yaml")

	var raw rawConfig
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// env-only deployment
	case err != nil:
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	default:
		// Expand ${VAR} references in the YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	}

	cfg := fromRaw(raw)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromRaw(raw rawConfig) *Config {
	port := firstNonZero(raw.Server.Port, envOrDefaultInt("PORT", 3000))
	baseURL := strings.TrimRight(firstNonEmpty(raw.Server.BaseURL, envOrDefault("BASE_URL", fmt.Sprintf("http://localhost:%d", port))), "/")

	cfg := &Config{
		Server: ServerConfig{
			Port:           port,
			BaseURL:        baseURL,
			SecureCookies:  boolOr(raw.Server.SecureCookies, envOrDefaultBool("SECURE_COOKIES", strings.HasPrefix(baseURL, "https://"))),
			RequestTimeout: durationOr(raw.Server.RequestTimeout, envOrDefaultDuration("REQUEST_TIMEOUT", 90*time.Second)),
			UploadsDir:     firstNonEmpty(raw.Server.UploadsDir, envOrDefault("UPLOADS_DIR", "public")),
		},
		Generation: GenerationConfig{
			APIKey:       firstNonEmpty(raw.Generation.APIKey, os.Getenv("OPENAI_API_KEY")),
			BaseURL:      firstNonEmpty(raw.Generation.BaseURL, os.Getenv("OPENAI_BASE_URL")),
			Model:        firstNonEmpty(raw.Generation.Model, envOrDefault("OPENAI_MODEL", "gpt-4o")),
			Temperature:  floatOr(raw.Generation.Temperature, envOrDefaultFloat("OPENAI_TEMPERATURE", 0.7)),
			AssistantID:  firstNonEmpty(raw.Generation.AssistantID, os.Getenv("OPENAI_ASSISTANT_ID")),
			PollInterval: durationOr(raw.Generation.PollInterval, envOrDefaultDuration("GENERATION_POLL_INTERVAL", time.Second)),
			Timeout:      durationOr(raw.Generation.Timeout, envOrDefaultDuration("GENERATION_TIMEOUT", 60*time.Second)),
			CompanyName:  firstNonEmpty(raw.Generation.CompanyName, os.Getenv("COMPANY_NAME")),
			ProductTypes: raw.Generation.ProductTypes,
		},
		OAuth: OAuthConfig{
			ClientID:     firstNonEmpty(raw.OAuth.ClientID, os.Getenv("MICROSOFT_CLIENT_ID")),
			ClientSecret: firstNonEmpty(raw.OAuth.ClientSecret, os.Getenv("MICROSOFT_CLIENT_SECRET")),
			RedirectURI:  firstNonEmpty(raw.OAuth.RedirectURI, envOrDefault("MICROSOFT_REDIRECT_URI", baseURL+"/api/auth/microsoft/callback")),
			Tenant:       firstNonEmpty(raw.OAuth.Tenant, envOrDefault("MICROSOFT_TENANT_ID", "common")),
			GraphBaseURL: firstNonEmpty(raw.OAuth.GraphBaseURL, os.Getenv("GRAPH_BASE_URL")),
		},
		SMTP: SMTPConfig{
			DefaultPort:     firstNonZero(raw.SMTP.DefaultPort, envOrDefaultInt("SMTP_DEFAULT_PORT", 587)),
			DefaultFromName: firstNonEmpty(raw.SMTP.DefaultFromName, envOrDefault("SMTP_DEFAULT_FROM_NAME", "Sales Team")),
		},
		Database: DatabaseConfig{
			URL:        firstNonEmpty(raw.Database.URL, os.Getenv("DATABASE_URL")),
			SQLitePath: firstNonEmpty(raw.Database.SQLitePath, envOrDefault("SQLITE_PATH", "data/emails.db")),
		},
		EncryptionKey: firstNonEmpty(raw.Vault.Key, os.Getenv("ENCRYPTION_KEY")),
		JWTSecret:     firstNonEmpty(raw.Auth.JWTSecret, os.Getenv("JWT_SECRET")),
		RedisURL:      firstNonEmpty(raw.Redis.URL, os.Getenv("REDIS_URL")),
		EventsQueue:   firstNonEmpty(raw.Redis.Queues.Events, os.Getenv("EVENTS_QUEUE")),
		WebhookURL:    firstNonEmpty(raw.Notify.WebhookURL, os.Getenv("AUTOMATION_WEBHOOK_URL")),
		Sanitizer:     sanitize.DefaultProfile,
	}

	cfg.Database.Driver = raw.Database.Driver
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
		if cfg.Database.URL != "" {
			cfg.Database.Driver = "postgres"
		}
	}

	if raw.Sanitizer != nil {
		cfg.Sanitizer = *raw.Sanitizer
	}
	if cfg.Generation.CompanyName != "" && !contains(cfg.Sanitizer.CompanyNames, cfg.Generation.CompanyName) {
		cfg.Sanitizer.CompanyNames = append(append([]string(nil), cfg.Sanitizer.CompanyNames...), cfg.Generation.CompanyName)
	}
	return cfg
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	if c.Generation.APIKey == "" {
		return fmt.Errorf("generation API key is required (generation.api_key or OPENAI_API_KEY)")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required (auth.jwt_secret or JWT_SECRET)")
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database driver postgres requires database.url or DATABASE_URL")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func durationOr(raw string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil {
		return d
	}
	return fallback
}

func floatOr(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}

func boolOr(v *bool, fallback bool) bool {
	if v != nil {
		return *v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
