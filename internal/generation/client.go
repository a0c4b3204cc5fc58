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

// Package generation drives the asynchronous assistants protocol to produce
// sales emails: resolve an assistant, open a thread, post the prompt, start
// a run and poll it to a terminal state within a wall-clock budget.
//
// Each call owns its thread. Nothing is shared between concurrent calls
// except the assistant registry.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bcem/outreach/internal/assistants"
	"github.com/bcem/outreach/internal/models"
	"github.com/bcem/outreach/internal/sanitize"
	"github.com/bcem/outreach/internal/signature"
)

const (
	DefaultModel        = "gpt-4o"
	DefaultTemperature  = 0.7
	DefaultPollInterval = time.Second
	DefaultTimeout      = 60 * time.Second

	assistantName = "Sales Email Assistant"
	cancelTimeout = 5 * time.Second
)

var (
	// ErrTimeout means the run did not reach a terminal state in time.
	ErrTimeout = errors.New("generation timed out")
	// ErrFailed means the backend reported a failure or a call to it failed.
	ErrFailed = errors.New("generation failed")
	// ErrEmpty means the run completed without an assistant text message.
	ErrEmpty = errors.New("generation returned no assistant message")
)

// Backend is the subset of the assistants API the client drives.
type Backend interface {
	RetrieveAssistant(ctx context.Context, id string) (*assistants.Assistant, error)
	CreateAssistant(ctx context.Context, p assistants.AssistantParams) (*assistants.Assistant, error)
	CreateThread(ctx context.Context) (*assistants.Thread, error)
	AddMessage(ctx context.Context, threadID, content string) (*assistants.Message, error)
	CreateRun(ctx context.Context, threadID, assistantID string) (*assistants.Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (*assistants.Run, error)
	CancelRun(ctx context.Context, threadID, runID string) (*assistants.Run, error)
	ListMessages(ctx context.Context, threadID string) ([]assistants.Message, error)
}

// Config holds generation settings.
type Config struct {
	Model        string
	Temperature  float64
	CompanyName  string
	ProductTypes []string
	PollInterval time.Duration
	Timeout      time.Duration
}

// Client generates and shortens emails.
type Client struct {
	backend   Backend
	registry  AssistantRegistry
	sanitizer *sanitize.Sanitizer
	cfg       Config
}

// NewClient creates a generation client. Zero config values take defaults.
func NewClient(backend Backend, registry AssistantRegistry, sanitizer *sanitize.Sanitizer, cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if sanitizer == nil {
		sanitizer = sanitize.New(sanitize.DefaultProfile)
	}
	return &Client{
		backend:   backend,
		registry:  registry,
		sanitizer: sanitizer,
		cfg:       cfg,
	}
}

// Generate writes an email for req. The sanitized body ends in a closing
// followed by the request's signature, when it has one.
func (c *Client) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	raw, err := c.complete(ctx, BuildPrompt(req))
	if err != nil {
		return nil, err
	}

	res := c.sanitizer.Sanitize(raw)
	res.Body = signature.Append(res.Body, req.Signature)
	return &res, nil
}

// Shorten condenses an existing email. A trailing signature block is held
// back from the backend and re-attached unchanged.
func (c *Client) Shorten(ctx context.Context, subject, body string) (*models.GenerationResult, error) {
	rest, sig := signature.Extract(body)

	raw, err := c.complete(ctx, shortenPrompt(subject, rest))
	if err != nil {
		return nil, err
	}

	res := c.sanitizer.Parse(raw, subject)
	if sig != "" {
		res.Body += "\n\n" + sig
	}
	return &res, nil
}

// complete runs prompt on a fresh thread and returns the assistant's text.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	assistantID, err := c.resolveAssistant(ctx)
	if err != nil {
		return "", c.classify(ctx, "resolve assistant", err)
	}

	thread, err := c.backend.CreateThread(ctx)
	if err != nil {
		return "", c.classify(ctx, "create thread", err)
	}
	if _, err := c.backend.AddMessage(ctx, thread.ID, prompt); err != nil {
		return "", c.classify(ctx, "add message", err)
	}

	run, err := c.backend.CreateRun(ctx, thread.ID, assistantID)
	if err != nil {
		return "", c.classify(ctx, "create run", err)
	}
	slog.Info("generation run started",
		"assistant_id", assistantID,
		"thread_id", thread.ID,
		"run_id", run.ID,
	)

	run, err = c.await(ctx, thread.ID, run)
	if err != nil {
		return "", err
	}

	switch run.Status {
	case assistants.RunCompleted:
	case assistants.RunFailed:
		msg := "unknown error"
		if run.LastError != nil && run.LastError.Message != "" {
			msg = run.LastError.Message
		}
		return "", fmt.Errorf("%w: run %s: %s", ErrFailed, run.ID, msg)
	case assistants.RunExpired:
		return "", fmt.Errorf("%w: run %s expired on the backend", ErrTimeout, run.ID)
	default:
		return "", fmt.Errorf("%w: run %s ended with status %s", ErrFailed, run.ID, run.Status)
	}

	msgs, err := c.backend.ListMessages(ctx, thread.ID)
	if err != nil {
		return "", c.classify(ctx, "list messages", err)
	}
	for _, m := range msgs {
		if m.Role != "assistant" {
			continue
		}
		text, ok := m.FirstText()
		if !ok || strings.TrimSpace(text) == "" {
			break
		}
		return text, nil
	}
	return "", fmt.Errorf("%w: thread %s", ErrEmpty, thread.ID)
}

// await polls run until it leaves the queued/in_progress states. It stops
// polling as soon as ctx is done and asks the backend to cancel the run.
func (c *Client) await(ctx context.Context, threadID string, run *assistants.Run) (*assistants.Run, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for run.Status.Pending() {
		select {
		case <-ctx.Done():
			c.abandon(ctx, threadID, run.ID)
			return nil, fmt.Errorf("%w: run %s still %s: %w", ErrTimeout, run.ID, run.Status, ctx.Err())
		case <-ticker.C:
		}

		next, err := c.backend.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			if ctx.Err() != nil {
				c.abandon(ctx, threadID, run.ID)
			}
			return nil, c.classify(ctx, "retrieve run", err)
		}
		run = next
	}
	return run, nil
}

// abandon makes a best-effort attempt to cancel a run the caller gave up on.
// The thread is left for the backend to expire.
func (c *Client) abandon(ctx context.Context, threadID, runID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()

	if _, err := c.backend.CancelRun(ctx, threadID, runID); err != nil {
		slog.Warn("failed to cancel abandoned run",
			"thread_id", threadID,
			"run_id", runID,
			"error", err,
		)
		return
	}
	slog.Info("cancelled abandoned run", "thread_id", threadID, "run_id", runID)
}

// resolveAssistant returns a usable assistant ID, creating one when the
// registry has none or the stored one no longer exists.
func (c *Client) resolveAssistant(ctx context.Context) (string, error) {
	id, err := c.registry.Resolve(ctx)
	if err != nil {
		slog.Warn("assistant registry unavailable", "error", err)
	}

	if id != "" {
		_, err := c.backend.RetrieveAssistant(ctx, id)
		if err == nil {
			return id, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		slog.Warn("configured assistant not usable, creating a new one", "assistant_id", id, "error", err)
	}

	temp := c.cfg.Temperature
	a, err := c.backend.CreateAssistant(ctx, assistants.AssistantParams{
		Name:         assistantName,
		Instructions: Instructions(c.cfg.CompanyName, c.cfg.ProductTypes),
		Model:        c.cfg.Model,
		Temperature:  &temp,
	})
	if err != nil {
		return "", err
	}
	slog.Info("created assistant", "assistant_id", a.ID, "model", c.cfg.Model)

	// Store failures are logged, not returned.
	if err := c.registry.Store(ctx, a.ID); err != nil {
		slog.Warn("failed to persist assistant id", "assistant_id", a.ID, "error", err)
	}
	return a.ID, nil
}

// classify wraps a backend call error, reporting it as a timeout when the
// budget or the caller's context ran out.
func (c *Client) classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s: %w", ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrFailed, op, err)
}
