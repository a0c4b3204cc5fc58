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

// Package assistants is a small REST client for the assistants, threads and
// runs endpoints of the OpenAI API (Assistants v2).
package assistants

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// ErrNotFound is matched by APIErrors for 404 responses.
var ErrNotFound = errors.New("assistants: not found")

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("assistants API returned HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("assistants API returned HTTP %d", e.StatusCode)
}

// Unwrap maps 404 responses to ErrNotFound.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Config configures the client.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Client calls the assistants API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates an assistants API client.
func NewClient(cfg Config) *Client {
	c := &Client{
		httpClient: cfg.HTTPClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	return c
}

// RetrieveAssistant fetches an assistant by ID.
func (c *Client) RetrieveAssistant(ctx context.Context, id string) (*Assistant, error) {
	var a Assistant
	if err := c.do(ctx, http.MethodGet, "/assistants/"+url.PathEscape(id), nil, &a); err != nil {
		return nil, fmt.Errorf("retrieve assistant: %w", err)
	}
	return &a, nil
}

// CreateAssistant creates a new assistant.
func (c *Client) CreateAssistant(ctx context.Context, p AssistantParams) (*Assistant, error) {
	var a Assistant
	if err := c.do(ctx, http.MethodPost, "/assistants", p, &a); err != nil {
		return nil, fmt.Errorf("create assistant: %w", err)
	}
	return &a, nil
}

// CreateThread starts an empty conversation thread.
func (c *Client) CreateThread(ctx context.Context) (*Thread, error) {
	var t Thread
	if err := c.do(ctx, http.MethodPost, "/threads", struct{}{}, &t); err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	return &t, nil
}

// AddMessage posts a user message to a thread.
func (c *Client) AddMessage(ctx context.Context, threadID, content string) (*Message, error) {
	body := map[string]string{"role": "user", "content": content}
	var m Message
	if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/messages", body, &m); err != nil {
		return nil, fmt.Errorf("add message: %w", err)
	}
	return &m, nil
}

// CreateRun starts the assistant on a thread.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error) {
	body := map[string]string{"assistant_id": assistantID}
	var r Run
	if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/runs", body, &r); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return &r, nil
}

// RetrieveRun fetches the current state of a run.
func (c *Client) RetrieveRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var r Run
	path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID)
	if err := c.do(ctx, http.MethodGet, path, nil, &r); err != nil {
		return nil, fmt.Errorf("retrieve run: %w", err)
	}
	return &r, nil
}

// CancelRun asks the backend to stop a run that has not finished.
func (c *Client) CancelRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var r Run
	path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID) + "/cancel"
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &r); err != nil {
		return nil, fmt.Errorf("cancel run: %w", err)
	}
	return &r, nil
}

// ListMessages returns a thread's messages, newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	var list struct {
		Data []Message `json:"data"`
	}
	path := "/threads/" + url.PathEscape(threadID) + "/messages?order=desc&limit=20"
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return list.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(data, &envelope)

	return &APIError{
		StatusCode: resp.StatusCode,
		Type:       envelope.Error.Type,
		Code:       envelope.Error.Code,
		Message:    envelope.Error.Message,
	}
}
