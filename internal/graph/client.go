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

// Package graph provides a Microsoft Graph mailbox client for the delegated
// (signed-in user) endpoints: reading the current profile and sending mail.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is the Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// ErrUnauthorized is returned when Graph rejects the access token.
var ErrUnauthorized = errors.New("graph: access token rejected")

// APIError is a non-success Graph response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph API returned HTTP %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph API returned HTTP %d", e.StatusCode)
}

// Unwrap maps 401 responses to ErrUnauthorized.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Client calls Graph on behalf of a signed-in user.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Graph client. httpClient is the base transport; the
// bearer token is layered on per call. An empty baseURL uses DefaultBaseURL.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// Me returns the profile of the token's owner.
func (c *Client) Me(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/me?$select=id,displayName,mail,userPrincipalName", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.authorized(ctx, accessToken).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	profile, err := parseProfile(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	return profile, nil
}

// SendMail submits msg through /me/sendMail and saves it to Sent Items.
func (c *Client) SendMail(ctx context.Context, accessToken string, msg Message) error {
	payload, err := json.Marshal(buildSendMail(msg))
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/me/sendMail", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.authorized(ctx, accessToken).Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	// Graph answers 202 Accepted with an empty body.
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return parseError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// authorized wraps the base client with a static bearer token.
func (c *Client) authorized(ctx context.Context, accessToken string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
}
