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

package assistants

// Assistant is a stored assistant configuration.
type Assistant struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Instructions string   `json:"instructions"`
	Model        string   `json:"model"`
	Temperature  *float64 `json:"temperature,omitempty"`
}

// AssistantParams creates an assistant.
type AssistantParams struct {
	Name         string   `json:"name,omitempty"`
	Instructions string   `json:"instructions"`
	Model        string   `json:"model"`
	Temperature  *float64 `json:"temperature,omitempty"`
}

// Thread is a conversation container.
type Thread struct {
	ID string `json:"id"`
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCancelled      RunStatus = "cancelled"
	RunFailed         RunStatus = "failed"
	RunCompleted      RunStatus = "completed"
	RunIncomplete     RunStatus = "incomplete"
	RunExpired        RunStatus = "expired"
)

// Pending reports whether the run is still waiting to finish.
func (s RunStatus) Pending() bool {
	return s == RunQueued || s == RunInProgress
}

// RunError describes why a run failed.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Run is one execution of an assistant on a thread.
type Run struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"thread_id"`
	AssistantID string    `json:"assistant_id"`
	Status      RunStatus `json:"status"`
	LastError   *RunError `json:"last_error"`
}

// Message is a thread message.
type Message struct {
	ID      string    `json:"id"`
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

// Content is one part of a message.
type Content struct {
	Type string `json:"type"`
	Text *Text  `json:"text,omitempty"`
}

// Text is a text content part.
type Text struct {
	Value string `json:"value"`
}

// FirstText returns the message's leading text part, if it has one.
func (m Message) FirstText() (string, bool) {
	if len(m.Content) == 0 || m.Content[0].Type != "text" || m.Content[0].Text == nil {
		return "", false
	}
	return m.Content[0].Text.Value, true
}
