// Copyright 2025 Kadir Pekel
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

// Package model defines the provider-neutral chat completion contract used by
// the gateway, plus JSON schema helpers for structured output.
package model

import (
	"context"
	"fmt"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of conversation passed to a model.
type Message struct {
	Role Role
	Text string
}

// Schema constrains the response to a JSON document. Definition is a JSON
// Schema object as produced by SchemaFor.
type Schema struct {
	Name       string
	Definition map[string]any
}

// Request is a single completion request.
type Request struct {
	// System is the instruction prompt.
	System   string
	Messages []Message

	// Schema, when set, asks the provider for JSON matching it.
	Schema *Schema
}

// Usage reports token accounting when the provider returns it.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Response is a completed generation.
type Response struct {
	Text         string
	FinishReason string
	Usage        Usage
}

// LLM is implemented by every chat provider.
type LLM interface {
	// Generate performs one non-streaming completion. It makes no retries
	// beyond what the provider's transport is configured for.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Name is the provider name, e.g. "openai".
	Name() string

	// Model is the model identifier requests are sent to.
	Model() string

	Close() error
}

// ProviderError is a non-2xx answer or an error object from a provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: HTTP %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
}
