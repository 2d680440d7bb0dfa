// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package openai implements model.LLM over the OpenAI Responses API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kadirpekel/scout/pkg/httpclient"
	"github.com/kadirpekel/scout/pkg/model"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4.1-nano"
	defaultTimeout = 60 * time.Second
)

// Config configures the client.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature *float64
	MaxTokens   int
	Timeout     time.Duration

	// MaxRetries is the number of transport retries on 429/5xx. Zero
	// disables them.
	MaxRetries int
}

// Client talks to /responses.
type Client struct {
	apiKey      string
	modelName   string
	baseURL     string
	temperature *float64
	maxTokens   int
	http        *httpclient.Client
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiKey:      cfg.APIKey,
		modelName:   modelName,
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		http: httpclient.New(
			httpclient.WithName("openai"),
			httpclient.WithTimeout(timeout),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
	}, nil
}

func (c *Client) Name() string  { return "openai" }
func (c *Client) Model() string { return c.modelName }
func (c *Client) Close() error  { return nil }

// Generate sends one request and returns the concatenated output text.
func (c *Client) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp responsesResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &model.ProviderError{Provider: "openai", StatusCode: resp.StatusCode, Message: truncate(string(data), 300)}
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || apiResp.Error != nil {
		pe := &model.ProviderError{Provider: "openai", StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if apiResp.Error != nil {
			pe.Code = apiResp.Error.Code
			pe.Message = apiResp.Error.Message
		}
		return nil, pe
	}

	return parseResponse(&apiResp)
}

func (c *Client) buildRequest(req *model.Request) *responsesRequest {
	apiReq := &responsesRequest{
		Model:        c.modelName,
		Instructions: req.System,
		Temperature:  c.temperature,
	}
	if c.maxTokens > 0 {
		apiReq.MaxOutputTokens = &c.maxTokens
	}

	for _, msg := range req.Messages {
		partType := "input_text"
		if msg.Role == model.RoleAssistant {
			partType = "output_text"
		}
		apiReq.Input = append(apiReq.Input, inputItem{
			Type:    "message",
			Role:    string(msg.Role),
			Content: []contentPart{{Type: partType, Text: msg.Text}},
		})
	}

	if req.Schema != nil {
		apiReq.Text = &textFormat{Format: &jsonSchemaFormat{
			Type:   "json_schema",
			Name:   req.Schema.Name,
			Strict: true,
			Schema: req.Schema.Definition,
		}}
	}
	return apiReq
}

func parseResponse(apiResp *responsesResponse) (*model.Response, error) {
	var text strings.Builder
	for _, item := range apiResp.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			switch part.Type {
			case "output_text":
				text.WriteString(part.Text)
			case "refusal":
				return nil, fmt.Errorf("model refused: %s", part.Refusal)
			}
		}
	}

	finish := apiResp.Status
	if apiResp.IncompleteDetails != nil && apiResp.IncompleteDetails.Reason != "" {
		finish = apiResp.IncompleteDetails.Reason
	}

	return &model.Response{
		Text:         text.String(),
		FinishReason: finish,
		Usage: model.Usage{
			InputTokens:  apiResp.Usage.InputTokens,
			OutputTokens: apiResp.Usage.OutputTokens,
			TotalTokens:  apiResp.Usage.TotalTokens,
		},
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ model.LLM = (*Client)(nil)

type responsesRequest struct {
	Model           string      `json:"model"`
	Input           []inputItem `json:"input,omitempty"`
	Instructions    string      `json:"instructions,omitempty"`
	MaxOutputTokens *int        `json:"max_output_tokens,omitempty"`
	Temperature     *float64    `json:"temperature,omitempty"`
	Text            *textFormat `json:"text,omitempty"`
}

type textFormat struct {
	Format *jsonSchemaFormat `json:"format,omitempty"`
}

type jsonSchemaFormat struct {
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type inputItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Refusal string `json:"refusal,omitempty"`
}

type responsesResponse struct {
	ID                string             `json:"id"`
	Status            string             `json:"status"`
	Error             *apiError          `json:"error,omitempty"`
	IncompleteDetails *incompleteDetails `json:"incomplete_details,omitempty"`
	Output            []outputItem       `json:"output"`
	Usage             apiUsage           `json:"usage"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
}

type incompleteDetails struct {
	Reason string `json:"reason,omitempty"`
}

type outputItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Content []contentPart `json:"content,omitempty"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}
