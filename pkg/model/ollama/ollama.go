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

// Package ollama implements model.LLM against a local Ollama server's
// /api/chat endpoint.
package ollama

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
	defaultBaseURL   = "http://localhost:11434"
	defaultModel     = "llama3.2"
	defaultTimeout   = 300 * time.Second // first request loads the model
	defaultKeepAlive = "5m"
)

// Config configures the client.
type Config struct {
	BaseURL     string
	Model       string
	Temperature *float64
	NumPredict  int
	Timeout     time.Duration
	KeepAlive   string
	MaxRetries  int
}

// Client talks to Ollama.
type Client struct {
	baseURL     string
	modelName   string
	temperature *float64
	numPredict  int
	keepAlive   string
	http        *httpclient.Client
}

// New creates a client. No API key is needed.
func New(cfg Config) (*Client, error) {
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
	keepAlive := cfg.KeepAlive
	if keepAlive == "" {
		keepAlive = defaultKeepAlive
	}

	return &Client{
		baseURL:     baseURL,
		modelName:   modelName,
		temperature: cfg.Temperature,
		numPredict:  cfg.NumPredict,
		keepAlive:   keepAlive,
		http: httpclient.New(
			httpclient.WithName("ollama"),
			httpclient.WithTimeout(timeout),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithHeaderParser(httpclient.ParseRetryAfterHeader),
		),
	}, nil
}

func (c *Client) Name() string  { return "ollama" }
func (c *Client) Model() string { return c.modelName }
func (c *Client) Close() error  { return nil }

// Generate performs a non-streaming chat call. Structured requests pass the
// schema through Ollama's format field.
func (c *Client) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return nil, &model.ProviderError{Provider: "ollama", StatusCode: resp.StatusCode, Message: msg}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(data, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	out := &model.Response{
		FinishReason: chatResp.DoneReason,
		Usage: model.Usage{
			InputTokens:  chatResp.PromptEvalCount,
			OutputTokens: chatResp.EvalCount,
			TotalTokens:  chatResp.PromptEvalCount + chatResp.EvalCount,
		},
	}
	if chatResp.Message != nil {
		out.Text = chatResp.Message.Content
	}
	return out, nil
}

func (c *Client) buildRequest(req *model.Request) *chatRequest {
	apiReq := &chatRequest{
		Model:     c.modelName,
		Stream:    false,
		KeepAlive: c.keepAlive,
	}

	if req.System != "" {
		apiReq.Messages = append(apiReq.Messages, &chatMessage{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, &chatMessage{Role: string(msg.Role), Content: msg.Text})
	}

	options := map[string]any{}
	if c.temperature != nil {
		options["temperature"] = *c.temperature
	}
	if c.numPredict > 0 {
		options["num_predict"] = c.numPredict
	}
	if len(options) > 0 {
		apiReq.Options = options
	}

	if req.Schema != nil {
		apiReq.Format = req.Schema.Definition
	}
	return apiReq
}

var _ model.LLM = (*Client)(nil)

type chatRequest struct {
	Model     string         `json:"model"`
	Messages  []*chatMessage `json:"messages"`
	Format    any            `json:"format,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
	Stream    bool           `json:"stream"`
	KeepAlive string         `json:"keep_alive,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model           string       `json:"model"`
	Message         *chatMessage `json:"message,omitempty"`
	Done            bool         `json:"done"`
	DoneReason      string       `json:"done_reason,omitempty"`
	PromptEvalCount int          `json:"prompt_eval_count,omitempty"`
	EvalCount       int          `json:"eval_count,omitempty"`
}
