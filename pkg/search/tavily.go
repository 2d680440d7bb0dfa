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

package search

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
)

const tavilyBaseURL = "https://api.tavily.com"

// Tavily calls the Tavily search API. Depth is basic or advanced.
type Tavily struct {
	apiKey  string
	baseURL string
	depth   string
	count   int
	http    *httpclient.Client
}

type tavilyRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// NewTavily creates a Tavily client. An API key is required.
func NewTavily(cfg Config) (*Tavily, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("API key is required for Tavily search (set TAVILY_API_KEY)")
	}

	depth := cfg.Depth
	if depth == "" {
		depth = "basic"
	}
	if depth != "basic" && depth != "advanced" {
		return nil, fmt.Errorf("invalid Tavily depth %q (valid: basic, advanced)", depth)
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = tavilyBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Tavily{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		depth:   depth,
		count:   countOrDefault(cfg.Count),
		http: httpclient.New(
			httpclient.WithName("tavily-search"),
			httpclient.WithTimeout(timeout),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithHeaderParser(httpclient.ParseRetryAfterHeader),
		),
	}, nil
}

func (t *Tavily) Name() string { return ProviderTavily }

func (t *Tavily) Search(ctx context.Context, query string) ([]Snippet, error) {
	reqBody, err := json.Marshal(tavilyRequest{Query: query, SearchDepth: t.depth, MaxResults: t.count})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to Tavily: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Provider: ProviderTavily, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var payload tavilyResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	snippets := make([]Snippet, 0, len(payload.Results))
	for _, r := range payload.Results {
		snippets = append(snippets, Snippet{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return limit(snippets, t.count), nil
}
