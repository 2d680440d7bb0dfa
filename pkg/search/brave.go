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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kadirpekel/scout/pkg/httpclient"
	"github.com/kadirpekel/scout/pkg/ratelimit"
)

const braveBaseURL = "https://api.search.brave.com/res/v1"

// Every Brave client sharing an API key shares one gate, so concurrent
// turns stay within the per-key quota.
var (
	braveGatesMu sync.Mutex
	braveGates   = map[string]*ratelimit.Limiter{}
)

func braveGateFor(apiKey string, perSecond int) (*ratelimit.Limiter, error) {
	braveGatesMu.Lock()
	defer braveGatesMu.Unlock()

	if g, ok := braveGates[apiKey]; ok {
		return g, nil
	}
	g, err := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Rule{
		Window: ratelimit.WindowSecond,
		Limit:  int64(perSecond),
	})
	if err != nil {
		return nil, err
	}
	braveGates[apiKey] = g
	return g, nil
}

// Brave queries the Brave Search web endpoint.
type Brave struct {
	apiKey  string
	baseURL string
	count   int
	gate    *ratelimit.Limiter
	http    *httpclient.Client
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// NewBrave creates a Brave client. An API key is required.
func NewBrave(cfg Config) (*Brave, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("API key is required for Brave search (set BRAVE_SEARCH_API_KEY)")
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = braveBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	perSecond := cfg.RateLimit
	if perSecond <= 0 {
		perSecond = 1
	}

	gate, err := braveGateFor(cfg.APIKey, perSecond)
	if err != nil {
		return nil, err
	}

	return &Brave{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		count:   countOrDefault(cfg.Count),
		gate:    gate,
		http: httpclient.New(
			httpclient.WithName("brave-search"),
			httpclient.WithTimeout(timeout),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithHeaderParser(httpclient.ParseBraveHeaders),
		),
	}, nil
}

func (b *Brave) Name() string { return ProviderBrave }

func (b *Brave) Search(ctx context.Context, query string) ([]Snippet, error) {
	if err := b.gate.Wait(ctx, b.apiKey); err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(b.count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/web/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to Brave: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Provider: ProviderBrave, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var payload braveResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	snippets := make([]Snippet, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		snippets = append(snippets, Snippet{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return limit(snippets, b.count), nil
}
