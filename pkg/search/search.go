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

// Package search queries external web search APIs for the fallback branch
// of a turn. Each call is a single request: no pagination and no
// de-duplication.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider names accepted by New.
const (
	ProviderBrave      = "brave"
	ProviderTavily     = "tavily"
	ProviderDuckDuckGo = "duckduckgo"
	ProviderNone       = "none"
)

// DefaultCount is the number of snippets requested per query.
const DefaultCount = 5

// Snippet is one web search hit.
type Snippet struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Document renders the snippet the way it is appended to a turn's documents.
func (s Snippet) Document() string {
	return fmt.Sprintf("%s\n%s\nSource: %s", s.Title, s.Snippet, s.URL)
}

// Documents renders snippets in result order.
func Documents(snippets []Snippet) []string {
	docs := make([]string, 0, len(snippets))
	for _, s := range snippets {
		docs = append(docs, s.Document())
	}
	return docs
}

// Searcher runs one web query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Snippet, error)
	Name() string
}

// Error is a non-2xx response from a search API.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s search: HTTP %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s search: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Config selects and configures a provider.
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Count     int
	Depth     string
	Timeout   time.Duration
	RateLimit int

	// MaxRetries applies to transport-level retries. The default of zero
	// keeps every search a single request.
	MaxRetries int
}

// New builds the configured searcher. ProviderNone yields a searcher that
// always returns no snippets.
func New(cfg Config) (Searcher, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderBrave, "":
		return NewBrave(cfg)
	case ProviderTavily:
		return NewTavily(cfg)
	case ProviderDuckDuckGo:
		return NewDuckDuckGo(cfg), nil
	case ProviderNone:
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown search provider %q (valid: brave, tavily, duckduckgo, none)", cfg.Provider)
	}
}

// Disabled is the searcher used when web search is turned off.
type Disabled struct{}

func (Disabled) Search(context.Context, string) ([]Snippet, error) { return nil, nil }
func (Disabled) Name() string                                      { return ProviderNone }

func limit(snippets []Snippet, n int) []Snippet {
	if n > 0 && len(snippets) > n {
		return snippets[:n]
	}
	return snippets
}

func countOrDefault(n int) int {
	if n <= 0 {
		return DefaultCount
	}
	return n
}
