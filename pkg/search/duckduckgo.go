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
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/kadirpekel/scout/pkg/httpclient"
	"github.com/kadirpekel/scout/pkg/ratelimit"
)

const duckDuckGoBaseURL = "https://lite.duckduckgo.com"

const duckDuckGoUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// DuckDuckGo scrapes the lite HTML interface. It needs no API key.
type DuckDuckGo struct {
	baseURL string
	count   int
	gate    *ratelimit.Limiter
	http    *httpclient.Client
}

// NewDuckDuckGo creates a DuckDuckGo client.
func NewDuckDuckGo(cfg Config) *DuckDuckGo {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = duckDuckGoBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	perSecond := cfg.RateLimit
	if perSecond <= 0 {
		perSecond = 1
	}
	// A valid rule cannot fail.
	gate, _ := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Rule{Window: ratelimit.WindowSecond, Limit: int64(perSecond)})

	return &DuckDuckGo{
		baseURL: baseURL,
		count:   countOrDefault(cfg.Count),
		gate:    gate,
		http: httpclient.New(
			httpclient.WithName("duckduckgo-search"),
			httpclient.WithTimeout(timeout),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithHeaderParser(httpclient.ParseRetryAfterHeader),
		),
	}
}

func (d *DuckDuckGo) Name() string { return ProviderDuckDuckGo }

func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Snippet, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if err := d.gate.Wait(ctx, ProviderDuckDuckGo); err != nil {
		return nil, fmt.Errorf("duckduckgo search: %w", err)
	}

	form := url.Values{}
	form.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/lite/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", duckDuckGoUserAgent)

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to DuckDuckGo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Provider: ProviderDuckDuckGo, StatusCode: resp.StatusCode}
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return limit(parseLiteResults(doc), d.count), nil
}

// parseLiteResults pairs result-link anchors with result-snippet cells in
// document order.
func parseLiteResults(doc *html.Node) []Snippet {
	var links []Snippet
	var snippets []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result-link"):
				href := resolveLink(attr(n, "href"))
				title := collapse(textOf(n))
				if href != "" && title != "" {
					links = append(links, Snippet{Title: title, URL: href})
				}
				return
			case n.Data == "td" && hasClass(n, "result-snippet"):
				snippets = append(snippets, collapse(textOf(n)))
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for i := range links {
		if i < len(snippets) {
			links[i].Snippet = snippets[i]
		}
	}
	return links
}

// resolveLink unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveLink(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
