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
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnippet_Document(t *testing.T) {
	s := Snippet{Title: "Tokyo", URL: "https://example.com/tokyo", Snippet: "About 14 million people."}
	assert.Equal(t, "Tokyo\nAbout 14 million people.\nSource: https://example.com/tokyo", s.Document())
	assert.Equal(t, []string{s.Document()}, Documents([]Snippet{s}))
	assert.Empty(t, Documents(nil))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  bool
	}{
		{"brave", Config{Provider: "brave", APIKey: "k-new-brave"}, ProviderBrave, false},
		{"brave without key", Config{Provider: "brave"}, "", true},
		{"tavily", Config{Provider: "tavily", APIKey: "k"}, ProviderTavily, false},
		{"tavily bad depth", Config{Provider: "tavily", APIKey: "k", Depth: "deep"}, "", true},
		{"duckduckgo", Config{Provider: "duckduckgo"}, ProviderDuckDuckGo, false},
		{"none", Config{Provider: "none"}, ProviderNone, false},
		{"unknown", Config{Provider: "bing"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, s.Name())
		})
	}
}

func TestDisabled(t *testing.T) {
	snips, err := Disabled{}.Search(context.Background(), "anything")
	assert.NoError(t, err)
	assert.Empty(t, snips)
}

func TestBrave_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/web/search", r.URL.Path)
		assert.Equal(t, "tokyo population", r.URL.Query().Get("q"))
		assert.Equal(t, "2", r.URL.Query().Get("count"))
		assert.Equal(t, "k-brave-search", r.Header.Get("X-Subscription-Token"))
		_, _ = w.Write([]byte(`{"web":{"results":[
			{"title":"Tokyo","url":"https://a.example","description":"Population 14M"},
			{"title":"Japan","url":"https://b.example","description":"Country"},
			{"title":"Extra","url":"https://c.example","description":"Dropped"}]}}`))
	}))
	defer srv.Close()

	b, err := NewBrave(Config{APIKey: "k-brave-search", BaseURL: srv.URL, Count: 2, RateLimit: 10})
	require.NoError(t, err)

	snips, err := b.Search(context.Background(), "tokyo population")
	require.NoError(t, err)
	require.Len(t, snips, 2)
	assert.Equal(t, Snippet{Title: "Tokyo", URL: "https://a.example", Snippet: "Population 14M"}, snips[0])
}

func TestBrave_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	b, err := NewBrave(Config{APIKey: "k-brave-error", BaseURL: srv.URL, RateLimit: 10})
	require.NoError(t, err)

	_, err = b.Search(context.Background(), "q")
	var serr *Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusUnauthorized, serr.StatusCode)
	assert.Equal(t, ProviderBrave, serr.Provider)
}

func TestSearch_ServerErrorIsOneRequest(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		build    func(baseURL string) (Searcher, error)
	}{
		{"brave", ProviderBrave, func(u string) (Searcher, error) {
			return NewBrave(Config{APIKey: "k-brave-5xx", BaseURL: u, RateLimit: 10})
		}},
		{"tavily", ProviderTavily, func(u string) (Searcher, error) {
			return NewTavily(Config{APIKey: "tv-5xx", BaseURL: u})
		}},
		{"duckduckgo", ProviderDuckDuckGo, func(u string) (Searcher, error) {
			return NewDuckDuckGo(Config{BaseURL: u, RateLimit: 10}), nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if hits.Add(1) == 1 {
					http.Error(w, "upstream down", http.StatusInternalServerError)
					return
				}
				_, _ = w.Write([]byte(`{}`))
			}))
			defer srv.Close()

			s, err := tt.build(srv.URL)
			require.NoError(t, err)

			_, err = s.Search(context.Background(), "tokyo")
			var serr *Error
			require.True(t, errors.As(err, &serr), "got %v", err)
			assert.Equal(t, http.StatusInternalServerError, serr.StatusCode)
			assert.Equal(t, tt.provider, serr.Provider)
			assert.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestBrave_GateIsSharedPerKey(t *testing.T) {
	a, err := NewBrave(Config{APIKey: "k-brave-shared", BaseURL: "http://unused"})
	require.NoError(t, err)
	b, err := NewBrave(Config{APIKey: "k-brave-shared", BaseURL: "http://unused"})
	require.NoError(t, err)
	c, err := NewBrave(Config{APIKey: "k-brave-other", BaseURL: "http://unused"})
	require.NoError(t, err)

	assert.Same(t, a.gate, b.gate)
	assert.NotSame(t, a.gate, c.gate)
}

func TestBrave_CancelledWhileGated(t *testing.T) {
	b, err := NewBrave(Config{APIKey: "k-brave-gated", BaseURL: "http://unused", RateLimit: 1})
	require.NoError(t, err)

	// Exhaust this second's quota.
	require.NoError(t, b.gate.Wait(context.Background(), b.apiKey))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Search(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTavily_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer tv-key", r.Header.Get("Authorization"))

		var req tavilyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llm agents", req.Query)
		assert.Equal(t, "advanced", req.SearchDepth)
		assert.Equal(t, DefaultCount, req.MaxResults)

		_, _ = w.Write([]byte(`{"results":[{"title":"Agents","url":"https://t.example","content":"Planning and memory."}]}`))
	}))
	defer srv.Close()

	tv, err := NewTavily(Config{APIKey: "tv-key", BaseURL: srv.URL, Depth: "advanced"})
	require.NoError(t, err)

	snips, err := tv.Search(context.Background(), "llm agents")
	require.NoError(t, err)
	require.Len(t, snips, 1)
	assert.Equal(t, "Planning and memory.", snips[0].Snippet)
}

const liteHTML = `<html><body><table>
<tr><td><a rel="nofollow" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fen.wikipedia.org%2Fwiki%2FTokyo&amp;rut=x" class="result-link">Tokyo - <b>Wikipedia</b></a></td></tr>
<tr><td class="result-snippet">Tokyo is the   capital of Japan.</td></tr>
<tr><td><a href="https://www.metro.tokyo.lg.jp/" class="result-link">Tokyo Metropolitan Government</a></td></tr>
<tr><td class="result-snippet">Official site.</td></tr>
</table></body></html>`

func TestDuckDuckGo_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/lite/", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "tokyo", r.PostForm.Get("q"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(liteHTML))
	}))
	defer srv.Close()

	d := NewDuckDuckGo(Config{BaseURL: srv.URL})
	snips, err := d.Search(context.Background(), "tokyo")
	require.NoError(t, err)
	require.Len(t, snips, 2)

	assert.Equal(t, Snippet{
		Title:   "Tokyo - Wikipedia",
		URL:     "https://en.wikipedia.org/wiki/Tokyo",
		Snippet: "Tokyo is the capital of Japan.",
	}, snips[0])
	assert.Equal(t, "https://www.metro.tokyo.lg.jp/", snips[1].URL)
	assert.True(t, strings.HasPrefix(snips[1].Document(), "Tokyo Metropolitan Government\nOfficial site."))
}

func TestDuckDuckGo_EmptyQuery(t *testing.T) {
	_, err := NewDuckDuckGo(Config{}).Search(context.Background(), "  ")
	assert.Error(t, err)
}
