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

package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIEmbedder_BatchesAndOrders(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIEmbedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Zero(t, req.Dimensions)

		// Reply in reverse order; the client must restore input order.
		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		var data []item
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Embedding: []float32{float32(len(req.Input[i]))}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer server.Close()

	e, err := NewOpenAI(OpenAIConfig{APIKey: "sk-test", Model: "text-embedding-3-small", BaseURL: server.URL, BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 1536, e.Dimension())

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, [][]float32{{1}, {2}, {3}}, vecs)
}

func TestOpenAIEmbedder_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	e, err := NewOpenAI(OpenAIConfig{APIKey: "sk-bad", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "hello")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "bad key", apiErr.Message)
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{})
	assert.Error(t, err)
}

func TestOllamaEmbedder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		out := make([][]float32, len(req.Input))
		for i := range req.Input {
			out[i] = []float32{0.5, float32(i)}
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: out})
	}))
	defer server.Close()

	e := NewOllama(OllamaConfig{BaseURL: server.URL})
	assert.Equal(t, "nomic-embed-text", e.Model())
	assert.Equal(t, 768, e.Dimension())

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0}, vec)
}

func TestBatches(t *testing.T) {
	tests := []struct {
		n, size int
		want    []int
	}{
		{5, 2, []int{2, 2, 1}},
		{4, 4, []int{4}},
		{3, 0, []int{3}},
		{0, 2, nil},
	}
	for _, tt := range tests {
		texts := make([]string, tt.n)
		var got []int
		for _, b := range batches(texts, tt.size) {
			got = append(got, len(b))
		}
		assert.Equal(t, tt.want, got)
	}
}
