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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kadirpekel/scout/pkg/httpclient"
)

// Ollama's runner crashes on concurrent embedding requests, so every
// OllamaEmbedder in the process shares one lock.
var ollamaEmbedMu sync.Mutex

// OllamaConfig configures the Ollama embeddings client.
type OllamaConfig struct {
	Model     string
	BaseURL   string
	Dimension int
	BatchSize int
	Timeout   time.Duration
}

type OllamaEmbedder struct {
	model     string
	baseURL   string
	dimension int
	batchSize int
	http      *httpclient.Client
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func NewOllama(cfg OllamaConfig) *OllamaEmbedder {
	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}
	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = 768
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 32
	}

	return &OllamaEmbedder{
		model:     model,
		baseURL:   baseURL,
		dimension: dimension,
		batchSize: batchSize,
		http: httpclient.New(
			httpclient.WithName("ollama-embeddings"),
			httpclient.WithTimeout(timeout),
			httpclient.WithMaxRetries(3),
			httpclient.WithBaseDelay(time.Second),
		),
	}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, e.batchSize) {
		vecs, err := e.embed(ctx, batch)
		if err != nil {
			return nil, err
		}
		results = append(results, vecs...)
	}
	return results, nil
}

func (e *OllamaEmbedder) embed(ctx context.Context, batch []string) ([][]float32, error) {
	ollamaEmbedMu.Lock()
	defer ollamaEmbedMu.Unlock()

	slog.Debug("Ollama embedding request", "model", e.model, "inputs", len(batch))

	reqBody, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: batch})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &Error{Provider: "ollama", StatusCode: resp.StatusCode, Message: string(body)}
	}

	var response ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Embeddings) != len(batch) {
		return nil, fmt.Errorf("expected %d embeddings from Ollama, got %d", len(batch), len(response.Embeddings))
	}
	return response.Embeddings, nil
}

func (e *OllamaEmbedder) Dimension() int { return e.dimension }
func (e *OllamaEmbedder) Model() string  { return e.model }
func (e *OllamaEmbedder) Close() error   { return nil }
