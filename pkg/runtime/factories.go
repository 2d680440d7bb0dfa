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

package runtime

import (
	"context"
	"fmt"

	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/embedder"
	"github.com/kadirpekel/scout/pkg/model"
	"github.com/kadirpekel/scout/pkg/model/gemini"
	"github.com/kadirpekel/scout/pkg/model/ollama"
	"github.com/kadirpekel/scout/pkg/model/openai"
	"github.com/kadirpekel/scout/pkg/search"
	"github.com/kadirpekel/scout/pkg/vector"
)

// NewLLM creates the chat model named by cfg.Provider.
func NewLLM(ctx context.Context, cfg config.LLMConfig) (model.LLM, error) {
	switch cfg.Provider {
	case "openai":
		return openai.New(openai.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
			MaxRetries:  cfg.MaxRetries,
		})

	case "gemini":
		return gemini.New(ctx, gemini.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})

	case "ollama":
		return ollama.New(ollama.Config{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			NumPredict:  cfg.MaxTokens,
			Timeout:     cfg.Timeout,
			MaxRetries:  cfg.MaxRetries,
		})

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// NewEmbedder creates the embedder named by cfg.Provider.
func NewEmbedder(cfg config.EmbedderConfig) (embedder.Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return embedder.NewOpenAI(embedder.OpenAIConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			Dimension: cfg.Dimension,
			BatchSize: cfg.BatchSize,
			Timeout:   cfg.Timeout,
		})

	case "ollama":
		return embedder.NewOllama(embedder.OllamaConfig{
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			Dimension: cfg.Dimension,
			BatchSize: cfg.BatchSize,
			Timeout:   cfg.Timeout,
		}), nil

	default:
		return nil, fmt.Errorf("unsupported embedder provider: %s", cfg.Provider)
	}
}

// NewVectorStore creates the knowledge index backend.
func NewVectorStore(cfg config.VectorConfig) (vector.Provider, error) {
	return vector.NewProvider(vector.ProviderConfig{
		Type: vector.ProviderType(cfg.Provider),
		Chromem: vector.ChromemConfig{
			Path:     cfg.Path,
			Compress: cfg.Compress,
		},
		Qdrant: vector.QdrantConfig{
			Host:   cfg.Host,
			Port:   cfg.Port,
			APIKey: cfg.APIKey,
			UseTLS: cfg.UseTLS,
		},
		Pinecone: vector.PineconeConfig{
			APIKey:    cfg.APIKey,
			Host:      cfg.Host,
			Namespace: cfg.Namespace,
		},
	})
}

// NewSearcher creates the web search fallback. The "none" provider yields
// a searcher that always returns no snippets.
func NewSearcher(cfg config.SearchConfig) (search.Searcher, error) {
	return search.New(search.Config{
		Provider:   cfg.Provider,
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Count:      cfg.Count,
		Depth:      cfg.Depth,
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		MaxRetries: cfg.MaxRetries,
	})
}
