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

package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/kadirpekel/scout/pkg/embedder"
	"github.com/kadirpekel/scout/pkg/vector"
)

// Retrieval defaults.
const (
	DefaultTopK           = 4
	DefaultScoreThreshold = 0.6
)

// Passage is one retrieved chunk.
type Passage struct {
	Content string
	Source  string
	Score   float32
}

// RetrieverConfig controls result cutoffs.
type RetrieverConfig struct {
	Collection     string
	TopK           int
	ScoreThreshold float64
}

// KnowledgeRetriever answers similarity queries over the ingested corpus.
// It only reads the index and is safe for concurrent use.
type KnowledgeRetriever struct {
	embedder   embedder.Embedder
	store      vector.Provider
	collection string
	topK       int
	threshold  float32
}

func NewRetriever(emb embedder.Embedder, store vector.Provider, cfg RetrieverConfig) *KnowledgeRetriever {
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &KnowledgeRetriever{
		embedder:   emb,
		store:      store,
		collection: cfg.Collection,
		topK:       topK,
		threshold:  float32(cfg.ScoreThreshold),
	}
}

// Retrieve returns up to topK passages scoring at least the threshold, best
// first. An empty result is normal. Errors mean the index or embedder is
// unusable and are not worth degrading around.
func (r *KnowledgeRetriever) Retrieve(ctx context.Context, query string) ([]Passage, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := r.store.Search(ctx, r.collection, vec, r.topK)
	if errors.Is(err, vector.ErrCollectionNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrIndexNotReady, err)
	}
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	passages := make([]Passage, 0, len(results))
	for _, res := range results {
		if res.Score < r.threshold {
			continue
		}
		passages = append(passages, Passage{
			Content: res.Content,
			Source:  res.Metadata[vector.MetaSource],
			Score:   res.Score,
		})
		if len(passages) == r.topK {
			break
		}
	}
	return passages, nil
}

// Ready returns ErrIndexNotReady when the collection holds no passages.
func (r *KnowledgeRetriever) Ready(ctx context.Context) error {
	n, err := r.store.Count(ctx, r.collection)
	if err != nil {
		return fmt.Errorf("count index: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: collection %q is empty, run `scout ingest`", ErrIndexNotReady, r.collection)
	}
	return nil
}
