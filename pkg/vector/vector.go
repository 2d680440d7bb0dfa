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

// Package vector stores passage embeddings and answers similarity queries.
//
// chromem is the default: an embedded, file-persisted index that needs no
// external service. qdrant and pinecone are available for shared indexes.
package vector

import (
	"context"
	"errors"
)

// Metadata keys written for every passage.
const (
	MetaSource = "source"
	MetaChunk  = "chunk"
	MetaTitle  = "title"
)

// ErrCollectionNotFound is returned by Search and Count on a collection that
// was never written to.
var ErrCollectionNotFound = errors.New("collection not found")

// Record is one passage to index.
type Record struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]string
}

// Result is one similarity match. Score is cosine similarity, higher is
// closer.
type Result struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]string
}

// Provider is a vector index. Implementations are safe for concurrent use.
type Provider interface {
	// Upsert inserts records, replacing any with the same ID.
	Upsert(ctx context.Context, collection string, records []Record) error

	// Search returns up to topK matches ordered by descending score.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)

	// Count returns the number of records in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// DeleteSource removes every record whose MetaSource equals source. A
	// missing collection has nothing to delete.
	DeleteSource(ctx context.Context, collection, source string) error

	Name() string

	// Close flushes pending state and releases connections.
	Close() error
}
