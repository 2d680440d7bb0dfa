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

package vector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/kadirpekel/scout/pkg/utils"
)

// ChromemConfig configures the embedded provider.
type ChromemConfig struct {
	// Path of the exported database file. Empty keeps the index in memory.
	Path string

	// Compress gzips the exported file.
	Compress bool
}

// ChromemProvider implements Provider with chromem-go. The whole database is
// held in memory and exported to a single file on Flush and Close.
type ChromemProvider struct {
	db       *chromem.DB
	path     string
	compress bool

	mu    sync.Mutex
	dirty bool
}

// NewChromemProvider opens the database at cfg.Path, or starts an empty one
// when the file does not exist yet.
func NewChromemProvider(cfg ChromemConfig) (*ChromemProvider, error) {
	db := chromem.NewDB()

	if cfg.Path != "" {
		if _, err := os.Stat(cfg.Path); err == nil {
			if err := db.ImportFromFile(cfg.Path, ""); err != nil {
				return nil, fmt.Errorf("failed to load vector index %s: %w", cfg.Path, err)
			}
			slog.Info("Loaded vector index", "path", cfg.Path, "collections", len(db.ListCollections()))
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat vector index %s: %w", cfg.Path, err)
		}
	}

	return &ChromemProvider{db: db, path: cfg.Path, compress: cfg.Compress}, nil
}

// Vectors are computed by the embedder package; chromem must never embed.
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("embedding function called but vectors should be pre-computed")
}

func (p *ChromemProvider) Upsert(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	col, err := p.db.GetOrCreateCollection(collection, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("failed to get/create collection %q: %w", collection, err)
	}

	// Documents are keyed by ID, so adding an existing ID replaces it.
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Content,
			Metadata:  r.Metadata,
			Embedding: r.Vector,
		}
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to upsert documents: %w", err)
	}

	p.mu.Lock()
	p.dirty = true
	p.mu.Unlock()
	return nil
}

func (p *ChromemProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	col := p.db.GetCollection(collection, noEmbedding)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	n := min(topK, col.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		out = append(out, Result{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		})
	}
	return out, nil
}

func (p *ChromemProvider) Count(_ context.Context, collection string) (int, error) {
	col := p.db.GetCollection(collection, noEmbedding)
	if col == nil {
		return 0, nil
	}
	return col.Count(), nil
}

func (p *ChromemProvider) DeleteSource(ctx context.Context, collection, source string) error {
	col := p.db.GetCollection(collection, noEmbedding)
	if col == nil {
		return nil
	}
	if err := col.Delete(ctx, map[string]string{MetaSource: source}, nil); err != nil {
		return fmt.Errorf("failed to delete documents of %s: %w", source, err)
	}

	p.mu.Lock()
	p.dirty = true
	p.mu.Unlock()
	return nil
}

func (p *ChromemProvider) Name() string {
	return "chromem"
}

// Flush exports the database to disk if anything changed since the last
// export.
func (p *ChromemProvider) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.path == "" || !p.dirty {
		return nil
	}
	if err := utils.EnsureParentDir(p.path); err != nil {
		return err
	}
	if err := p.db.ExportToFile(p.path, p.compress, ""); err != nil {
		return fmt.Errorf("failed to persist vector index: %w", err)
	}
	p.dirty = false
	slog.Debug("Persisted vector index", "path", p.path)
	return nil
}

func (p *ChromemProvider) Close() error {
	return p.Flush()
}

var _ Provider = (*ChromemProvider)(nil)
