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
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/scout/pkg/embedder"
	"github.com/kadirpekel/scout/pkg/vector"
)

// IngestorConfig configures an Ingestor.
type IngestorConfig struct {
	Collection   string
	ChunkSize    int
	ChunkOverlap int
	Concurrency  int
	MaxFileSize  int64
	FetchTimeout time.Duration

	// Length measures chunks; nil counts runes.
	Length LengthFunc
}

// Ingestor loads sources, splits them into passages, embeds them and writes
// them to the vector store.
type Ingestor struct {
	embedder    embedder.Embedder
	store       vector.Provider
	collection  string
	splitter    *Splitter
	web         *WebLoader
	concurrency int
	maxFileSize int64
}

// Report summarizes one ingestion run.
type Report struct {
	Sources  int
	Chunks   int
	Failed   []*IngestError
	Duration time.Duration
}

func NewIngestor(emb embedder.Embedder, store vector.Provider, cfg IngestorConfig) (*Ingestor, error) {
	splitter, err := NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap, cfg.Length)
	if err != nil {
		return nil, err
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Ingestor{
		embedder:    emb,
		store:       store,
		collection:  cfg.Collection,
		splitter:    splitter,
		web:         NewWebLoader(cfg.FetchTimeout),
		concurrency: concurrency,
		maxFileSize: cfg.MaxFileSize,
	}, nil
}

// ChunkID is the stable identifier of the index-th chunk of source.
func ChunkID(source string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"#"+strconv.Itoa(index))).String()
}

// Ingest indexes every source. A source that fails is reported and skipped;
// Ingest itself fails only when nothing could be indexed or ctx ends.
func (in *Ingestor) Ingest(ctx context.Context, src Sources) (*Report, error) {
	start := time.Now()

	files, err := ExpandPaths(src.Paths, in.maxFileSize)
	if err != nil {
		return nil, fmt.Errorf("failed to expand paths: %w", err)
	}

	type job struct {
		source string
		load   func(context.Context) (Document, error)
	}
	var jobs []job
	for _, url := range src.URLs {
		jobs = append(jobs, job{source: url, load: func(ctx context.Context) (Document, error) {
			return in.web.Load(ctx, url)
		}})
	}
	for _, path := range files {
		jobs = append(jobs, job{source: path, load: func(ctx context.Context) (Document, error) {
			return ParseFile(ctx, path)
		}})
	}

	report := &Report{Sources: len(jobs)}
	if len(jobs) == 0 {
		return report, errors.New("no sources to ingest")
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)
	for _, j := range jobs {
		g.Go(func() error {
			n, ierr := in.ingestOne(gctx, j.source, j.load)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			mu.Lock()
			defer mu.Unlock()
			if ierr != nil {
				slog.Warn("Failed to ingest source", "source", j.source, "op", ierr.Op, "error", ierr.Err)
				report.Failed = append(report.Failed, ierr)
				return nil
			}
			slog.Info("Ingested source", "source", j.source, "chunks", n)
			report.Chunks += n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	if err := vector.Flush(in.store); err != nil {
		return report, err
	}
	report.Duration = time.Since(start)

	if report.Chunks == 0 {
		errs := make([]error, 0, len(report.Failed))
		for _, f := range report.Failed {
			errs = append(errs, f)
		}
		return report, fmt.Errorf("nothing was indexed: %w", errors.Join(errs...))
	}
	return report, nil
}

func (in *Ingestor) ingestOne(ctx context.Context, source string, load func(context.Context) (Document, error)) (int, *IngestError) {
	doc, err := load(ctx)
	if err != nil {
		return 0, &IngestError{Source: source, Op: "load", Err: err}
	}

	chunks := in.splitter.Split(doc.Content)
	if len(chunks) == 0 {
		return 0, &IngestError{Source: source, Op: "split", Err: errors.New("no text content")}
	}

	vectors, err := in.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, &IngestError{Source: source, Op: "embed", Err: err}
	}
	if len(vectors) != len(chunks) {
		return 0, &IngestError{Source: source, Op: "embed", Err: fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))}
	}

	records := make([]vector.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = vector.Record{
			ID:      ChunkID(source, i),
			Content: chunk,
			Vector:  vectors[i],
			Metadata: map[string]string{
				vector.MetaSource: source,
				vector.MetaTitle:  doc.Title,
				vector.MetaChunk:  strconv.Itoa(i),
			},
		}
	}
	// Drop the previous version first so a shorter document leaves no
	// trailing chunks behind.
	if err := in.store.DeleteSource(ctx, in.collection, source); err != nil {
		return 0, &IngestError{Source: source, Op: "store", Err: err}
	}
	if err := in.store.Upsert(ctx, in.collection, records); err != nil {
		return 0, &IngestError{Source: source, Op: "store", Err: err}
	}
	return len(chunks), nil
}
