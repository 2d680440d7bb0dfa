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
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/scout/pkg/vector"
)

// hashEmbedder maps each lower-cased word to one of 64 buckets, so texts
// sharing words have high cosine similarity.
type hashEmbedder struct {
	err error
}

func (h *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if h.err != nil {
		return nil, h.err
	}
	vec := make([]float32, 64)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(strings.Trim(w, ".,?!")))
		vec[f.Sum32()%64]++
	}
	vec[63] += 0.01
	return vec, nil
}

func (h *hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (h *hashEmbedder) Dimension() int { return 64 }
func (h *hashEmbedder) Model() string  { return "hash" }
func (h *hashEmbedder) Close() error   { return nil }

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.md", "beta")
	writeFile(t, dir, "a.txt", "alpha")
	writeFile(t, dir, "skip.go", "package x")
	writeFile(t, dir, "empty.txt", "")
	writeFile(t, dir, ".git/notes.txt", "hidden")
	writeFile(t, dir, "sub/c.txt", "gamma gamma gamma")

	files, err := ExpandPaths([]string{dir}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.md"),
	}, files, "size limit drops sub/c.txt")

	_, err = ExpandPaths([]string{filepath.Join(dir, "missing")}, 0)
	assert.Error(t, err)
}

func TestParseFile_Text(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.md", "\n# Title\n\nBody\n")
	doc, err := ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nBody", doc.Content)
	assert.Equal(t, "notes.md", doc.Title)

	_, err = ParseFile(context.Background(), writeFile(t, t.TempDir(), "x.bin", "x"))
	assert.Error(t, err)
}

func TestStripXMLTags(t *testing.T) {
	in := `<w:body><w:p><w:r><w:t>Fish &amp; chips</w:t></w:r></w:p><w:p><w:t>Second</w:t></w:p></w:body>`
	assert.Equal(t, "Fish & chips\n\nSecond\n\n", stripXMLTags(in))
}

func TestColumnLetter(t *testing.T) {
	assert.Equal(t, "A", columnLetter(0))
	assert.Equal(t, "Z", columnLetter(25))
	assert.Equal(t, "AA", columnLetter(26))
	assert.Equal(t, "AB", columnLetter(27))
}

const page = `<html><head><title> Agents </title><script>var x=1;</script></head>
<body><nav>Home | About</nav>
<article><h1>LLM Powered Agents</h1><p>Planning   and memory.</p><ul><li>Tools</li><li>Reflection</li></ul></article>
<footer>copyright</footer></body></html>`

func TestWebLoader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	doc, err := NewWebLoader(0).Load(context.Background(), server.URL+"/post")
	require.NoError(t, err)
	assert.Equal(t, "Agents", doc.Title)
	assert.Equal(t, "LLM Powered Agents\n\nPlanning and memory.\n\nTools\n\nReflection", doc.Content)

	_, err = NewWebLoader(0).Load(context.Background(), server.URL+"/missing")
	assert.Error(t, err)
}

func TestIngestAndRetrieve(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "cats.txt", "Cats purr and sleep all day.")
	writeFile(t, dir, "dogs.txt", "Dogs bark at the mail carrier.")
	writeFile(t, dir, "broken.pdf", "not a pdf")

	store, err := vector.NewChromemProvider(vector.ChromemConfig{Path: filepath.Join(dir, "index.gob")})
	require.NoError(t, err)

	emb := &hashEmbedder{}
	ingestor, err := NewIngestor(emb, store, IngestorConfig{Collection: "kb", ChunkSize: 200, ChunkOverlap: 20, Concurrency: 2})
	require.NoError(t, err)

	retriever := NewRetriever(emb, store, RetrieverConfig{Collection: "kb", TopK: 4, ScoreThreshold: 0.5})
	assert.ErrorIs(t, retriever.Ready(ctx), ErrIndexNotReady)
	_, err = retriever.Retrieve(ctx, "cats")
	assert.ErrorIs(t, err, ErrIndexNotReady)

	report, err := ingestor.Ingest(ctx, Sources{Paths: []string{dir}})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Sources)
	assert.Equal(t, 2, report.Chunks)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "load", report.Failed[0].Op)

	// Re-ingesting replaces passages by stable id.
	_, err = ingestor.Ingest(ctx, Sources{Paths: []string{dir}})
	require.NoError(t, err)
	n, err := store.Count(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, retriever.Ready(ctx))
	passages, err := retriever.Retrieve(ctx, "Cats purr and sleep")
	require.NoError(t, err)
	require.Len(t, passages, 1, "the dog passage falls under the threshold")
	assert.Contains(t, passages[0].Content, "Cats purr")
	assert.Equal(t, filepath.Join(dir, "cats.txt"), passages[0].Source)

	passages, err = retriever.Retrieve(ctx, "quantum chromodynamics")
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestIngest_ShrunkSourceDropsStaleChunks(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	long := strings.Repeat("Cats purr and sleep all day long. ", 12)
	notes := writeFile(t, dir, "notes.txt", long)
	writeFile(t, dir, "dogs.txt", "Dogs bark.")

	store, err := vector.NewChromemProvider(vector.ChromemConfig{})
	require.NoError(t, err)
	ingestor, err := NewIngestor(&hashEmbedder{}, store, IngestorConfig{Collection: "kb", ChunkSize: 60, ChunkOverlap: 0})
	require.NoError(t, err)

	first, err := ingestor.Ingest(ctx, Sources{Paths: []string{dir}})
	require.NoError(t, err)
	require.Greater(t, first.Chunks, 2)

	require.NoError(t, os.WriteFile(notes, []byte("Cats purr."), 0o644))
	second, err := ingestor.Ingest(ctx, Sources{Paths: []string{dir}})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Chunks)

	n, err := store.Count(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "chunks from the longer version must be gone")
}

func TestIngest_NothingIndexed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "some text")

	store, err := vector.NewChromemProvider(vector.ChromemConfig{})
	require.NoError(t, err)
	ingestor, err := NewIngestor(&hashEmbedder{err: errors.New("no key")}, store, IngestorConfig{Collection: "kb", ChunkSize: 100, ChunkOverlap: 0})
	require.NoError(t, err)

	report, err := ingestor.Ingest(context.Background(), Sources{Paths: []string{dir}})
	require.Error(t, err)
	require.Len(t, report.Failed, 1)
	var ierr *IngestError
	assert.True(t, errors.As(report.Failed[0], &ierr))
	assert.Equal(t, "embed", ierr.Op)
}

func TestRetriever_EmbedFailureIsFatal(t *testing.T) {
	store, err := vector.NewChromemProvider(vector.ChromemConfig{})
	require.NoError(t, err)
	r := NewRetriever(&hashEmbedder{err: errors.New("401")}, store, RetrieverConfig{Collection: "kb"})
	_, err = r.Retrieve(context.Background(), "q")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrIndexNotReady)
}

func TestChunkID_Stable(t *testing.T) {
	assert.Equal(t, ChunkID("a.txt", 0), ChunkID("a.txt", 0))
	assert.NotEqual(t, ChunkID("a.txt", 0), ChunkID("a.txt", 1))
}
