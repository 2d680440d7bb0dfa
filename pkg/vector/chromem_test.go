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
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records() []Record {
	return []Record{
		{ID: "a", Content: "about cats", Vector: []float32{1, 0, 0}, Metadata: map[string]string{MetaSource: "cats.md"}},
		{ID: "b", Content: "about dogs", Vector: []float32{0, 1, 0}, Metadata: map[string]string{MetaSource: "dogs.md"}},
		{ID: "c", Content: "cats and dogs", Vector: []float32{0.7, 0.7, 0}},
	}
}

func TestChromem_SearchOrdersByScore(t *testing.T) {
	ctx := context.Background()
	p, err := NewChromemProvider(ChromemConfig{})
	require.NoError(t, err)

	require.NoError(t, p.Upsert(ctx, "kb", records()))

	results, err := p.Search(ctx, "kb", []float32{1, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Equal(t, "cats.md", results[0].Metadata[MetaSource])
}

func TestChromem_TopKLargerThanCollection(t *testing.T) {
	ctx := context.Background()
	p, err := NewChromemProvider(ChromemConfig{})
	require.NoError(t, err)
	require.NoError(t, p.Upsert(ctx, "kb", records()[:1]))

	results, err := p.Search(ctx, "kb", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChromem_MissingCollection(t *testing.T) {
	p, err := NewChromemProvider(ChromemConfig{})
	require.NoError(t, err)

	_, err = p.Search(context.Background(), "nope", []float32{1}, 4)
	assert.True(t, errors.Is(err, ErrCollectionNotFound))

	n, err := p.Count(context.Background(), "nope")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChromem_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p, err := NewChromemProvider(ChromemConfig{})
	require.NoError(t, err)

	require.NoError(t, p.Upsert(ctx, "kb", records()))
	require.NoError(t, p.Upsert(ctx, "kb", records()))

	n, err := p.Count(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestChromem_DeleteSource(t *testing.T) {
	ctx := context.Background()
	p, err := NewChromemProvider(ChromemConfig{})
	require.NoError(t, err)
	require.NoError(t, p.Upsert(ctx, "kb", records()))

	require.NoError(t, p.DeleteSource(ctx, "kb", "cats.md"))

	n, err := p.Count(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err := p.Search(ctx, "kb", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "a", r.ID)
	}

	assert.NoError(t, p.DeleteSource(ctx, "nope", "cats.md"))
}

func TestChromem_PersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "index.gob")

	p, err := NewChromemProvider(ChromemConfig{Path: path, Compress: true})
	require.NoError(t, err)
	require.NoError(t, p.Upsert(ctx, "kb", records()))
	require.NoError(t, Flush(p))
	require.NoError(t, p.Close())

	reopened, err := NewChromemProvider(ChromemConfig{Path: path})
	require.NoError(t, err)
	n, err := reopened.Count(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	results, err := reopened.Search(ctx, "kb", []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "about dogs", results[0].Content)
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Type: "milvus"})
	assert.Error(t, err)
}
