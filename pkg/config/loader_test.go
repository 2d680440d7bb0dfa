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

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4.1-nano", cfg.LLM.Model)
	assert.InDelta(t, 0.2, *cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 0, cfg.LLM.MaxRetries)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedder.Model)
	assert.Equal(t, "chromem", cfg.Vector.Provider)
	assert.Equal(t, 4, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.6, cfg.Retrieval.ScoreThreshold, 1e-9)
	assert.Equal(t, 1000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 200, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, DefaultURLs, cfg.Ingest.URLs)
	assert.Equal(t, "brave", cfg.Search.Provider)
	assert.Equal(t, 5, cfg.Search.Count)
	assert.Equal(t, SessionMemory, cfg.Session.Backend)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("SCOUT_TEST_KEY", "from-env")

	cfg, err := Parse([]byte(`
llm:
  provider: gemini
  api_key: ${SCOUT_TEST_KEY}
  timeout: 5s
search:
  provider: none
server:
  port: ${SCOUT_TEST_PORT:-9090}
`))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestParse_JSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"llm": {"provider": "ollama"}, "retrieval": {"top_k": 2}}`))
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", cfg.LLM.Model)
	assert.Equal(t, 2, cfg.Retrieval.TopK)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown llm provider", "llm: {provider: bard, api_key: x}"},
		{"missing api key", "llm: {provider: gemini}"},
		{"overlap too large", "llm: {provider: ollama}\ningest: {chunk_size: 100, chunk_overlap: 100}"},
		{"threshold out of range", "llm: {provider: ollama}\nretrieval: {score_threshold: 1.5}"},
		{"sql without database", "llm: {provider: ollama}\nsession: {backend: sql}"},
		{"unknown search", "llm: {provider: ollama}\nsearch: {provider: bing}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", "")
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("llm: {provider: ollama, modle: typo}"))
	require.Error(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: ollama
session:
  backend: sql
  database:
    driver: sqlite
    database: sessions.db
`), 0o600))

	cfg, loader, err := LoadConfigFile(context.Background(), path)
	require.NoError(t, err)
	defer loader.Close()

	require.NotNil(t, cfg.Session.Database)
	assert.Equal(t, "sqlite3", cfg.Session.Database.DriverName())
	assert.Equal(t, "sessions.db", cfg.Session.Database.DSN())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "postgres",
			cfg:  DatabaseConfig{Driver: "postgres", Host: "db", Database: "scout", Username: "u", Password: "p"},
			want: "host=db port=5432 dbname=scout user=u password=p sslmode=disable",
		},
		{
			name: "mysql",
			cfg:  DatabaseConfig{Driver: "mysql", Host: "db", Database: "scout", Username: "u", Password: "p"},
			want: "u:p@tcp(db:3306)/scout?parseTime=true",
		},
		{
			name: "sqlite",
			cfg:  DatabaseConfig{Driver: "sqlite3", Database: "/tmp/s.db"},
			want: "/tmp/s.db",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.SetDefaults()
			require.NoError(t, tt.cfg.Validate())
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}
