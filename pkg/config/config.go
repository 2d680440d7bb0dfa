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

// Package config holds the configuration record for scout.
//
// A Config is decoded from YAML, defaulted and validated once, then treated
// as an immutable snapshot: reloads build a fresh Config instead of
// mutating the one in use.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kadirpekel/scout/pkg/observability"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the root configuration.
type Config struct {
	LLM           LLMConfig            `yaml:"llm"`
	Embedder      EmbedderConfig       `yaml:"embedder"`
	Vector        VectorConfig         `yaml:"vector"`
	Ingest        IngestConfig         `yaml:"ingest"`
	Retrieval     RetrievalConfig      `yaml:"retrieval"`
	Search        SearchConfig         `yaml:"search"`
	Prompts       PromptsConfig        `yaml:"prompts"`
	Session       SessionConfig        `yaml:"session"`
	Server        ServerConfig         `yaml:"server"`
	Observability observability.Config `yaml:"observability"`
	Logger        LoggerConfig         `yaml:"logger"`
}

// LLMConfig selects the chat model used by every gateway operation.
type LLMConfig struct {
	// Provider is one of openai, gemini, ollama.
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature *float64      `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`

	// MaxRetries applies to transport-level retries only. The default of
	// zero means every gateway call is attempted exactly once.
	MaxRetries int `yaml:"max_retries"`
}

// EmbedderConfig selects the embedding model for ingestion and queries.
type EmbedderConfig struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	Dimension int           `yaml:"dimension"`
	BatchSize int           `yaml:"batch_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

// VectorConfig selects the knowledge index backend.
type VectorConfig struct {
	// Provider is one of chromem, qdrant, pinecone.
	Provider   string `yaml:"provider"`
	Collection string `yaml:"collection"`

	// Path is the file chromem persists the index to.
	Path     string `yaml:"path"`
	Compress bool   `yaml:"compress"`

	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`

	// Namespace partitions a pinecone index.
	Namespace string `yaml:"namespace"`
}

// Ingestion modes for IngestConfig.OnStart.
const (
	IngestAuto   = "auto"
	IngestAlways = "always"
	IngestNever  = "never"
)

// IngestConfig describes the fixed document set the index is built from.
type IngestConfig struct {
	URLs         []string      `yaml:"urls"`
	Paths        []string      `yaml:"paths"`
	OnStart      string        `yaml:"on_start"`
	ChunkSize    int           `yaml:"chunk_size"`
	ChunkOverlap int           `yaml:"chunk_overlap"`
	Concurrency  int           `yaml:"concurrency"`
	MaxFileSize  int64         `yaml:"max_file_size"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// RetrievalConfig controls how many passages reach the review step.
type RetrievalConfig struct {
	TopK           int     `yaml:"top_k"`
	ScoreThreshold float64 `yaml:"score_threshold"`
}

// SearchConfig selects the web search fallback.
type SearchConfig struct {
	// Provider is one of brave, tavily, duckduckgo, none.
	Provider string        `yaml:"provider"`
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	Count    int           `yaml:"count"`
	Depth    string        `yaml:"depth"`
	Timeout  time.Duration `yaml:"timeout"`
	// RateLimit caps outbound calls per second per API key. Brave's free
	// plan allows one.
	RateLimit int `yaml:"rate_limit"`

	// MaxRetries defaults to zero: one request per search.
	MaxRetries int `yaml:"max_retries"`
}

// PromptsConfig overrides the built-in instruction prompts. Empty fields
// keep the defaults.
type PromptsConfig struct {
	Routing     string `yaml:"routing"`
	Keyword     string `yaml:"keyword"`
	Review      string `yaml:"review"`
	Answer      string `yaml:"answer"`
	Direct      string `yaml:"direct"`
	Placeholder string `yaml:"placeholder"`
}

// Session backends.
const (
	SessionMemory = "memory"
	SessionSQL    = "sql"
)

// SessionConfig controls conversation history storage.
type SessionConfig struct {
	Backend          string          `yaml:"backend"`
	MaxHistoryTokens int             `yaml:"max_history_tokens"`
	Database         *DatabaseConfig `yaml:"database"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	TurnTimeout  time.Duration `yaml:"turn_timeout"`
	CORSOrigins  []string      `yaml:"cors_origins"`
	// RateLimit caps /ask requests per minute per client. 0 disables it.
	RateLimit int `yaml:"rate_limit"`
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggerConfig is the config-file fallback for logging flags.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Format string `yaml:"format"`
}

// DefaultURLs are the posts indexed when no source is configured.
var DefaultURLs = []string{
	"https://lilianweng.github.io/posts/2023-06-23-agent/",
	"https://lilianweng.github.io/posts/2023-03-15-prompt-engineering/",
	"https://lilianweng.github.io/posts/2023-10-25-adv-attack-llm/",
}

// DefaultConfig returns a config that works with only OPENAI_API_KEY set.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	c.LLM.setDefaults()
	c.Embedder.setDefaults()
	c.Vector.setDefaults()
	c.Ingest.setDefaults()
	c.Retrieval.setDefaults()
	c.Search.setDefaults()
	c.Session.setDefaults()
	c.Server.setDefaults()
	c.Observability.SetDefaults()

	if c.Logger.Format == "" {
		c.Logger.Format = "simple"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
}

func (c *LLMConfig) setDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	switch c.Provider {
	case "openai":
		if c.Model == "" {
			c.Model = "gpt-4.1-nano"
		}
		if c.APIKey == "" {
			c.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "gemini":
		if c.Model == "" {
			c.Model = "gemini-2.5-flash"
		}
		if c.APIKey == "" {
			c.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	case "ollama":
		if c.Model == "" {
			c.Model = "llama3.2"
		}
		if c.BaseURL == "" {
			c.BaseURL = "http://localhost:11434"
		}
	}
	if c.Temperature == nil {
		t := 0.2
		c.Temperature = &t
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

func (c *EmbedderConfig) setDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	switch c.Provider {
	case "openai":
		if c.Model == "" {
			c.Model = "text-embedding-3-large"
		}
		if c.APIKey == "" {
			c.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "ollama":
		if c.Model == "" {
			c.Model = "nomic-embed-text"
		}
		if c.BaseURL == "" {
			c.BaseURL = "http://localhost:11434"
		}
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

func (c *VectorConfig) setDefaults() {
	if c.Provider == "" {
		c.Provider = "chromem"
	}
	if c.Collection == "" {
		c.Collection = "scout"
	}
	switch c.Provider {
	case "chromem":
		if c.Path == "" {
			c.Path = ".scout/index.gob"
		}
	case "qdrant":
		if c.Host == "" {
			c.Host = "localhost"
		}
		if c.Port == 0 {
			c.Port = 6334
		}
	}
}

func (c *IngestConfig) setDefaults() {
	if len(c.URLs) == 0 && len(c.Paths) == 0 {
		c.URLs = append([]string(nil), DefaultURLs...)
		if info, err := os.Stat("paper"); err == nil && info.IsDir() {
			c.Paths = []string{"paper"}
		}
	}
	if c.OnStart == "" {
		c.OnStart = IngestAuto
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 200
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = 50 << 20
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = 30 * time.Second
	}
}

func (c *RetrievalConfig) setDefaults() {
	if c.TopK == 0 {
		c.TopK = 4
	}
	if c.ScoreThreshold == 0 {
		c.ScoreThreshold = 0.6
	}
}

func (c *SearchConfig) setDefaults() {
	if c.Provider == "" {
		c.Provider = "brave"
	}
	if c.APIKey == "" {
		switch c.Provider {
		case "brave":
			c.APIKey = os.Getenv("BRAVE_SEARCH_API_KEY")
		case "tavily":
			c.APIKey = os.Getenv("TAVILY_API_KEY")
		}
	}
	if c.Count == 0 {
		c.Count = 5
	}
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
	if c.RateLimit == 0 {
		c.RateLimit = 1
	}
}

func (c *SessionConfig) setDefaults() {
	if c.Backend == "" {
		c.Backend = SessionMemory
	}
	if c.MaxHistoryTokens == 0 {
		c.MaxHistoryTokens = 4000
	}
	if c.Database != nil {
		c.Database.SetDefaults()
	}
}

func (c *ServerConfig) setDefaults() {
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 120 * time.Second
	}
	if c.TurnTimeout == 0 {
		c.TurnTimeout = 90 * time.Second
	}
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	add := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}

	add("llm", oneOf("provider", c.LLM.Provider, "openai", "gemini", "ollama"))
	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		add("llm", fmt.Errorf("api_key is required for %s", c.LLM.Provider))
	}
	if c.LLM.Temperature != nil && (*c.LLM.Temperature < 0 || *c.LLM.Temperature > 2) {
		add("llm", fmt.Errorf("temperature must be within [0, 2]"))
	}
	if c.LLM.MaxRetries < 0 {
		add("llm", fmt.Errorf("max_retries must be non-negative"))
	}

	add("embedder", oneOf("provider", c.Embedder.Provider, "openai", "ollama"))
	add("vector", oneOf("provider", c.Vector.Provider, "chromem", "qdrant", "pinecone"))
	if c.Vector.Provider == "pinecone" && c.Vector.APIKey == "" {
		add("vector", fmt.Errorf("api_key is required for pinecone"))
	}

	add("ingest", oneOf("on_start", c.Ingest.OnStart, IngestAuto, IngestAlways, IngestNever))
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		add("ingest", fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.Ingest.ChunkOverlap, c.Ingest.ChunkSize))
	}

	if c.Retrieval.TopK < 1 {
		add("retrieval", fmt.Errorf("top_k must be at least 1"))
	}
	if c.Retrieval.ScoreThreshold < 0 || c.Retrieval.ScoreThreshold > 1 {
		add("retrieval", fmt.Errorf("score_threshold must be within [0, 1]"))
	}

	add("search", oneOf("provider", c.Search.Provider, "brave", "tavily", "duckduckgo", "none"))
	if c.Search.RateLimit < 0 {
		add("search", fmt.Errorf("rate_limit must be non-negative"))
	}
	if c.Search.MaxRetries < 0 {
		add("search", fmt.Errorf("max_retries must be non-negative"))
	}

	add("session", oneOf("backend", c.Session.Backend, SessionMemory, SessionSQL))
	if c.Session.Backend == SessionSQL {
		if c.Session.Database == nil {
			add("session", fmt.Errorf("database is required for the sql backend"))
		} else {
			add("session.database", c.Session.Database.Validate())
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server", fmt.Errorf("port %d out of range", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		add("server", fmt.Errorf("rate_limit must be non-negative"))
	}

	add("observability", c.Observability.Validate())

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (valid: %s)", field, value, strings.Join(allowed, ", "))
}
