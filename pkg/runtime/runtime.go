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

// Package runtime assembles a scout instance from its configuration: the
// model, knowledge index, web search, session store and orchestrator. The
// CLI and the HTTP server both drive turns through a Runtime.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/kadirpekel/scout/pkg/agent"
	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/embedder"
	"github.com/kadirpekel/scout/pkg/gateway"
	"github.com/kadirpekel/scout/pkg/model"
	"github.com/kadirpekel/scout/pkg/observability"
	"github.com/kadirpekel/scout/pkg/rag"
	"github.com/kadirpekel/scout/pkg/search"
	"github.com/kadirpekel/scout/pkg/session"
	"github.com/kadirpekel/scout/pkg/utils"
	"github.com/kadirpekel/scout/pkg/vector"
)

var (
	// ErrEmptyQuestion is returned by Ask for a blank question.
	ErrEmptyQuestion = errors.New("question is required")

	// ErrInvalidSessionID is returned by Ask and ClearSession for an id
	// that cannot be used as a session key.
	ErrInvalidSessionID = errors.New("invalid session id")
)

// Answer is the result of one turn.
type Answer struct {
	Answer    string          `json:"answer"`
	SessionID string          `json:"session_id"`
	Route     string          `json:"route,omitempty"`
	Keyword   string          `json:"keyword,omitempty"`
	Documents []string        `json:"documents"`
	Trace     []string        `json:"trace"`
	Outcome   string          `json:"outcome"`
	Failures  []agent.Failure `json:"failures,omitempty"`
}

// snapshot is everything a turn reads that a config reload may replace.
// A turn loads it once and keeps it until it finishes.
type snapshot struct {
	prompts          gateway.Prompts
	retriever        *rag.KnowledgeRetriever
	orchestrator     *agent.Orchestrator
	maxHistoryTokens int
}

// Runtime owns the long-lived components. It is safe for concurrent use.
type Runtime struct {
	cfg *config.Config

	llm      model.LLM
	embedder embedder.Embedder
	store    vector.Provider
	searcher search.Searcher
	sessions session.Store
	counter  *utils.TokenCounter
	gateway  *gateway.Gateway
	ingestor *rag.Ingestor
	pool     *config.DBPool
	obs      *observability.Manager
	version  string

	current atomic.Pointer[snapshot]
}

// Option overrides a component that New would otherwise build from config.
type Option func(*Runtime)

// WithLLM uses llm instead of the configured provider.
func WithLLM(llm model.LLM) Option {
	return func(r *Runtime) { r.llm = llm }
}

// WithEmbedder uses emb instead of the configured provider.
func WithEmbedder(emb embedder.Embedder) Option {
	return func(r *Runtime) { r.embedder = emb }
}

// WithVectorStore uses store instead of the configured provider.
func WithVectorStore(store vector.Provider) Option {
	return func(r *Runtime) { r.store = store }
}

// WithSearcher uses s instead of the configured provider.
func WithSearcher(s search.Searcher) Option {
	return func(r *Runtime) { r.searcher = s }
}

// WithSessionStore uses s instead of the configured backend.
func WithSessionStore(s session.Store) Option {
	return func(r *Runtime) { r.sessions = s }
}

// WithTokenCounter sets the counter used for history trimming and chunk
// length.
func WithTokenCounter(tc *utils.TokenCounter) Option {
	return func(r *Runtime) { r.counter = tc }
}

// WithVersion sets the service version reported to the tracer.
func WithVersion(v string) Option {
	return func(r *Runtime) { r.version = v }
}

// New builds a runtime. Components not supplied through options are
// created from cfg; on error everything built so far is closed.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	r := &Runtime{cfg: cfg, pool: config.NewDBPool()}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.build(ctx); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Runtime) build(ctx context.Context) error {
	var err error

	r.obs = observability.NewManager(r.cfg.Observability)
	if err := r.obs.Initialize(ctx, r.version); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}

	if r.llm == nil {
		if r.llm, err = NewLLM(ctx, r.cfg.LLM); err != nil {
			return fmt.Errorf("failed to create llm: %w", err)
		}
	}
	if r.embedder == nil {
		if r.embedder, err = NewEmbedder(r.cfg.Embedder); err != nil {
			return fmt.Errorf("failed to create embedder: %w", err)
		}
	}
	if r.store == nil {
		if r.store, err = NewVectorStore(r.cfg.Vector); err != nil {
			return fmt.Errorf("failed to create vector store: %w", err)
		}
	}
	if r.searcher == nil {
		if r.searcher, err = NewSearcher(r.cfg.Search); err != nil {
			slog.Warn("Web search disabled", "provider", r.cfg.Search.Provider, "error", err)
			r.searcher = search.Disabled{}
		}
	}
	if r.sessions == nil {
		if r.sessions, err = session.New(ctx, r.cfg.Session, r.pool); err != nil {
			return fmt.Errorf("failed to create session store: %w", err)
		}
	}
	if r.counter == nil {
		r.counter = utils.NewTokenCounterOrEstimate(r.cfg.LLM.Model)
	}

	r.gateway = gateway.New(r.llm, gateway.WithMetrics(r.obs.Metrics()))

	r.ingestor, err = rag.NewIngestor(r.embedder, r.store, rag.IngestorConfig{
		Collection:   r.cfg.Vector.Collection,
		ChunkSize:    r.cfg.Ingest.ChunkSize,
		ChunkOverlap: r.cfg.Ingest.ChunkOverlap,
		Concurrency:  r.cfg.Ingest.Concurrency,
		MaxFileSize:  r.cfg.Ingest.MaxFileSize,
		FetchTimeout: r.cfg.Ingest.FetchTimeout,
		Length:       r.counter.Count,
	})
	if err != nil {
		return fmt.Errorf("failed to create ingestor: %w", err)
	}

	snap, err := r.newSnapshot(r.cfg)
	if err != nil {
		return err
	}
	r.current.Store(snap)

	slog.Info("Runtime ready",
		"llm", r.llm.Name(),
		"model", r.llm.Model(),
		"embedder", r.embedder.Model(),
		"vector", r.store.Name(),
		"search", r.searcher.Name())
	return nil
}

func (r *Runtime) newSnapshot(cfg *config.Config) (*snapshot, error) {
	prompts := gateway.DefaultPrompts().With(gateway.Prompts{
		Routing:     cfg.Prompts.Routing,
		Keyword:     cfg.Prompts.Keyword,
		Review:      cfg.Prompts.Review,
		Answer:      cfg.Prompts.Answer,
		Direct:      cfg.Prompts.Direct,
		Placeholder: cfg.Prompts.Placeholder,
	})
	if err := prompts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid prompts: %w", err)
	}

	retriever := rag.NewRetriever(r.embedder, r.store, rag.RetrieverConfig{
		Collection:     r.cfg.Vector.Collection,
		TopK:           cfg.Retrieval.TopK,
		ScoreThreshold: cfg.Retrieval.ScoreThreshold,
	})

	orchestrator, err := agent.New(r.gateway, retriever, r.searcher, agent.WithMetrics(r.obs.Metrics()))
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	return &snapshot{
		prompts:          prompts,
		retriever:        retriever,
		orchestrator:     orchestrator,
		maxHistoryTokens: cfg.Session.MaxHistoryTokens,
	}, nil
}

// Reload swaps in the prompts, retrieval cutoffs and history budget of cfg.
// Turns already running finish with the snapshot they started with.
// Provider, index and session settings need a restart.
func (r *Runtime) Reload(cfg *config.Config) error {
	snap, err := r.newSnapshot(cfg)
	if err != nil {
		slog.Error("Config reload rejected", "error", err)
		return err
	}
	r.current.Store(snap)
	slog.Info("Prompts and retrieval settings reloaded",
		"top_k", cfg.Retrieval.TopK,
		"score_threshold", cfg.Retrieval.ScoreThreshold)
	return nil
}

// Prompts returns the prompt set new turns will use.
func (r *Runtime) Prompts() gateway.Prompts {
	return r.current.Load().prompts
}

// Config returns the config the runtime was built from.
func (r *Runtime) Config() *config.Config {
	return r.cfg
}

// Ask runs one turn. An empty sessionID starts a new session; the id is
// returned in the answer either way. History is loaded, trimmed to the
// token budget, and extended with the question and answer once the turn
// succeeds.
func (r *Runtime) Ask(ctx context.Context, question, sessionID string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}
	if sessionID == "" {
		sessionID = session.NewID()
	} else if !session.ValidID(sessionID) {
		return Answer{}, ErrInvalidSessionID
	}

	snap := r.current.Load()

	history, err := r.sessions.Load(ctx, sessionID)
	if err != nil {
		return Answer{SessionID: sessionID}, fmt.Errorf("failed to load session: %w", err)
	}
	history = session.Trim(r.counter, history, snap.maxHistoryTokens)

	state, err := snap.orchestrator.Run(ctx, snap.prompts, question, history)
	answer := answerFrom(sessionID, state)
	if err != nil {
		return answer, err
	}

	if err := r.sessions.Append(ctx, sessionID,
		model.Message{Role: model.RoleUser, Text: question},
		model.Message{Role: model.RoleAssistant, Text: state.Generation},
	); err != nil {
		slog.Warn("Failed to save session history", "session", sessionID, "error", err)
	}
	return answer, nil
}

func answerFrom(sessionID string, state agent.TurnState) Answer {
	docs := state.Documents
	if docs == nil {
		docs = []string{}
	}
	return Answer{
		Answer:    state.Generation,
		SessionID: sessionID,
		Route:     string(state.Route),
		Keyword:   state.Keyword,
		Documents: docs,
		Trace:     state.Trace,
		Outcome:   state.Outcome,
		Failures:  state.Failures,
	}
}

// ClearSession drops the history of a session.
func (r *Runtime) ClearSession(ctx context.Context, id string) error {
	if !session.ValidID(id) {
		return ErrInvalidSessionID
	}
	return r.sessions.Clear(ctx, id)
}

// Health reports whether the knowledge index can serve research turns.
func (r *Runtime) Health(ctx context.Context) error {
	return r.current.Load().retriever.Ready(ctx)
}

// MetricsHandler exposes the Prometheus endpoint. The handler is nil when
// metrics are disabled.
func (r *Runtime) MetricsHandler() (string, http.Handler) {
	return r.obs.MetricsHandler()
}

// Metrics returns the metrics recorder, nil when metrics are disabled.
func (r *Runtime) Metrics() *observability.Metrics {
	return r.obs.Metrics()
}

// Close flushes the index and releases every component.
func (r *Runtime) Close() error {
	var errs []error
	if r.sessions != nil {
		errs = append(errs, r.sessions.Close())
	}
	if r.pool != nil {
		errs = append(errs, r.pool.Close())
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	if r.embedder != nil {
		errs = append(errs, r.embedder.Close())
	}
	if r.llm != nil {
		errs = append(errs, r.llm.Close())
	}
	if r.obs != nil {
		errs = append(errs, r.obs.Shutdown(context.Background()))
	}
	return errors.Join(errs...)
}
