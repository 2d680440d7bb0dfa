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

// Package agent runs the per-question state machine: route the question,
// optionally retrieve and review documents, fall back to web search, and
// synthesize the answer.
//
//	route -> generate_direct
//	route -> extract_keyword -> retrieve -> review -> generate
//	                                               -> web_search -> generate
//
// External failures degrade to fixed defaults and are recorded on the turn.
// Only an unusable knowledge index fails a turn.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kadirpekel/scout/pkg/gateway"
	"github.com/kadirpekel/scout/pkg/graph"
	"github.com/kadirpekel/scout/pkg/model"
	"github.com/kadirpekel/scout/pkg/observability"
	"github.com/kadirpekel/scout/pkg/rag"
	"github.com/kadirpekel/scout/pkg/search"
)

// Gateway is the model-backed decision surface. *gateway.Gateway
// implements it.
type Gateway interface {
	ClassifyRoute(ctx context.Context, p gateway.Prompts, history []model.Message, question string) gateway.RouteResult
	ExtractKeyword(ctx context.Context, p gateway.Prompts, question string) gateway.KeywordResult
	ClassifyRelevancy(ctx context.Context, p gateway.Prompts, documents []string, question string) gateway.RelevancyResult
	SynthesizeAnswer(ctx context.Context, p gateway.Prompts, documents []string, question string, history []model.Message) gateway.AnswerResult
}

// Retriever looks up passages in the knowledge index. An error means the
// index is unusable and fails the turn.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]rag.Passage, error)
}

// Searcher runs a web query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Snippet, error)
}

// Orchestrator is safe for concurrent turns; each Run owns its state.
type Orchestrator struct {
	gateway   Gateway
	retriever Retriever
	searcher  Searcher
	metrics   *observability.Metrics
	graph     *graph.Graph[turn]
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records turn, node and web search metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New wires the graph. A nil searcher disables web search; the turn then
// answers from whatever documents it has.
func New(gw Gateway, retriever Retriever, searcher Searcher, opts ...Option) (*Orchestrator, error) {
	if gw == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if searcher == nil {
		searcher = search.Disabled{}
	}

	o := &Orchestrator{gateway: gw, retriever: retriever, searcher: searcher}
	for _, opt := range opts {
		opt(o)
	}

	g := graph.New[turn](graph.WithMaxSteps(10), graph.WithMetrics(o.metrics))
	g.AddNode(NodeRoute, o.route)
	g.AddNode(NodeGenerateDirect, o.generateDirect)
	g.AddNode(NodeExtractKeyword, o.extractKeyword)
	g.AddNode(NodeRetrieve, o.retrieve)
	g.AddNode(NodeReview, o.review)
	g.AddNode(NodeWebSearch, o.webSearch)
	g.AddNode(NodeGenerate, o.generate)

	g.SetEntryPoint(NodeRoute)
	g.AddConditionalEdges(NodeRoute, func(t turn) string { return string(t.state.Route) }, map[string]string{
		string(gateway.RouteGeneration): NodeGenerateDirect,
		string(gateway.RouteResearch):   NodeExtractKeyword,
	})
	g.AddEdge(NodeGenerateDirect, graph.End)
	g.AddEdge(NodeExtractKeyword, NodeRetrieve)
	g.AddEdge(NodeRetrieve, NodeReview)
	g.AddConditionalEdges(NodeReview, func(t turn) string { return string(t.state.Relevancy) }, map[string]string{
		string(gateway.Relevant):    NodeGenerate,
		string(gateway.NotRelevant): NodeWebSearch,
	})
	g.AddEdge(NodeWebSearch, NodeGenerate)
	g.AddEdge(NodeGenerate, graph.End)

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid turn graph: %w", err)
	}
	o.graph = g
	return o, nil
}

// Run answers one question. history is read, never modified. The returned
// state is populated as far as the turn got, even on error.
func (o *Orchestrator) Run(ctx context.Context, prompts gateway.Prompts, question string, history []model.Message) (TurnState, error) {
	ctx, span := observability.Tracer().Start(ctx, observability.SpanTurn)
	defer span.End()

	start := time.Now()
	final, trace, err := o.graph.Run(ctx, turn{
		prompts: prompts,
		state:   TurnState{Question: question, History: history},
	})
	state := final.state
	state.Trace = trace
	state.Outcome = outcomeOf(state, err)
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.String(observability.AttrRoute, string(state.Route)),
		attribute.String(observability.AttrKeyword, state.Keyword),
		attribute.Int(observability.AttrDocuments, len(state.Documents)),
		attribute.String(observability.AttrOutcome, state.Outcome),
	)
	o.metrics.RecordTurn(ctx, string(state.Route), state.Outcome, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Turn failed", "route", state.Route, "trace", trace, "duration", elapsed, "error", err)
		return state, err
	}

	slog.Info("Turn finished",
		"route", state.Route,
		"keyword", state.Keyword,
		"documents", len(state.Documents),
		"outcome", state.Outcome,
		"duration", elapsed)
	return state, nil
}

func outcomeOf(s TurnState, err error) string {
	switch {
	case err != nil:
		return OutcomeError
	case s.AnswerOutcome != gateway.OutcomeOK:
		return OutcomePlaceholder
	case len(s.Failures) > 0:
		return OutcomeDegraded
	default:
		return OutcomeOK
	}
}
