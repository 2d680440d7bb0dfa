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

package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/scout/pkg/gateway"
	"github.com/kadirpekel/scout/pkg/search"
)

// Web search outcomes for the web_searches metric.
const (
	searchOK     = "ok"
	searchEmpty  = "empty"
	searchFailed = "failed"
)

func (o *Orchestrator) route(ctx context.Context, t turn) (turn, error) {
	res := o.gateway.ClassifyRoute(ctx, t.prompts, t.state.History, t.state.Question)
	t.state.Route = res.Value
	if !res.OK() {
		t.state.Route = gateway.RouteResearch
		t.state.fail(NodeRoute, string(res.Outcome), res.Err)
	}
	slog.Debug("Routed question", "route", t.state.Route, "outcome", res.Outcome)
	return t, nil
}

func (o *Orchestrator) generateDirect(ctx context.Context, t turn) (turn, error) {
	return o.synthesize(ctx, t, NodeGenerateDirect, nil), nil
}

func (o *Orchestrator) extractKeyword(ctx context.Context, t turn) (turn, error) {
	res := o.gateway.ExtractKeyword(ctx, t.prompts, t.state.Question)
	keyword := res.Value
	if !res.OK() || keyword == "" {
		t.state.fail(NodeExtractKeyword, string(res.Outcome), res.Err)
		keyword = FallbackKeyword(t.state.Question)
		if keyword == "" {
			keyword = t.state.Question
		}
		slog.Debug("Using fallback keyword", "keyword", keyword)
	}
	t.state.Keyword = keyword
	return t, nil
}

func (o *Orchestrator) retrieve(ctx context.Context, t turn) (turn, error) {
	passages, err := o.retriever.Retrieve(ctx, t.state.Keyword)
	if err != nil {
		return t, fmt.Errorf("knowledge retrieval: %w", err)
	}
	for _, p := range passages {
		t.state.Documents = append(t.state.Documents, p.Content)
	}
	slog.Debug("Retrieved passages", "keyword", t.state.Keyword, "count", len(passages))
	return t, nil
}

func (o *Orchestrator) review(ctx context.Context, t turn) (turn, error) {
	if len(t.state.Documents) == 0 {
		t.state.Relevancy = gateway.NotRelevant
		slog.Debug("No documents to review")
		return t, nil
	}

	res := o.gateway.ClassifyRelevancy(ctx, t.prompts, t.state.Documents, t.state.Question)
	t.state.Relevancy = res.Value
	if !res.OK() {
		t.state.Relevancy = gateway.NotRelevant
		t.state.fail(NodeReview, string(res.Outcome), res.Err)
	}
	return t, nil
}

func (o *Orchestrator) webSearch(ctx context.Context, t turn) (turn, error) {
	snippets, err := o.searcher.Search(ctx, t.state.Keyword)
	switch {
	case err != nil:
		o.metrics.RecordWebSearch(ctx, searchFailed)
		t.state.fail(NodeWebSearch, searchFailed, err)
		slog.Warn("Web search failed, answering with existing documents",
			"keyword", t.state.Keyword, "documents", len(t.state.Documents), "error", err)
		return t, nil
	case len(snippets) == 0:
		o.metrics.RecordWebSearch(ctx, searchEmpty)
	default:
		o.metrics.RecordWebSearch(ctx, searchOK)
	}

	t.state.Documents = append(t.state.Documents, search.Documents(snippets)...)
	slog.Debug("Web search finished", "keyword", t.state.Keyword, "snippets", len(snippets))
	return t, nil
}

func (o *Orchestrator) generate(ctx context.Context, t turn) (turn, error) {
	return o.synthesize(ctx, t, NodeGenerate, t.state.Documents), nil
}

func (o *Orchestrator) synthesize(ctx context.Context, t turn, node string, documents []string) turn {
	res := o.gateway.SynthesizeAnswer(ctx, t.prompts, documents, t.state.Question, t.state.History)
	t.state.Generation = res.Value
	t.state.AnswerOutcome = res.Outcome
	if !res.OK() {
		if t.state.Generation == "" {
			t.state.Generation = t.prompts.Placeholder
		}
		t.state.fail(node, string(res.Outcome), res.Err)
	}
	return t
}
