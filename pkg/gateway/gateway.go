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

// Package gateway sends the four structured prompts of a scout turn to a
// language model and turns each answer into a typed Result. Operations never
// return bare errors: a failed call or an unparseable answer yields the
// operation's fail-closed default with the matching Outcome.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kadirpekel/scout/pkg/instruction"
	"github.com/kadirpekel/scout/pkg/model"
	"github.com/kadirpekel/scout/pkg/observability"
)

// Operation names used in logs, spans and metrics.
const (
	OpClassifyRoute     = "classify_route"
	OpExtractKeyword    = "extract_keyword"
	OpClassifyRelevancy = "classify_relevancy"
	OpSynthesizeAnswer  = "synthesize_answer"
)

// MaxKeywordTerms caps the length of an extracted keyword.
const MaxKeywordTerms = 6

type routeOutput struct {
	Route string `json:"route" jsonschema:"enum=generation,enum=research"`
}

type keywordOutput struct {
	SearchKeyword string `json:"search_keyword" jsonschema:"description=Compact search string of 2 to 6 terms"`
}

type relevancyOutput struct {
	Relevancy string `json:"relevancy" jsonschema:"enum=relevant,enum=not_relevant"`
}

var (
	routeSchema     = model.MustSchema[routeOutput]("conversation_route")
	keywordSchema   = model.MustSchema[keywordOutput]("keyword")
	relevancySchema = model.MustSchema[relevancyOutput]("document_relevancy")
)

// Gateway wraps an LLM with the scout prompt operations. It is safe for
// concurrent use when the underlying LLM is.
type Gateway struct {
	llm     model.LLM
	metrics *observability.Metrics
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMetrics records one gateway_calls sample per operation.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

func New(llm model.LLM, opts ...Option) *Gateway {
	g := &Gateway{llm: llm}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ClassifyRoute decides whether the question needs retrieval.
func (g *Gateway) ClassifyRoute(ctx context.Context, p Prompts, history []model.Message, question string) RouteResult {
	req := &model.Request{
		System:   p.Routing,
		Messages: withQuestion(history, question),
		Schema:   routeSchema,
	}
	return invoke(ctx, g, OpClassifyRoute, req, RouteResearch, func(text string) (Route, error) {
		var out routeOutput
		if err := decodeJSON(text, &out); err != nil {
			return RouteResearch, err
		}
		route, ok := ParseRoute(out.Route)
		if !ok {
			return route, fmt.Errorf("unknown route %q", out.Route)
		}
		return route, nil
	})
}

// ExtractKeyword derives a compact search string from the question. It does
// not look at history. On failure Value is empty and the caller picks a
// fallback.
func (g *Gateway) ExtractKeyword(ctx context.Context, p Prompts, question string) KeywordResult {
	req := &model.Request{
		System:   p.Keyword,
		Messages: withQuestion(nil, question),
		Schema:   keywordSchema,
	}
	return invoke(ctx, g, OpExtractKeyword, req, "", func(text string) (string, error) {
		var out keywordOutput
		if err := decodeJSON(text, &out); err != nil {
			return "", err
		}
		keyword := NormalizeKeyword(out.SearchKeyword)
		if keyword == "" {
			return "", errors.New("empty search_keyword")
		}
		return keyword, nil
	})
}

// ClassifyRelevancy judges whether documents suffice to answer the
// question. Callers short-circuit empty documents themselves; an empty
// slice here is still sent to the model.
func (g *Gateway) ClassifyRelevancy(ctx context.Context, p Prompts, documents []string, question string) RelevancyResult {
	system, err := instruction.Render(p.Review, map[string]string{"documents": FormatDocuments(documents)})
	if err != nil {
		return RelevancyResult{Value: NotRelevant, Outcome: OutcomeCallFailed, Err: fmt.Errorf("render review prompt: %w", err)}
	}
	req := &model.Request{
		System:   system,
		Messages: []model.Message{{Role: model.RoleUser, Text: "User question: " + question}},
		Schema:   relevancySchema,
	}
	return invoke(ctx, g, OpClassifyRelevancy, req, NotRelevant, func(text string) (Relevancy, error) {
		var out relevancyOutput
		if err := decodeJSON(text, &out); err != nil {
			return NotRelevant, err
		}
		rel, ok := ParseRelevancy(out.Relevancy)
		if !ok {
			return rel, fmt.Errorf("unknown relevancy %q", out.Relevancy)
		}
		return rel, nil
	})
}

// SynthesizeAnswer produces the final answer. With no documents it uses the
// direct prompt. On failure Value is the placeholder answer.
func (g *Gateway) SynthesizeAnswer(ctx context.Context, p Prompts, documents []string, question string, history []model.Message) AnswerResult {
	system := p.Direct
	if len(documents) > 0 {
		rendered, err := instruction.Render(p.Answer, map[string]string{"documents": FormatDocuments(documents)})
		if err != nil {
			return AnswerResult{Value: p.Placeholder, Outcome: OutcomeCallFailed, Err: fmt.Errorf("render answer prompt: %w", err)}
		}
		system = rendered
	}
	req := &model.Request{
		System:   system,
		Messages: withQuestion(history, question),
	}
	return invoke(ctx, g, OpSynthesizeAnswer, req, p.Placeholder, func(text string) (string, error) {
		answer := strings.TrimSpace(text)
		if answer == "" {
			return p.Placeholder, errors.New("empty answer")
		}
		return answer, nil
	})
}

// FormatDocuments renders documents as numbered blocks for a prompt.
func FormatDocuments(documents []string) string {
	var b strings.Builder
	for i, doc := range documents {
		b.WriteString("Document ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(":\n")
		b.WriteString(doc)
		b.WriteString("\n\n")
	}
	return b.String()
}

// NormalizeKeyword collapses whitespace, strips quotes and keeps at most
// MaxKeywordTerms terms.
func NormalizeKeyword(s string) string {
	fields := strings.Fields(strings.Trim(strings.TrimSpace(s), `"'`))
	if len(fields) > MaxKeywordTerms {
		fields = fields[:MaxKeywordTerms]
	}
	return strings.Join(fields, " ")
}

func withQuestion(history []model.Message, question string) []model.Message {
	msgs := make([]model.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	return append(msgs, model.Message{Role: model.RoleUser, Text: question})
}

// invoke runs one model request inside a span, parses the answer and
// records exactly one metric sample with the final outcome.
func invoke[T any](ctx context.Context, g *Gateway, op string, req *model.Request, fallback T, parse func(string) (T, error)) Result[T] {
	ctx, span := observability.Tracer().Start(ctx, observability.SpanGateway+op)
	defer span.End()
	span.SetAttributes(
		attribute.String(observability.AttrOperation, op),
		attribute.String(observability.AttrLLMProvider, g.llm.Name()),
		attribute.String(observability.AttrLLMModel, g.llm.Model()),
	)

	start := time.Now()
	result := func() Result[T] {
		resp, err := g.llm.Generate(ctx, req)
		if err != nil {
			return Result[T]{Value: fallback, Outcome: OutcomeCallFailed, Err: err}
		}
		span.SetAttributes(
			attribute.Int(observability.AttrTokensIn, resp.Usage.InputTokens),
			attribute.Int(observability.AttrTokensOut, resp.Usage.OutputTokens),
		)
		value, err := parse(resp.Text)
		if err != nil {
			return Result[T]{Value: value, Outcome: OutcomeParseFailed, Err: err}
		}
		return Result[T]{Value: value, Outcome: OutcomeOK}
	}()
	elapsed := time.Since(start)

	span.SetAttributes(attribute.String(observability.AttrOutcome, string(result.Outcome)))
	g.metrics.RecordGatewayCall(ctx, op, string(result.Outcome), elapsed)

	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
		slog.Warn("Gateway call degraded", "operation", op, "outcome", result.Outcome, "error", result.Err)
	} else {
		slog.Debug("Gateway call finished", "operation", op, "duration", elapsed)
	}
	return result
}

// decodeJSON parses a JSON object from model output, tolerating markdown
// code fences and surrounding prose.
func decodeJSON(text string, v any) error {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}
