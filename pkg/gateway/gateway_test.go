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

package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kadirpekel/scout/pkg/model"
)

type fakeLLM struct {
	text     string
	err      error
	requests []*model.Request
}

func (f *fakeLLM) Generate(_ context.Context, req *model.Request) (*model.Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &model.Response{Text: f.text}, nil
}

func (f *fakeLLM) Name() string  { return "fake" }
func (f *fakeLLM) Model() string { return "fake-1" }
func (f *fakeLLM) Close() error  { return nil }

func TestParseRoute(t *testing.T) {
	tests := []struct {
		in     string
		want   Route
		wantOK bool
	}{
		{"generation", RouteGeneration, true},
		{" Research ", RouteResearch, true},
		{`"generation"`, RouteGeneration, true},
		{"", RouteResearch, false},
		{"maybe", RouteResearch, false},
		{"generate", RouteResearch, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRoute(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestParseRelevancy(t *testing.T) {
	tests := []struct {
		in     string
		want   Relevancy
		wantOK bool
	}{
		{"relevant", Relevant, true},
		{"NOT_RELEVANT", NotRelevant, true},
		{"not relevant", NotRelevant, false},
		{"yes", NotRelevant, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRelevancy(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestClassifyRoute(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		err         error
		want        Route
		wantOutcome Outcome
	}{
		{"generation", `{"route":"generation"}`, nil, RouteGeneration, OutcomeOK},
		{"fenced research", "```json\n{\"route\": \"research\"}\n```", nil, RouteResearch, OutcomeOK},
		{"unknown label", `{"route":"chitchat"}`, nil, RouteResearch, OutcomeParseFailed},
		{"not json", "generation", nil, RouteResearch, OutcomeParseFailed},
		{"call error", "", errors.New("connection refused"), RouteResearch, OutcomeCallFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &fakeLLM{text: tt.text, err: tt.err}
			history := []model.Message{
				{Role: model.RoleUser, Text: "hi"},
				{Role: model.RoleAssistant, Text: "hello"},
			}

			res := New(llm).ClassifyRoute(context.Background(), DefaultPrompts(), history, "What is new in Go?")

			assert.Equal(t, tt.want, res.Value)
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, tt.wantOutcome == OutcomeOK, res.Err == nil)

			require.Len(t, llm.requests, 1)
			req := llm.requests[0]
			assert.Equal(t, "conversation_route", req.Schema.Name)
			require.Len(t, req.Messages, 3)
			assert.Equal(t, "What is new in Go?", req.Messages[2].Text)
		})
	}
}

func TestExtractKeyword(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		err         error
		want        string
		wantOutcome Outcome
	}{
		{"plain", `{"search_keyword":"Tokyo population"}`, nil, "Tokyo population", OutcomeOK},
		{"capped", `{"search_keyword":"a b c d e f g h"}`, nil, "a b c d e f", OutcomeOK},
		{"blank", `{"search_keyword":"   "}`, nil, "", OutcomeParseFailed},
		{"call error", "", context.DeadlineExceeded, "", OutcomeCallFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &fakeLLM{text: tt.text, err: tt.err}
			res := New(llm).ExtractKeyword(context.Background(), DefaultPrompts(), "What is the population of Tokyo?")
			assert.Equal(t, tt.want, res.Value)
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			require.Len(t, llm.requests, 1)
			assert.Len(t, llm.requests[0].Messages, 1)
		})
	}
}

func TestClassifyRelevancy(t *testing.T) {
	llm := &fakeLLM{text: `{"relevancy":"relevant"}`}
	docs := []string{"Tokyo has 14 million people.", "Tokyo is in Japan."}

	res := New(llm).ClassifyRelevancy(context.Background(), DefaultPrompts(), docs, "How big is Tokyo?")

	assert.Equal(t, Relevant, res.Value)
	assert.True(t, res.OK())
	req := llm.requests[0]
	assert.Contains(t, req.System, "Document 1:\nTokyo has 14 million people.\n\nDocument 2:\nTokyo is in Japan.")
	assert.Equal(t, "User question: How big is Tokyo?", req.Messages[0].Text)

	llm = &fakeLLM{err: errors.New("boom")}
	res = New(llm).ClassifyRelevancy(context.Background(), DefaultPrompts(), docs, "q")
	assert.Equal(t, NotRelevant, res.Value)
	assert.Equal(t, OutcomeCallFailed, res.Outcome)
}

func TestSynthesizeAnswer(t *testing.T) {
	p := DefaultPrompts()

	t.Run("direct without documents", func(t *testing.T) {
		llm := &fakeLLM{text: "  Waves fold on sand  "}
		res := New(llm).SynthesizeAnswer(context.Background(), p, nil, "Write a haiku", nil)
		assert.Equal(t, "Waves fold on sand", res.Value)
		assert.Equal(t, p.Direct, llm.requests[0].System)
		assert.Nil(t, llm.requests[0].Schema)
	})

	t.Run("grounded with documents", func(t *testing.T) {
		llm := &fakeLLM{text: "About 14 million."}
		res := New(llm).SynthesizeAnswer(context.Background(), p, []string{"snippet"}, "q", nil)
		assert.True(t, res.OK())
		assert.Contains(t, llm.requests[0].System, "Document 1:\nsnippet")
	})

	t.Run("failure yields placeholder", func(t *testing.T) {
		llm := &fakeLLM{err: errors.New("503")}
		res := New(llm).SynthesizeAnswer(context.Background(), p, nil, "q", nil)
		assert.Equal(t, DefaultPlaceholder, res.Value)
		assert.Equal(t, OutcomeCallFailed, res.Outcome)
	})

	t.Run("empty answer is a parse failure", func(t *testing.T) {
		llm := &fakeLLM{text: " \n"}
		res := New(llm).SynthesizeAnswer(context.Background(), p, nil, "q", nil)
		assert.Equal(t, DefaultPlaceholder, res.Value)
		assert.Equal(t, OutcomeParseFailed, res.Outcome)
	})
}

func TestPrompts(t *testing.T) {
	require.NoError(t, DefaultPrompts().Validate())

	custom := DefaultPrompts().With(Prompts{Placeholder: "try later"})
	assert.Equal(t, "try later", custom.Placeholder)
	assert.Equal(t, DefaultPrompts().Routing, custom.Routing)

	bad := DefaultPrompts().With(Prompts{Review: "no docs here"})
	err := bad.Validate()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "{documents}"))

	bad = DefaultPrompts().With(Prompts{Answer: "{documents} and {question}"})
	assert.Error(t, bad.Validate())
}

func TestGatewaySpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	llm := &fakeLLM{text: "not json"}
	New(llm).ClassifyRoute(context.Background(), DefaultPrompts(), nil, "q")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "scout.gateway.classify_route", spans[0].Name())
	var outcome string
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "scout.outcome" {
			outcome = kv.Value.AsString()
		}
	}
	assert.Equal(t, string(OutcomeParseFailed), outcome)
}
