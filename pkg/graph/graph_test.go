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

package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type counter struct {
	N     int
	Steps []string
}

func appendStep(name string) NodeFunc[counter] {
	return func(_ context.Context, s counter) (counter, error) {
		s.Steps = append(s.Steps, name)
		s.N++
		return s, nil
	}
}

func TestRun_ConditionalBranches(t *testing.T) {
	g := New[counter]()
	g.AddNode("start", appendStep("start"))
	g.AddNode("even", appendStep("even"))
	g.AddNode("odd", appendStep("odd"))
	g.SetEntryPoint("start")
	g.AddConditionalEdges("start", func(s counter) string {
		if s.N%2 == 0 {
			return "even"
		}
		return "odd"
	}, map[string]string{"even": "even", "odd": "odd"})
	g.AddEdge("even", End)
	g.AddEdge("odd", End)
	require.NoError(t, g.Validate())

	tests := []struct {
		name  string
		start int
		want  []string
	}{
		{"from zero", 0, []string{"start", "odd"}},
		{"from one", 1, []string{"start", "even"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			final, trace, err := g.Run(context.Background(), counter{N: tt.start})
			require.NoError(t, err)
			assert.Equal(t, tt.want, trace)
			assert.Equal(t, tt.want, final.Steps)
			assert.Equal(t, tt.start+2, final.N)
		})
	}
}

func TestRun_NodeWithoutEdgeEnds(t *testing.T) {
	g := New[counter]()
	g.AddNode("only", appendStep("only"))
	g.SetEntryPoint("only")

	_, trace, err := g.Run(context.Background(), counter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, trace)
}

func TestRun_MaxSteps(t *testing.T) {
	g := New[counter](WithMaxSteps(3))
	g.AddNode("loop", appendStep("loop"))
	g.SetEntryPoint("loop")
	g.AddEdge("loop", "loop")

	final, trace, err := g.Run(context.Background(), counter{})
	assert.ErrorIs(t, err, ErrMaxSteps)
	assert.Len(t, trace, 3)
	assert.Equal(t, 3, final.N)
}

func TestRun_NodeErrorKeepsPriorState(t *testing.T) {
	boom := errors.New("boom")
	g := New[counter]()
	g.AddNode("a", appendStep("a"))
	g.AddNode("b", func(_ context.Context, s counter) (counter, error) {
		s.N = 100
		return s, boom
	})
	g.SetEntryPoint("a")
	g.AddEdge("a", "b")

	final, trace, err := g.Run(context.Background(), counter{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, trace)
	assert.Equal(t, 1, final.N)
}

func TestRun_UnknownBranch(t *testing.T) {
	g := New[counter]()
	g.AddNode("a", appendStep("a"))
	g.SetEntryPoint("a")
	g.AddConditionalEdges("a", func(counter) string { return "nowhere" }, map[string]string{"x": End})

	_, _, err := g.Run(context.Background(), counter{})
	assert.ErrorContains(t, err, `no branch for decision "nowhere"`)
}

func TestRun_Cancelled(t *testing.T) {
	g := New[counter]()
	g.AddNode("a", appendStep("a"))
	g.SetEntryPoint("a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, trace, err := g.Run(ctx, counter{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, trace)
}

func TestValidate(t *testing.T) {
	g := New[counter]()
	g.AddNode("a", appendStep("a"))
	g.AddEdge("a", "missing")
	g.AddConditionalEdges("ghost", func(counter) string { return "" }, map[string]string{"x": End})

	assert.ErrorContains(t, g.Validate(), "entry point")

	g.SetEntryPoint("a")
	err := g.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, `edge "a" -> "missing"`)
	assert.ErrorContains(t, err, `edge from unknown node "ghost"`)
}

func TestRun_NodeSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	g := New[counter]()
	g.AddNode("first", appendStep("first"))
	g.AddNode("second", appendStep("second"))
	g.SetEntryPoint("first")
	g.AddEdge("first", "second")

	_, _, err := g.Run(context.Background(), counter{})
	require.NoError(t, err)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"scout.node.first", "scout.node.second"}, names)
}
