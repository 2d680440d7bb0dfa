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

// Package graph runs a small state machine of named nodes over a typed
// state. Nodes execute strictly one at a time; after each node a static or
// conditional edge picks the next one until End is reached.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kadirpekel/scout/pkg/observability"
)

// End is the pseudo-node that terminates a run.
const End = "__end__"

// DefaultMaxSteps bounds a run when no explicit limit is set.
const DefaultMaxSteps = 25

// ErrMaxSteps is returned when a run does not reach End within the limit.
var ErrMaxSteps = errors.New("graph did not reach end within step limit")

// NodeFunc transforms the state.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// RouterFunc picks a branch label from the state after a node ran.
type RouterFunc[S any] func(state S) string

type edge[S any] struct {
	to       string
	router   RouterFunc[S]
	branches map[string]string
}

// Graph is built once and run many times. It is safe for concurrent Run
// calls once construction is finished.
type Graph[S any] struct {
	nodes    map[string]NodeFunc[S]
	edges    map[string]edge[S]
	entry    string
	maxSteps int
	metrics  *observability.Metrics
}

// Option configures a Graph.
type Option func(*options)

type options struct {
	maxSteps int
	metrics  *observability.Metrics
}

// WithMaxSteps caps the number of node executions per run.
func WithMaxSteps(n int) Option {
	return func(o *options) { o.maxSteps = n }
}

// WithMetrics records per-node durations.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New creates an empty graph.
func New[S any](opts ...Option) *Graph[S] {
	o := options{maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxSteps <= 0 {
		o.maxSteps = DefaultMaxSteps
	}
	return &Graph[S]{
		nodes:    make(map[string]NodeFunc[S]),
		edges:    make(map[string]edge[S]),
		maxSteps: o.maxSteps,
		metrics:  o.metrics,
	}
}

func (g *Graph[S]) AddNode(name string, fn NodeFunc[S]) {
	g.nodes[name] = fn
}

func (g *Graph[S]) SetEntryPoint(name string) {
	g.entry = name
}

// AddEdge always moves from one node to another.
func (g *Graph[S]) AddEdge(from, to string) {
	g.edges[from] = edge[S]{to: to}
}

// AddConditionalEdges moves to branches[router(state)].
func (g *Graph[S]) AddConditionalEdges(from string, router RouterFunc[S], branches map[string]string) {
	g.edges[from] = edge[S]{router: router, branches: branches}
}

// Validate checks that the entry point and every edge target exist.
func (g *Graph[S]) Validate() error {
	if _, ok := g.nodes[g.entry]; !ok {
		return fmt.Errorf("entry point %q not found", g.entry)
	}
	known := func(name string) bool {
		_, ok := g.nodes[name]
		return ok || name == End
	}
	var errs []error
	for _, from := range sortedKeys(g.edges) {
		if _, ok := g.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("edge from unknown node %q", from))
		}
		e := g.edges[from]
		if e.router == nil {
			if !known(e.to) {
				errs = append(errs, fmt.Errorf("edge %q -> %q: unknown target", from, e.to))
			}
			continue
		}
		for _, label := range sortedKeys(e.branches) {
			if to := e.branches[label]; !known(to) {
				errs = append(errs, fmt.Errorf("branch %q of %q -> %q: unknown target", label, from, to))
			}
		}
	}
	return errors.Join(errs...)
}

// Run executes from the entry point until End. It returns the final state
// and the names of the visited nodes in order. A node without an outgoing
// edge ends the run. On error the state reached so far is returned.
func (g *Graph[S]) Run(ctx context.Context, state S) (S, []string, error) {
	current := g.entry
	if _, ok := g.nodes[current]; !ok {
		return state, nil, fmt.Errorf("entry point %q not found", current)
	}

	var trace []string
	for step := 0; current != End; step++ {
		if step >= g.maxSteps {
			return state, trace, fmt.Errorf("%w (%d)", ErrMaxSteps, g.maxSteps)
		}
		if err := ctx.Err(); err != nil {
			return state, trace, err
		}

		fn, ok := g.nodes[current]
		if !ok {
			return state, trace, fmt.Errorf("node %q not found", current)
		}

		trace = append(trace, current)
		next, err := g.runNode(ctx, current, fn, state)
		if err != nil {
			return state, trace, fmt.Errorf("node %s: %w", current, err)
		}
		state = next

		current, err = g.next(current, state)
		if err != nil {
			return state, trace, err
		}
	}
	return state, trace, nil
}

func (g *Graph[S]) runNode(ctx context.Context, name string, fn NodeFunc[S], state S) (S, error) {
	ctx, span := observability.Tracer().Start(ctx, observability.SpanNodePrefix+name)
	defer span.End()
	span.SetAttributes(attribute.String(observability.AttrNode, name))

	start := time.Now()
	next, err := fn(ctx, state)
	elapsed := time.Since(start)
	g.metrics.RecordNode(ctx, name, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Node failed", "node", name, "duration", elapsed, "error", err)
		return state, err
	}
	slog.Debug("Node finished", "node", name, "duration", elapsed)
	return next, nil
}

func (g *Graph[S]) next(from string, state S) (string, error) {
	e, ok := g.edges[from]
	if !ok {
		return End, nil
	}
	if e.router == nil {
		return e.to, nil
	}
	label := e.router(state)
	to, ok := e.branches[label]
	if !ok {
		return "", fmt.Errorf("node %s: no branch for decision %q", from, label)
	}
	return to, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
