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

package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the scout instruments. A nil *Metrics is valid and records
// nothing, so callers never need to check whether metrics are enabled.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	registry *prometheus.Registry

	turns         metric.Int64Counter
	turnDuration  metric.Float64Histogram
	nodeDuration  metric.Float64Histogram
	gatewayCalls  metric.Int64Counter
	gatewayTime   metric.Float64Histogram
	webSearches   metric.Int64Counter
	httpRequests  metric.Int64Counter
	httpDurations metric.Float64Histogram
}

// NewMetrics creates a meter provider backed by a private Prometheus
// registry. Each instance serves only its own instruments.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(InstrumentationName)

	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultServiceName
	}
	m := &Metrics{provider: provider, registry: registry}

	if m.turns, err = meter.Int64Counter(ns+"_turns",
		metric.WithDescription("Completed conversation turns")); err != nil {
		return nil, err
	}
	if m.turnDuration, err = meter.Float64Histogram(ns+"_turn_duration",
		metric.WithDescription("Conversation turn latency"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.nodeDuration, err = meter.Float64Histogram(ns+"_node_duration",
		metric.WithDescription("Pipeline node latency"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.gatewayCalls, err = meter.Int64Counter(ns+"_gateway_calls",
		metric.WithDescription("Language model calls by operation and outcome")); err != nil {
		return nil, err
	}
	if m.gatewayTime, err = meter.Float64Histogram(ns+"_gateway_call_duration",
		metric.WithDescription("Language model call latency"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.webSearches, err = meter.Int64Counter(ns+"_web_searches",
		metric.WithDescription("Web search attempts by outcome")); err != nil {
		return nil, err
	}
	if m.httpRequests, err = meter.Int64Counter(ns+"_http_requests",
		metric.WithDescription("HTTP requests served")); err != nil {
		return nil, err
	}
	if m.httpDurations, err = meter.Float64Histogram(ns+"_http_request_duration",
		metric.WithDescription("HTTP request latency"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) RecordTurn(ctx context.Context, route, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("outcome", outcome),
	)
	m.turns.Add(ctx, 1, attrs)
	m.turnDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) RecordNode(ctx context.Context, node string, d time.Duration) {
	if m == nil {
		return
	}
	m.nodeDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("node", node)))
}

func (m *Metrics) RecordGatewayCall(ctx context.Context, op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	)
	m.gatewayCalls.Add(ctx, 1, attrs)
	m.gatewayTime.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) RecordWebSearch(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.webSearches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDurations.Record(ctx, d.Seconds(), attrs)
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
