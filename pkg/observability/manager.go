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
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

// Manager owns the tracer provider and metrics for one process.
type Manager struct {
	cfg     Config
	tracer  trace.TracerProvider
	metrics *Metrics
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Initialize sets up tracing and metrics according to the config.
func (m *Manager) Initialize(ctx context.Context, version string) error {
	tp, err := InitGlobalTracer(ctx, m.cfg.Tracing, version)
	if err != nil {
		return err
	}
	m.tracer = tp
	if m.cfg.Tracing.Enabled {
		slog.Info("Tracing enabled", "exporter", m.cfg.Tracing.Exporter, "endpoint", m.cfg.Tracing.Endpoint)
	}

	if m.cfg.Metrics.Enabled {
		metrics, err := NewMetrics(m.cfg.Metrics)
		if err != nil {
			return err
		}
		m.metrics = metrics
		slog.Info("Metrics enabled", "endpoint", m.cfg.Metrics.Endpoint)
	}
	return nil
}

// Metrics returns the recorder, nil when metrics are disabled.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// MetricsHandler returns the Prometheus handler and its mount path, or a
// nil handler when metrics are disabled.
func (m *Manager) MetricsHandler() (string, http.Handler) {
	if m.metrics == nil {
		return "", nil
	}
	return m.cfg.Metrics.Endpoint, m.metrics.Handler()
}

// Shutdown flushes pending spans and stops the meter provider.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	if sp, ok := m.tracer.(interface{ Shutdown(context.Context) error }); ok {
		errs = append(errs, sp.Shutdown(ctx))
	}
	errs = append(errs, m.metrics.Shutdown(ctx))
	return errors.Join(errs...)
}
