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

package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/rag"
)

// Ingest indexes every configured source.
func (r *Runtime) Ingest(ctx context.Context) (*rag.Report, error) {
	return r.IngestSources(ctx, rag.Sources{URLs: r.cfg.Ingest.URLs, Paths: r.cfg.Ingest.Paths})
}

// IngestSources indexes src instead of the configured sources.
func (r *Runtime) IngestSources(ctx context.Context, src rag.Sources) (*rag.Report, error) {
	slog.Info("Ingesting sources", "urls", len(src.URLs), "paths", len(src.Paths), "collection", r.cfg.Vector.Collection)
	report, err := r.ingestor.Ingest(ctx, src)
	if err != nil {
		return report, fmt.Errorf("ingestion failed: %w", err)
	}
	slog.Info("Ingestion finished",
		"sources", report.Sources,
		"chunks", report.Chunks,
		"failed", len(report.Failed),
		"duration", report.Duration)
	return report, nil
}

// EnsureIndex applies ingest.on_start. In auto mode the configured sources
// are ingested only when the index is empty. A nil report means nothing
// was ingested.
func (r *Runtime) EnsureIndex(ctx context.Context) (*rag.Report, error) {
	switch r.cfg.Ingest.OnStart {
	case config.IngestNever:
		return nil, nil
	case config.IngestAlways:
		return r.Ingest(ctx)
	default:
		err := r.Health(ctx)
		if err == nil {
			return nil, nil
		}
		if !errors.Is(err, rag.ErrIndexNotReady) {
			return nil, err
		}
		slog.Info("Knowledge index is empty, building it")
		return r.Ingest(ctx)
	}
}
