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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kadirpekel/scout"
	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/config/provider"
	"github.com/kadirpekel/scout/pkg/runtime"
)

// DefaultConfigFile is picked up from the working directory when no
// --config is given.
const DefaultConfigFile = "scout.yaml"

// ConfigSource selects where the configuration is read from.
type ConfigSource struct {
	Config          string   `short:"c" help:"Config file path, or key path for remote sources." placeholder:"PATH"`
	Source          string   `name:"config-source" help:"Config source: file, consul, etcd, zookeeper." default:"file" enum:"file,consul,etcd,zookeeper"`
	ConfigEndpoints []string `name:"config-endpoints" help:"Endpoints of a remote config source." sep:","`
}

// Load reads the configuration. With the file source and no path, a
// scout.yaml in the working directory is used if present, otherwise the
// built-in defaults; the returned loader is nil in that case.
func (s ConfigSource) Load(ctx context.Context, opts ...config.LoaderOption) (*config.Config, *config.Loader, error) {
	typ, err := provider.ParseType(s.Source)
	if err != nil {
		return nil, nil, err
	}

	path := s.Config
	if typ == provider.TypeFile && path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		} else {
			cfg := config.DefaultConfig()
			if err := cfg.Validate(); err != nil {
				return nil, nil, fmt.Errorf("default configuration is incomplete: %w", err)
			}
			slog.Debug("Using default configuration")
			return cfg, nil, nil
		}
	}
	if path == "" {
		return nil, nil, errors.New("--config is required for remote config sources")
	}

	cfg, loader, err := config.LoadConfig(ctx, provider.Config{
		Type:        typ,
		Path:        path,
		Endpoints:   s.ConfigEndpoints,
		DialTimeout: 10 * time.Second,
	}, opts...)
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("Loaded configuration", "source", typ, "path", path)
	return cfg, loader, nil
}

// openRuntime loads the config, applies its logger section and builds the
// runtime. The caller closes both the runtime and, when non-nil, the loader.
func openRuntime(ctx context.Context, cli *CLI, logging *logSetup, opts ...config.LoaderOption) (*runtime.Runtime, *config.Loader, error) {
	cfg, loader, err := cli.ConfigSource.Load(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}
	if err := logging.ApplyConfig(cfg.Logger); err != nil {
		closeLoader(loader)
		return nil, nil, err
	}

	rt, err := runtime.New(ctx, cfg, runtime.WithVersion(scout.GetVersion().Version))
	if err != nil {
		closeLoader(loader)
		return nil, nil, fmt.Errorf("failed to create runtime: %w", err)
	}
	return rt, loader, nil
}

func closeLoader(l *config.Loader) {
	if l != nil {
		_ = l.Close()
	}
}
