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
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/runtime"
	"github.com/kadirpekel/scout/pkg/server"
)

// ServeCmd starts the HTTP API.
type ServeCmd struct {
	Host  string `help:"Address to bind (overrides server.host)."`
	Port  int    `help:"Port to listen on (overrides server.port)."`
	Watch bool   `help:"Reload prompts and retrieval settings when the config source changes."`
}

func (c *ServeCmd) Run(cli *CLI, logging *logSetup) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var current atomic.Pointer[runtime.Runtime]
	rt, loader, err := openRuntime(ctx, cli, logging, config.WithOnChange(func(next *config.Config) {
		if r := current.Load(); r != nil {
			_ = r.Reload(next)
		}
	}))
	if err != nil {
		return err
	}
	defer rt.Close()
	defer closeLoader(loader)
	current.Store(rt)

	cfg := rt.Config()
	serverCfg := cfg.Server
	if c.Host != "" {
		serverCfg.Host = c.Host
	}
	if c.Port != 0 {
		serverCfg.Port = c.Port
	}

	if _, err := rt.EnsureIndex(ctx); err != nil {
		slog.Warn("Knowledge index unavailable, research questions fail until `scout ingest` succeeds", "error", err)
	}

	if c.Watch {
		if loader == nil {
			slog.Warn("--watch needs a config source, ignoring")
		} else {
			go func() {
				if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
					slog.Error("Config watch error", "error", err)
				}
			}()
		}
	}

	path, handler := rt.MetricsHandler()
	srv, err := server.New(serverCfg, rt, server.WithMetrics(rt.Metrics(), path, handler))
	if err != nil {
		return err
	}

	addr := displayAddress(serverCfg)
	fmt.Printf("\nscout is listening on http://%s\n", addr)
	fmt.Printf("   Ask:     POST http://%s/ask\n", addr)
	fmt.Printf("   Health:  GET  http://%s/health\n", addr)
	if handler != nil {
		fmt.Printf("   Metrics: GET  http://%s%s\n", addr, path)
	}
	fmt.Println()

	return srv.Run(ctx)
}

func displayAddress(cfg config.ServerConfig) string {
	if cfg.Host == "" || cfg.Host == "0.0.0.0" {
		cfg.Host = "localhost"
	}
	return cfg.Address()
}
