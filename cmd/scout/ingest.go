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
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kadirpekel/scout/pkg/rag"
)

// IngestCmd builds or refreshes the knowledge index.
type IngestCmd struct {
	URL  []string `name:"url" help:"URL to index instead of the configured sources. Repeatable."`
	Path []string `name:"path" help:"File or directory to index instead of the configured sources. Repeatable." type:"path"`
}

func (c *IngestCmd) Run(cli *CLI, logging *logSetup) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, loader, err := openRuntime(ctx, cli, logging)
	if err != nil {
		return err
	}
	defer rt.Close()
	closeLoader(loader)

	var report *rag.Report
	if len(c.URL) > 0 || len(c.Path) > 0 {
		report, err = rt.IngestSources(ctx, rag.Sources{URLs: c.URL, Paths: c.Path})
	} else {
		report, err = rt.Ingest(ctx)
	}
	printReport(os.Stdout, report)
	return err
}

func printReport(out io.Writer, report *rag.Report) {
	if report == nil {
		return
	}
	fmt.Fprintf(out, "Indexed %d chunks from %d sources in %s\n",
		report.Chunks, report.Sources-len(report.Failed), report.Duration.Round(time.Millisecond))
	for _, f := range report.Failed {
		fmt.Fprintf(out, "  failed: %s (%s): %v\n", f.Source, f.Op, f.Err)
	}
}
