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

// Command scout is the CLI for the scout research assistant.
//
// Usage:
//
//	scout serve --config scout.yaml --watch
//	scout chat
//	scout ask "What is task decomposition?"
//	scout ingest --path ./paper
//	scout validate scout.yaml
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/scout"
	"github.com/kadirpekel/scout/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP API."`
	Chat     ChatCmd     `cmd:"" help:"Chat in the terminal."`
	Ask      AskCmd      `cmd:"" help:"Answer one question and exit."`
	Ingest   IngestCmd   `cmd:"" help:"Build or refresh the knowledge index."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`

	ConfigSource `embed:""`

	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, json)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(scout.GetVersion())
	return nil
}

func main() {
	_ = config.LoadDotEnv()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("scout"),
		kong.Description("scout - a routing research assistant"),
		kong.UsageOnError(),
	)

	logging, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Close()

	err = ctx.Run(&cli, logging)
	ctx.FatalIfErrorf(err)
}
