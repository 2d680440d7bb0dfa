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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/scout/pkg/config"
)

// ValidateCmd validates a configuration file.
type ValidateCmd struct {
	File string `arg:"" name:"config" help:"Configuration file path." placeholder:"PATH" type:"path"`

	Format string `short:"f" help:"Output format: compact, verbose, json." default:"compact" enum:"compact,verbose,json"`

	// PrintConfig prints the configuration with defaults applied and
	// environment variables resolved. Secrets are masked.
	PrintConfig bool `short:"p" name:"print-config" help:"Print the expanded configuration with secrets masked."`
}

func (c *ValidateCmd) Run() error {
	cfg, loader, err := config.LoadConfigFile(context.Background(), c.File)
	if err != nil {
		return printLoadError(os.Stdout, os.Stderr, c.Format, c.File, err)
	}
	closeLoader(loader)

	if c.PrintConfig {
		return printExpandedConfig(os.Stdout, c.Format, c.File, redact(cfg))
	}
	printSuccess(os.Stdout, c.Format, c.File)
	return nil
}

// ValidationError is one problem in the JSON output.
type ValidationError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type jsonOutput struct {
	Valid  bool              `json:"valid"`
	File   string            `json:"file"`
	Errors []ValidationError `json:"errors,omitempty"`
}

func printLoadError(stdout, stderr io.Writer, format, file string, err error) error {
	switch format {
	case "json":
		printJSONResult(stdout, false, file, []ValidationError{{Type: "load", Message: err.Error()}})
	case "verbose":
		fmt.Fprintf(stderr, "Configuration Load Error\n")
		fmt.Fprintf(stderr, "========================\n\n")
		fmt.Fprintf(stderr, "File:    %s\n", file)
		fmt.Fprintf(stderr, "Error:   %s\n", err.Error())
	default:
		fmt.Fprintf(stderr, "%s: load error: %s\n", file, err.Error())
	}
	return fmt.Errorf("config load failed")
}

func printSuccess(out io.Writer, format, file string) {
	switch format {
	case "json":
		printJSONResult(out, true, file, nil)
	case "verbose":
		fmt.Fprintf(out, "Configuration Validation Successful\n")
		fmt.Fprintf(out, "===================================\n\n")
		fmt.Fprintf(out, "File:   %s\n", file)
		fmt.Fprintf(out, "Status: OK Valid\n")
	default:
		fmt.Fprintf(out, "%s: valid\n", file)
	}
}

func printExpandedConfig(out io.Writer, format, file string, cfg *config.Config) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config as JSON: %w", err)
		}
		return nil
	}

	fmt.Fprintf(out, "# Expanded configuration from: %s\n", file)
	fmt.Fprintf(out, "# (defaults applied, env vars resolved, secrets masked)\n\n")
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config as YAML: %w", err)
	}
	return enc.Close()
}

func printJSONResult(out io.Writer, valid bool, file string, errs []ValidationError) {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonOutput{Valid: valid, File: file, Errors: errs}); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
	}
}

const masked = "********"

// redact returns a copy of cfg with credentials masked.
func redact(cfg *config.Config) *config.Config {
	out := *cfg
	mask := func(s *string) {
		if *s != "" {
			*s = masked
		}
	}
	mask(&out.LLM.APIKey)
	mask(&out.Embedder.APIKey)
	mask(&out.Vector.APIKey)
	mask(&out.Search.APIKey)
	if cfg.Session.Database != nil {
		db := *cfg.Session.Database
		mask(&db.Password)
		out.Session.Database = &db
	}
	if len(cfg.Observability.Tracing.Headers) > 0 {
		headers := make(map[string]string, len(cfg.Observability.Tracing.Headers))
		for k := range cfg.Observability.Tracing.Headers {
			headers[k] = masked
		}
		out.Observability.Tracing.Headers = headers
	}
	return &out
}
