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
	"fmt"
	"os"

	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/logger"
)

const (
	LogLevelEnvVar  = "LOG_LEVEL"
	LogFileEnvVar   = "LOG_FILE"
	LogFormatEnvVar = "LOG_FORMAT"

	DefaultLogLevel  = "info"
	DefaultLogFormat = logger.FormatSimple
)

// logSettings is one resolved logging configuration.
type logSettings struct {
	Level  string
	File   string
	Format string
}

// logSetup tracks the active logger so the config file's logger section
// can be applied once a command has loaded it.
type logSetup struct {
	flags   logSettings
	active  logSettings
	cleanup func()
}

// resolve picks the first non-empty value: CLI flag, environment, config
// file, default.
func resolve(flag, envVar, fromConfig, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	if fromConfig != "" {
		return fromConfig
	}
	return def
}

func (l *logSetup) settings(cfg config.LoggerConfig) logSettings {
	return logSettings{
		Level:  resolve(l.flags.Level, LogLevelEnvVar, cfg.Level, DefaultLogLevel),
		File:   resolve(l.flags.File, LogFileEnvVar, cfg.File, ""),
		Format: resolve(l.flags.Format, LogFormatEnvVar, cfg.Format, DefaultLogFormat),
	}
}

// initLogger configures logging from CLI flags and environment variables
// before any config file is read.
func initLogger(level, file, format string) (*logSetup, error) {
	l := &logSetup{flags: logSettings{Level: level, File: file, Format: format}}
	if err := l.apply(l.settings(config.LoggerConfig{})); err != nil {
		return nil, err
	}
	return l, nil
}

// ApplyConfig re-initializes logging when the config file's logger section
// changes the outcome. Flags and environment variables still win.
func (l *logSetup) ApplyConfig(cfg config.LoggerConfig) error {
	next := l.settings(cfg)
	if next == l.active {
		return nil
	}
	return l.apply(next)
}

func (l *logSetup) apply(s logSettings) error {
	level, err := logger.ParseLevel(s.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	output := os.Stderr
	var cleanup func()
	if s.File != "" {
		file, closeFn, err := logger.OpenLogFile(s.File)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		output, cleanup = file, closeFn
	}

	logger.Init(level, output, s.Format)

	if l.cleanup != nil {
		l.cleanup()
	}
	l.cleanup = cleanup
	l.active = s
	return nil
}

// Close releases the log file, if any.
func (l *logSetup) Close() {
	if l != nil && l.cleanup != nil {
		l.cleanup()
		l.cleanup = nil
	}
}
