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

package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestHandler_SimpleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(slog.LevelInfo, &buf, FormatSimple, false))

	log.With("node", "route").Info("node finished", "outcome", "ok")
	log.Debug("hidden")

	out := buf.String()
	if !strings.HasPrefix(out, "INFO node finished") {
		t.Fatalf("unexpected line: %q", out)
	}
	if !strings.Contains(out, "node=route") || !strings.Contains(out, "outcome=ok") {
		t.Errorf("attributes missing: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record should be filtered at info level")
	}
}

func TestHandler_Group(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(slog.LevelDebug, &buf, FormatSimple, false))

	log.WithGroup("gateway").Debug("call", "op", "route")

	if !strings.Contains(buf.String(), "gateway.op=route") {
		t.Errorf("group prefix missing: %q", buf.String())
	}
}
