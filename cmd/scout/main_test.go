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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/rag"
	"github.com/kadirpekel/scout/pkg/runtime"
)

type fakeAsker struct {
	questions []string
	sessions  []string
	cleared   []string
	err       error
}

func (f *fakeAsker) Ask(_ context.Context, question, sessionID string) (runtime.Answer, error) {
	f.questions = append(f.questions, question)
	f.sessions = append(f.sessions, sessionID)
	if sessionID == "" {
		sessionID = "sess-1"
	}
	if f.err != nil {
		return runtime.Answer{SessionID: sessionID}, f.err
	}
	return runtime.Answer{
		Answer:    "answer to " + question,
		SessionID: sessionID,
		Route:     "generation",
		Trace:     []string{"route", "generate_direct"},
		Outcome:   "ok",
	}, nil
}

func (f *fakeAsker) ClearSession(_ context.Context, id string) error {
	f.cleared = append(f.cleared, id)
	return nil
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		flag       string
		env        string
		fromConfig string
		want       string
	}{
		{"flag wins", "debug", "warn", "error", "debug"},
		{"env over config", "", "warn", "error", "warn"},
		{"config over default", "", "", "error", "error"},
		{"default", "", "", "", "info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(LogLevelEnvVar, tt.env)
			assert.Equal(t, tt.want, resolve(tt.flag, LogLevelEnvVar, tt.fromConfig, DefaultLogLevel))
		})
	}
}

func TestLogSetup_ApplyConfig(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	t.Setenv(LogFileEnvVar, "")
	t.Setenv(LogFormatEnvVar, "")

	logging, err := initLogger("", "", "")
	require.NoError(t, err)
	defer logging.Close()
	assert.Equal(t, logSettings{Level: "info", Format: "simple"}, logging.active)

	file := filepath.Join(t.TempDir(), "scout.log")
	require.NoError(t, logging.ApplyConfig(config.LoggerConfig{Level: "debug", File: file, Format: "verbose"}))
	assert.Equal(t, logSettings{Level: "debug", File: file, Format: "verbose"}, logging.active)
	assert.FileExists(t, file)

	assert.Error(t, logging.ApplyConfig(config.LoggerConfig{Level: "loud"}))
}

func TestChatLoop(t *testing.T) {
	svc := &fakeAsker{}
	var out bytes.Buffer
	loop := &chatLoop{
		in:      strings.NewReader("What is an agent?\n\n/help\nAnd memory?\n/clear\nquit\nnever asked\n"),
		out:     &out,
		svc:     svc,
		verbose: true,
	}

	require.NoError(t, loop.run(context.Background()))

	assert.Equal(t, []string{"What is an agent?", "And memory?"}, svc.questions)
	assert.Equal(t, []string{"", "sess-1"}, svc.sessions, "the session id from the first answer is reused")
	assert.Equal(t, []string{"sess-1"}, svc.cleared)

	text := out.String()
	assert.Contains(t, text, "scout: answer to What is an agent?")
	assert.Contains(t, text, "Unknown command: /help")
	assert.Contains(t, text, "trace=route>generate_direct")
	assert.Contains(t, text, "Goodbye.")
	assert.NotContains(t, text, "\033[", "no colors when not a terminal")
}

func TestChatLoop_QuitWords(t *testing.T) {
	for _, word := range []string{"quit", "exit", "q", "/quit", "/exit", "QUIT"} {
		t.Run(word, func(t *testing.T) {
			svc := &fakeAsker{}
			loop := &chatLoop{in: strings.NewReader(word + "\nhello\n"), out: &bytes.Buffer{}, svc: svc}
			require.NoError(t, loop.run(context.Background()))
			assert.Empty(t, svc.questions)
		})
	}
}

func TestChatLoop_ErrorsDoNotEndSession(t *testing.T) {
	svc := &fakeAsker{err: errors.New("knowledge index not ready")}
	var out bytes.Buffer
	loop := &chatLoop{in: strings.NewReader("one\ntwo\n"), out: &out, svc: svc}

	require.NoError(t, loop.run(context.Background()), "EOF ends the loop cleanly")
	assert.Len(t, svc.questions, 2)
	assert.Contains(t, out.String(), "Error: knowledge index not ready")
}

func TestAsk(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, ask(context.Background(), &out, &fakeAsker{}, "hi", "", false))
	assert.Equal(t, "answer to hi\n", out.String())

	out.Reset()
	require.NoError(t, ask(context.Background(), &out, &fakeAsker{}, "hi", "s9", true))
	var answer runtime.Answer
	require.NoError(t, json.Unmarshal(out.Bytes(), &answer))
	assert.Equal(t, "s9", answer.SessionID)

	assert.Error(t, ask(context.Background(), &out, &fakeAsker{err: errors.New("boom")}, "hi", "", false))
}

func TestConfigSource_Load(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scout.yaml")
		require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  top_k: 7\n"), 0o644))

		cfg, loader, err := ConfigSource{Config: path, Source: "file"}.Load(context.Background())
		require.NoError(t, err)
		defer closeLoader(loader)
		assert.NotNil(t, loader)
		assert.Equal(t, 7, cfg.Retrieval.TopK)
	})

	t.Run("defaults without a file", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cfg, loader, err := ConfigSource{Source: "file"}.Load(context.Background())
		require.NoError(t, err)
		assert.Nil(t, loader)
		assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	})

	t.Run("remote source needs a key", func(t *testing.T) {
		_, _, err := ConfigSource{Source: "consul"}.Load(context.Background())
		assert.Error(t, err)
	})
}

func TestRedact(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.APIKey = "sk-secret"
	cfg.Search.APIKey = ""
	cfg.Session.Database = &config.DatabaseConfig{Driver: "postgres", Password: "hunter2"}

	out := redact(cfg)
	assert.Equal(t, masked, out.LLM.APIKey)
	assert.Empty(t, out.Search.APIKey)
	assert.Equal(t, masked, out.Session.Database.Password)
	assert.Equal(t, "sk-secret", cfg.LLM.APIKey, "the original is untouched")
	assert.Equal(t, "hunter2", cfg.Session.Database.Password)
}

func TestPrintExpandedConfig(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printExpandedConfig(&out, "compact", "scout.yaml", redact(config.DefaultConfig())))
	assert.Contains(t, out.String(), "# Expanded configuration from: scout.yaml")
	assert.Contains(t, out.String(), "top_k: 4")
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, &rag.Report{
		Sources:  3,
		Chunks:   42,
		Duration: 1500 * time.Millisecond,
		Failed:   []*rag.IngestError{{Source: "broken.pdf", Op: "parse", Err: errors.New("bad xref")}},
	})
	assert.Equal(t, "Indexed 42 chunks from 2 sources in 1.5s\n  failed: broken.pdf (parse): bad xref\n", out.String())

	out.Reset()
	printReport(&out, nil)
	assert.Empty(t, out.String())
}

func TestDisplayAddress(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"", "localhost:8000"},
		{"0.0.0.0", "localhost:8000"},
		{"127.0.0.1", "127.0.0.1:8000"},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, displayAddress(config.ServerConfig{Host: tt.host, Port: 8000}))
		})
	}
}
