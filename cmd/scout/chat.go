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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/kadirpekel/scout/pkg/runtime"
)

// asker is the part of the runtime the terminal commands use.
type asker interface {
	Ask(ctx context.Context, question, sessionID string) (runtime.Answer, error)
	ClearSession(ctx context.Context, id string) error
}

// ChatCmd runs an interactive session in the terminal.
type ChatCmd struct {
	Session string `help:"Resume a session id."`
	Verbose bool   `short:"v" help:"Show route, keyword and trace after each answer."`
}

func (c *ChatCmd) Run(cli *CLI, logging *logSetup) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, loader, err := openRuntime(ctx, cli, logging)
	if err != nil {
		return err
	}
	defer rt.Close()
	closeLoader(loader)

	if _, err := rt.EnsureIndex(ctx); err != nil {
		slog.Warn("Knowledge index unavailable, research questions fail until `scout ingest` succeeds", "error", err)
	}

	repl := &chatLoop{
		in:        os.Stdin,
		out:       os.Stdout,
		svc:       rt,
		sessionID: c.Session,
		verbose:   c.Verbose,
		color:     term.IsTerminal(int(os.Stdout.Fd())),
	}
	return repl.run(ctx)
}

var quitCommands = map[string]bool{
	"quit": true, "exit": true, "q": true, "/quit": true, "/exit": true,
}

type chatLoop struct {
	in        io.Reader
	out       io.Writer
	svc       asker
	sessionID string
	verbose   bool
	color     bool
}

func (l *chatLoop) paint(code, s string) string {
	if !l.color {
		return s
	}
	return code + s + "\033[0m"
}

func (l *chatLoop) run(ctx context.Context) error {
	scanner := bufio.NewScanner(l.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	fmt.Fprintln(l.out, "Ask a question. /clear forgets the conversation, quit leaves.")
	for {
		fmt.Fprint(l.out, l.paint("\033[36m", "You: "))
		if !scanner.Scan() {
			fmt.Fprintln(l.out)
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue
		case quitCommands[strings.ToLower(input)]:
			fmt.Fprintln(l.out, "Goodbye.")
			return nil
		case input == "/clear":
			if l.sessionID != "" {
				if err := l.svc.ClearSession(ctx, l.sessionID); err != nil {
					fmt.Fprintf(l.out, "Error: %v\n", err)
					continue
				}
			}
			fmt.Fprintln(l.out, "Conversation cleared.")
			continue
		case strings.HasPrefix(input, "/"):
			fmt.Fprintf(l.out, "Unknown command: %s\n", input)
			continue
		}

		answer, err := l.svc.Ask(ctx, input, l.sessionID)
		if answer.SessionID != "" {
			l.sessionID = answer.SessionID
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(l.out, "Error: %v\n\n", err)
			continue
		}

		fmt.Fprintf(l.out, "%s %s\n", l.paint("\033[32m", "scout:"), answer.Answer)
		if l.verbose {
			fmt.Fprintln(l.out, l.paint("\033[90m", describe(answer)))
		}
		fmt.Fprintln(l.out)
	}
}

func describe(a runtime.Answer) string {
	parts := []string{"route=" + a.Route}
	if a.Keyword != "" {
		parts = append(parts, fmt.Sprintf("keyword=%q", a.Keyword))
	}
	parts = append(parts,
		fmt.Sprintf("documents=%d", len(a.Documents)),
		"trace="+strings.Join(a.Trace, ">"),
		"outcome="+a.Outcome)
	return strings.Join(parts, " ")
}

// AskCmd answers one question and exits.
type AskCmd struct {
	Question []string `arg:"" help:"The question."`
	Session  string   `help:"Session id to continue."`
	JSON     bool     `help:"Print the full answer as JSON."`
}

func (c *AskCmd) Run(cli *CLI, logging *logSetup) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, loader, err := openRuntime(ctx, cli, logging)
	if err != nil {
		return err
	}
	defer rt.Close()
	closeLoader(loader)

	if _, err := rt.EnsureIndex(ctx); err != nil {
		slog.Warn("Knowledge index unavailable", "error", err)
	}
	return ask(ctx, os.Stdout, rt, strings.Join(c.Question, " "), c.Session, c.JSON)
}

func ask(ctx context.Context, out io.Writer, svc asker, question, sessionID string, asJSON bool) error {
	answer, err := svc.Ask(ctx, question, sessionID)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}
	_, err = fmt.Fprintln(out, answer.Answer)
	return err
}
