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

// Package session stores per-session conversation history between turns.
package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/model"
	"github.com/kadirpekel/scout/pkg/utils"
)

// Store persists the ordered message history of each session.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns the history in conversation order. An unknown session
	// has an empty history.
	Load(ctx context.Context, id string) ([]model.Message, error)

	// Append adds messages to the end of the history.
	Append(ctx context.Context, id string, msgs ...model.Message) error

	// Clear removes the history of a session.
	Clear(ctx context.Context, id string) error

	Close() error
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id is usable as a session key.
func ValidID(id string) bool {
	return id != "" && len(id) <= 255 && strings.TrimSpace(id) == id
}

// New builds the configured store. The pool is only used by the sql backend.
func New(ctx context.Context, cfg config.SessionConfig, pool *config.DBPool) (Store, error) {
	switch cfg.Backend {
	case config.SessionMemory, "":
		return NewMemoryStore(), nil
	case config.SessionSQL:
		if cfg.Database == nil {
			return nil, fmt.Errorf("session database is required for the sql backend")
		}
		db, err := pool.Get(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(ctx, db, cfg.Database.Dialect())
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// Trim keeps the most recent messages that fit within maxTokens. A
// non-positive limit keeps everything.
func Trim(counter *utils.TokenCounter, msgs []model.Message, maxTokens int) []model.Message {
	if maxTokens <= 0 || len(msgs) == 0 {
		return msgs
	}
	flat := make([]utils.Message, len(msgs))
	for i, m := range msgs {
		flat[i] = utils.Message{Role: string(m.Role), Content: m.Text}
	}
	kept := counter.FitWithinLimit(flat, maxTokens)
	return msgs[len(msgs)-len(kept):]
}
