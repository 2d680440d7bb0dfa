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

package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kadirpekel/scout/pkg/model"
)

const createMessagesSchemaSQL = `
CREATE TABLE IF NOT EXISTS scout_messages (
    session_id VARCHAR(255) NOT NULL,
    seq INTEGER NOT NULL,
    role VARCHAR(16) NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (session_id, seq)
)`

// SQLStore keeps histories in a SQL database (postgres, mysql or sqlite).
type SQLStore struct {
	db      *sql.DB
	dialect string
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates the schema if needed. The *sql.DB is owned by the
// caller's pool and is not closed by Close.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	switch dialect {
	case "postgres", "mysql", "sqlite":
	case "sqlite3":
		dialect = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQLStore{db: db, dialect: dialect}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, createMessagesSchemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Load(ctx context.Context, id string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT role, content FROM scout_messages WHERE session_id = ? ORDER BY seq`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, model.Message{Role: model.Role(role), Text: content})
	}
	return msgs, rows.Err()
}

func (s *SQLStore) Append(ctx context.Context, id string, msgs ...model.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var last int
	if err := tx.QueryRowContext(ctx,
		s.rebind(`SELECT COALESCE(MAX(seq), 0) FROM scout_messages WHERE session_id = ?`), id).Scan(&last); err != nil {
		return fmt.Errorf("failed to read sequence: %w", err)
	}

	insert := s.rebind(`INSERT INTO scout_messages (session_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)`)
	now := time.Now().UTC()
	for i, m := range msgs {
		if _, err := tx.ExecContext(ctx, insert, id, last+i+1, string(m.Role), m.Text, now); err != nil {
			return fmt.Errorf("failed to append message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM scout_messages WHERE session_id = ?`), id); err != nil {
		return fmt.Errorf("failed to clear session %s: %w", id, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return nil
}

// rebind converts ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 10)
	n := 1
	for _, c := range query {
		if c == '?' {
			fmt.Fprintf(&b, "$%d", n)
			n++
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
