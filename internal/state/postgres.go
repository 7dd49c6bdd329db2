package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversation checkpoints in PostgreSQL. The full
// state record is stored as JSONB; the columns lifted out of it exist only to
// index the expiry sweep.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			conversation_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			status TEXT NOT NULL,
			last_activity TIMESTAMPTZ NOT NULL,
			timeout_minutes INTEGER NOT NULL,
			state JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_last_activity ON conversations (last_activity) WHERE status <> 'closed';`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init checkpoint schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, c *Conversation) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode conversation %s: %w", c.ConversationID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO conversations (conversation_id, session_id, status, last_activity, timeout_minutes, state, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (conversation_id) DO UPDATE SET
			session_id=EXCLUDED.session_id,
			status=EXCLUDED.status,
			last_activity=EXCLUDED.last_activity,
			timeout_minutes=EXCLUDED.timeout_minutes,
			state=EXCLUDED.state,
			updated_at=now()`,
		c.ConversationID, c.SessionID, string(c.Status), c.LastActivity, c.TimeoutMinutes, raw,
	)
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", c.ConversationID, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, conversationID string) (*Conversation, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM conversations WHERE conversation_id=$1`,
		conversationID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	var c Conversation
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", conversationID, err)
	}
	return &c, nil
}

func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT conversation_id FROM conversations
		 WHERE status <> 'closed'
		   AND timeout_minutes > 0
		   AND last_activity + (timeout_minutes * INTERVAL '1 minute') < $1`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired conversations: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired row: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
