// Package postgres provides the PostgreSQL transcript store, an optional
// backend for deployments that already run a database server.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/scenepilot/scenepilot/internal/transcript"
	"github.com/scenepilot/scenepilot/pkg/types"
)

// Schema is the embedded transcript schema, applied whole on open.
const Schema = `
CREATE TABLE IF NOT EXISTS transcript (
    id             BIGSERIAL PRIMARY KEY,
    session_id     TEXT NOT NULL DEFAULT 'default',
    role           TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
    content        TEXT NOT NULL,
    is_interactive BOOLEAN NOT NULL DEFAULT FALSE,
    plan_id        TEXT NOT NULL DEFAULT '',
    plan_data      TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_transcript_session
    ON transcript(session_id, created_at);

CREATE TABLE IF NOT EXISTS settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Store implements transcript.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore connects to PostgreSQL and creates the schema.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to connect: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Append records a message and writes the assigned ID back onto msg.
func (s *Store) Append(ctx context.Context, msg *types.TranscriptMessage) error {
	if msg == nil {
		return transcript.ErrInvalidInput
	}
	if msg.Role != types.RoleUser && msg.Role != types.RoleAssistant {
		return fmt.Errorf("%w: unknown role %q", transcript.ErrInvalidInput, msg.Role)
	}
	if msg.Content == "" {
		return fmt.Errorf("%w: content is required", transcript.ErrInvalidInput)
	}
	if msg.SessionID == "" {
		msg.SessionID = "default"
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO transcript (session_id, role, content, is_interactive, plan_id, plan_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		msg.SessionID, msg.Role, msg.Content, msg.IsInteractive,
		msg.PlanID, msg.PlanData, msg.CreatedAt).Scan(&msg.ID)
	if err != nil {
		return fmt.Errorf("postgres: failed to append message: %w", err)
	}
	return nil
}

// Get retrieves a message by ID.
func (s *Store) Get(ctx context.Context, id int64) (*types.TranscriptMessage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, role, content, is_interactive, plan_id, plan_data, created_at
		FROM transcript WHERE id = $1`, id)

	var msg types.TranscriptMessage
	err := row.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content,
		&msg.IsInteractive, &msg.PlanID, &msg.PlanData, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, transcript.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get message %d: %w", id, err)
	}
	return &msg, nil
}

// List retrieves messages with pagination.
func (s *Store) List(ctx context.Context, opts transcript.ListOptions) (*transcript.PaginatedResult[types.TranscriptMessage], error) {
	opts.Normalize()

	where := ""
	args := []any{}
	if opts.SessionID != "" {
		where = "WHERE session_id = $1"
		args = append(args, opts.SessionID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transcript "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("postgres: failed to count messages: %w", err)
	}

	order := "ASC"
	if opts.SortOrder == "desc" {
		order = "DESC"
	}
	offset := (opts.Page - 1) * opts.Limit

	query := fmt.Sprintf(`
		SELECT id, session_id, role, content, is_interactive, plan_id, plan_data, created_at
		FROM transcript %s ORDER BY created_at %s, id %s LIMIT $%d OFFSET $%d`,
		where, order, order, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, opts.Limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list messages: %w", err)
	}
	defer rows.Close()

	items := make([]types.TranscriptMessage, 0, opts.Limit)
	for rows.Next() {
		var msg types.TranscriptMessage
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content,
			&msg.IsInteractive, &msg.PlanID, &msg.PlanData, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan message: %w", err)
		}
		items = append(items, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: row iteration failed: %w", err)
	}

	return &transcript.PaginatedResult[types.TranscriptMessage]{
		Items:    items,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  offset+len(items) < total,
	}, nil
}

// Clear removes all messages for a session, or every message when sessionID
// is empty.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	var err error
	if sessionID == "" {
		_, err = s.db.ExecContext(ctx, "DELETE FROM transcript")
	} else {
		_, err = s.db.ExecContext(ctx, "DELETE FROM transcript WHERE session_id = $1", sessionID)
	}
	if err != nil {
		return fmt.Errorf("postgres: failed to clear transcript: %w", err)
	}
	return nil
}

// Count reports how many messages a session holds.
func (s *Store) Count(ctx context.Context, sessionID string) (int, error) {
	var count int
	var err error
	if sessionID == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transcript").Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transcript WHERE session_id = $1", sessionID).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to count messages: %w", err)
	}
	return count, nil
}

// GetSetting retrieves a persisted setting value.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = $1", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", transcript.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres: failed to get setting %q: %w", key, err)
	}
	return value, nil
}

// SetSetting stores a setting value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: setting key is required", transcript.ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("postgres: failed to set setting %q: %w", key, err)
	}
	return nil
}

// Settings returns all persisted settings.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan setting: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: row iteration failed: %w", err)
	}
	return out, nil
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
