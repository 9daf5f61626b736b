// Package sqlite provides the SQLite transcript store, the default backend
// for chat history persistence.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scenepilot/scenepilot/internal/transcript"
	"github.com/scenepilot/scenepilot/pkg/types"
)

// Store implements transcript.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database, configures WAL mode, and creates the
// schema. The dsn is a file path or ":memory:".
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load.
	// WAL mode lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s failed: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
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

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO transcript (session_id, role, content, is_interactive, plan_id, plan_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.SessionID, msg.Role, msg.Content, boolToInt(msg.IsInteractive),
		msg.PlanID, msg.PlanData, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to append message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: failed to read inserted id: %w", err)
	}
	msg.ID = id
	return nil
}

// Get retrieves a message by ID.
func (s *Store) Get(ctx context.Context, id int64) (*types.TranscriptMessage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, role, content, is_interactive, plan_id, plan_data, created_at
		FROM transcript WHERE id = ?`, id)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, transcript.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get message %d: %w", id, err)
	}
	return msg, nil
}

// List retrieves messages with pagination.
func (s *Store) List(ctx context.Context, opts transcript.ListOptions) (*transcript.PaginatedResult[types.TranscriptMessage], error) {
	opts.Normalize()

	where := ""
	args := []any{}
	if opts.SessionID != "" {
		where = "WHERE session_id = ?"
		args = append(args, opts.SessionID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transcript "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: failed to count messages: %w", err)
	}

	order := "ASC"
	if opts.SortOrder == "desc" {
		order = "DESC"
	}
	offset := (opts.Page - 1) * opts.Limit

	query := fmt.Sprintf(`
		SELECT id, session_id, role, content, is_interactive, plan_id, plan_data, created_at
		FROM transcript %s ORDER BY created_at %s, id %s LIMIT ? OFFSET ?`, where, order, order)
	rows, err := s.db.QueryContext(ctx, query, append(args, opts.Limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list messages: %w", err)
	}
	defer rows.Close()

	items := make([]types.TranscriptMessage, 0, opts.Limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan message: %w", err)
		}
		items = append(items, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: row iteration failed: %w", err)
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
		_, err = s.db.ExecContext(ctx, "DELETE FROM transcript WHERE session_id = ?", sessionID)
	}
	if err != nil {
		return fmt.Errorf("sqlite: failed to clear transcript: %w", err)
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
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transcript WHERE session_id = ?", sessionID).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to count messages: %w", err)
	}
	return count, nil
}

// GetSetting retrieves a persisted setting value.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", transcript.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: failed to get setting %q: %w", key, err)
	}
	return value, nil
}

// SetSetting stores a setting value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: setting key is required", transcript.ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to set setting %q: %w", key, err)
	}
	return nil
}

// Settings returns all persisted settings.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan setting: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: row iteration failed: %w", err)
	}
	return out, nil
}

// GetDB exposes the underlying connection for backup verification.
func (s *Store) GetDB() *sql.DB {
	return s.db
}

// Close releases the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (*types.TranscriptMessage, error) {
	var msg types.TranscriptMessage
	var interactive int
	if err := row.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content,
		&interactive, &msg.PlanID, &msg.PlanData, &msg.CreatedAt); err != nil {
		return nil, err
	}
	msg.IsInteractive = interactive != 0
	return &msg, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
