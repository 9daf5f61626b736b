// Package transcript provides persistent chat history for the ScenePilot
// bridge. The store keeps an append-only message log per session plus a
// key-value settings table, with SQLite and PostgreSQL backends selected by
// configuration.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scenepilot/scenepilot/pkg/types"
)

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// Store persists chat history and bridge settings.
type Store interface {
	// Append records a message and assigns its ID and CreatedAt (when unset).
	Append(ctx context.Context, msg *types.TranscriptMessage) error

	// Get retrieves a message by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id int64) (*types.TranscriptMessage, error)

	// List retrieves messages with pagination, oldest or newest first by
	// opts.SortOrder.
	List(ctx context.Context, opts ListOptions) (*PaginatedResult[types.TranscriptMessage], error)

	// Clear removes all messages for a session. An empty session id clears
	// every session.
	Clear(ctx context.Context, sessionID string) error

	// Count reports how many messages a session holds. An empty session id
	// counts every session.
	Count(ctx context.Context, sessionID string) (int, error)

	// GetSetting retrieves a persisted setting value. Returns ErrNotFound
	// when the key has never been set.
	GetSetting(ctx context.Context, key string) (string, error)

	// SetSetting stores a setting value (upsert semantics).
	SetSetting(ctx context.Context, key, value string) error

	// Settings returns all persisted settings.
	Settings(ctx context.Context) (map[string]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// PaginatedResult is a page of results with position metadata.
type PaginatedResult[T any] struct {
	// Items is the slice of results for the current page.
	Items []T

	// Total is the total number of items across all pages.
	Total int

	// Page is the current page number (1-indexed).
	Page int

	// PageSize is the number of items per page.
	PageSize int

	// HasMore indicates whether there are more pages available.
	HasMore bool
}

// ListOptions provides pagination and filtering for List.
type ListOptions struct {
	// SessionID filters to one session. Empty means all sessions.
	SessionID string

	// Page is the page number to retrieve (1-indexed, default: 1).
	Page int

	// Limit is the number of items per page (default: 50, max: 500).
	Limit int

	// SortOrder is "asc" (oldest first, the default) or "desc".
	SortOrder string
}

// Normalize applies defaults and clamps limits.
func (o *ListOptions) Normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = 50
	}
	if o.Limit > 500 {
		o.Limit = 500
	}
	if o.SortOrder != "desc" {
		o.SortOrder = "asc"
	}
}

// Export collects a session's full history into an export document.
func Export(ctx context.Context, store Store, sessionID string) (*types.TranscriptExport, error) {
	export := &types.TranscriptExport{
		Version:    types.TranscriptExportVersion,
		SessionID:  sessionID,
		ExportedAt: time.Now().UTC(),
	}

	opts := ListOptions{SessionID: sessionID, Limit: 500}
	for page := 1; ; page++ {
		opts.Page = page
		result, err := store.List(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("transcript: export failed at page %d: %w", page, err)
		}
		export.Messages = append(export.Messages, result.Items...)
		if !result.HasMore {
			break
		}
	}
	return export, nil
}

// Import appends every message from an export document and returns the
// number imported. IDs from the source document are discarded; original
// timestamps are preserved.
func Import(ctx context.Context, store Store, export *types.TranscriptExport) (int, error) {
	if export == nil {
		return 0, ErrInvalidInput
	}
	if export.Version != types.TranscriptExportVersion {
		return 0, fmt.Errorf("%w: unsupported export version %q", ErrInvalidInput, export.Version)
	}

	imported := 0
	for i := range export.Messages {
		msg := export.Messages[i]
		msg.ID = 0
		if msg.SessionID == "" {
			msg.SessionID = export.SessionID
		}
		if err := store.Append(ctx, &msg); err != nil {
			return imported, fmt.Errorf("transcript: import failed at message %d: %w", i, err)
		}
		imported++
	}
	return imported, nil
}
