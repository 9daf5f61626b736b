package types

import "time"

// Transcript role constants
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TranscriptMessage is one persisted chat history entry. Interactive entries
// (plan previews, step results) carry the plan linkage so a host UI can
// re-offer the continue/approve actions after a restart.
type TranscriptMessage struct {
	ID            int64     `json:"id,omitempty"`             // Assigned by the store
	SessionID     string    `json:"session_id,omitempty"`    // Session the message belongs to
	Role          string    `json:"role"`                     // user or assistant
	Content       string    `json:"content"`                  // Message text
	IsInteractive bool      `json:"is_interactive,omitempty"` // Whether the entry awaits a user action
	PlanID        string    `json:"plan_id,omitempty"`        // Linked plan for interactive entries
	PlanData      string    `json:"plan_data,omitempty"`      // JSON-encoded step previews for plan entries
	CreatedAt     time.Time `json:"created_at"`               // When the message was recorded
}

// TranscriptExport is the JSON document produced by transcript export and
// accepted by import.
type TranscriptExport struct {
	Version    string              `json:"version"`              // Export format version
	SessionID  string              `json:"session_id,omitempty"` // Source session
	ExportedAt time.Time           `json:"exported_at"`
	Messages   []TranscriptMessage `json:"messages"`
}

// TranscriptExportVersion is the current export format version.
const TranscriptExportVersion = "1.0"
