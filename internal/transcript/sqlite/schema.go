package sqlite

// Schema is the embedded transcript schema, applied whole on open. Every
// statement is idempotent so re-opening an existing database is safe.
const Schema = `
CREATE TABLE IF NOT EXISTS transcript (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id     TEXT NOT NULL DEFAULT 'default',
    role           TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
    content        TEXT NOT NULL,
    is_interactive INTEGER NOT NULL DEFAULT 0,
    plan_id        TEXT NOT NULL DEFAULT '',
    plan_data      TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_transcript_session
    ON transcript(session_id, created_at);

CREATE TABLE IF NOT EXISTS settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
