package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. Statuses and roles are closed sets
// enforced both here and at the API boundary.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'staff' CHECK (role IN ('admin', 'staff', 'faculty', 'director')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS items (
    id              INTEGER PRIMARY KEY,
    name            TEXT NOT NULL,
    category        TEXT NOT NULL,
    location        TEXT,
    source          TEXT,
    quantity        INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
    min_stock_level INTEGER NOT NULL DEFAULT 0 CHECK (min_stock_level >= 0),
    image           BLOB,
    image_mime      TEXT,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at      DATETIME
);

CREATE TABLE IF NOT EXISTS requisitions (
    id               INTEGER PRIMARY KEY,
    requester_id     INTEGER NOT NULL REFERENCES users(id),
    status           TEXT NOT NULL DEFAULT 'pending'
                     CHECK (status IN ('pending', 'approved', 'rejected', 'fulfilled', 'cancelled')),
    approved_by      INTEGER REFERENCES users(id),
    approved_at      DATETIME,
    rejected_by      INTEGER REFERENCES users(id),
    rejected_at      DATETIME,
    rejection_reason TEXT,
    fulfilled_by     INTEGER REFERENCES users(id),
    fulfilled_at     DATETIME,
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_requisitions_requester ON requisitions(requester_id);
CREATE INDEX IF NOT EXISTS idx_requisitions_status ON requisitions(status);

CREATE TABLE IF NOT EXISTS requisition_lines (
    id             INTEGER PRIMARY KEY,
    requisition_id INTEGER NOT NULL REFERENCES requisitions(id),
    item_id        INTEGER NOT NULL REFERENCES items(id),
    item_name      TEXT NOT NULL,
    quantity       INTEGER NOT NULL CHECK (quantity > 0),
    purpose        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_requisition_lines_requisition ON requisition_lines(requisition_id);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
