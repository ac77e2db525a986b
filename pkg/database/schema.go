package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Each collection keeps its record as a JSONB document next to the columns used for lookups.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL,
		role TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		permissions TEXT[] NOT NULL DEFAULT '{}',
		last_login TIMESTAMPTZ,
		password_changed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token TEXT NOT NULL UNIQUE,
		remember_me BOOLEAN NOT NULL DEFAULT FALSE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		revoked BOOLEAN NOT NULL DEFAULT FALSE,
		revoked_at TIMESTAMPTZ,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		action TEXT NOT NULL,
		resource TEXT NOT NULL,
		resource_id TEXT,
		old_values JSONB,
		new_values JSONB,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS enquiries (
		id TEXT PRIMARY KEY,
		document JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		enquiry_id TEXT NOT NULL,
		enquiry_name TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		amount NUMERIC(14,2) NOT NULL,
		mode TEXT NOT NULL,
		offline_type TEXT,
		reference TEXT,
		note TEXT,
		created_by TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS payments_enquiry_id_idx ON payments (enquiry_id)`,
	`CREATE TABLE IF NOT EXISTS advertisements (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone_no TEXT NOT NULL,
		email TEXT NOT NULL,
		aadhar_no TEXT,
		pan_no TEXT,
		imported_at TIMESTAMPTZ NOT NULL,
		imported_by TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS advertisements_phone_no_idx ON advertisements (phone_no)`,
}

// EnsureSchema creates the collections when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
