package db

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/veldt/lens/errors"
)

type migration struct {
	version string
	name    string
	sql     string
}

// Migrations run in slice order; version 000 bootstraps the
// schema_migrations table and must stay first.
var migrations = []migration{
	{
		version: "000",
		name:    "create_schema_migrations",
		sql: `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`,
	},
	{
		version: "001",
		name:    "create_queries",
		sql: `
CREATE TABLE IF NOT EXISTS queries (
    id         TEXT PRIMARY KEY,
    schema_id  TEXT NOT NULL,
    name       TEXT NOT NULL,
    expression TEXT NOT NULL,
    list_view  INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_queries_schema ON queries(schema_id);`,
	},
	{
		version: "002",
		name:    "create_documents",
		sql: `
CREATE TABLE IF NOT EXISTS documents (
    id         TEXT PRIMARY KEY,
    schema_id  TEXT NOT NULL,
    body       TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_schema ON documents(schema_id, created_at);`,
	},
}

// Migrate runs all pending migrations.
// If logger is provided, logs migration progress; otherwise operates silently.
func Migrate(db *sql.DB, logger *zap.SugaredLogger) error {
	for _, m := range migrations {
		// Check if already applied (schema_migrations created by 000)
		var exists bool
		err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", m.version).Scan(&exists)
		if err != nil {
			// Table doesn't exist yet - this must be migration 000
			if m.version != "000" {
				return errors.Newf("schema_migrations table missing, but migration is not 000: %s", m.name)
			}
		} else if exists {
			if logger != nil {
				logger.Debugw("Skipping migration (already applied)",
					"migration", m.name,
					"version", m.version,
				)
			}
			continue
		}

		if logger != nil {
			logger.Infow("Applying migration",
				"migration", m.name,
				"version", m.version,
			)
		}

		tx, err := db.Begin()
		if err != nil {
			return errors.Wrapf(err, "begin tx for %s", m.name)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "execute %s", m.name)
		}

		// Record migration (000 creates the table, then records itself)
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "record %s", m.name)
		}

		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "commit %s", m.name)
		}
	}

	if logger != nil {
		logger.Infow("Migrations complete",
			"total_migrations", len(migrations),
		)
	}

	return nil
}
