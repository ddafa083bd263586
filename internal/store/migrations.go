package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/surgehq/surge/pkg/log"
)

// Migration is one forward step of the sqlite schema
type Migration struct {
	Version int
	Name    string
	Up      string
}

// Migrations are applied in order. Never edit an applied migration, append a new one
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "create loadtests",
		Up: `
			CREATE TABLE IF NOT EXISTS loadtests (
				id            TEXT PRIMARY KEY,
				name          TEXT NOT NULL,
				collection_id TEXT NOT NULL DEFAULT '',
				definition    TEXT NOT NULL,
				state         TEXT NOT NULL,
				result        TEXT,
				last_error    TEXT NOT NULL DEFAULT '',
				created_at    INTEGER NOT NULL,
				started_at    INTEGER NOT NULL DEFAULT 0,
				finished_at   INTEGER NOT NULL DEFAULT 0
			);
		`,
	},
	{
		Version: 2,
		Name:    "index collection and state",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_loadtests_collection ON loadtests(collection_id, created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_loadtests_state ON loadtests(state);
		`,
	},
}

// migrate applies every migration newer than the recorded schema version, each in its own transaction
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at INTEGER NOT NULL
		)`); err != nil {
		return errors.Wrap(err, "failed to create migrations table")
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return errors.Wrap(err, "failed to read schema version")
	}

	for _, m := range Migrations {
		if m.Version <= current {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrapf(err, "failed to begin migration %d", m.Version)
		}
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "migration %d (%s) failed", m.Version, m.Name)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
			m.Version, m.Name, time.Now().Unix()); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "failed to record migration %d", m.Version)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "failed to commit migration %d", m.Version)
		}
		log.Debug().Int("version", m.Version).Str("name", m.Name).Msg("applied migration")
	}
	return nil
}
