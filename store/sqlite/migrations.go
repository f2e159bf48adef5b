package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Tether store (SQLite).
var Migrations = migrate.NewGroup("tether")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_tether_pending_requests",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tether_pending_requests (
    id          TEXT PRIMARY KEY,
    req_key     TEXT NOT NULL DEFAULT '',
    method      TEXT NOT NULL DEFAULT '',
    url         TEXT NOT NULL DEFAULT '',
    headers     TEXT NOT NULL DEFAULT '{}',
    body        BLOB,
    created_at  TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_tether_pending_created ON tether_pending_requests (created_at);
CREATE INDEX IF NOT EXISTS idx_tether_pending_key ON tether_pending_requests (req_key);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tether_pending_requests`)
				return err
			},
		},
	)
}
