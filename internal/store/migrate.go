package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

// migrationLockID serializes concurrent migrations from several instances.
const migrationLockID = 0x637376

var baseSchema = []string{
	`CREATE TABLE IF NOT EXISTS datasets (
		id          UUID PRIMARY KEY,
		filename    TEXT NOT NULL,
		upload_date TIMESTAMPTZ NOT NULL DEFAULT now(),
		row_count   INTEGER NOT NULL CHECK (row_count >= 0),
		columns     JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS datasets_upload_date_idx ON datasets (upload_date DESC)`,
}

// Migrate creates the datasets table and the record table of the active
// layout. It is idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	statements := append(append([]string{}, baseSchema...), r.layout.Schema()...)

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		for _, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	slog.Info("schema ready", "layout", r.layout.Name(), "statements", len(statements))
	return nil
}
