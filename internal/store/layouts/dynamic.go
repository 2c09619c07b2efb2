package layouts

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/csvstore/internal/core"
	"github.com/JonMunkholm/csvstore/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func init() {
	store.RegisterLayout(Dynamic{})
}

// Dynamic stores each record's field map in a JSONB column, so any CSV shape
// fits. It is the default layout.
type Dynamic struct{}

func (Dynamic) Name() string { return "dynamic" }

func (Dynamic) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS records (
			id         BIGSERIAL PRIMARY KEY,
			dataset_id UUID NOT NULL REFERENCES datasets (id) ON DELETE CASCADE,
			row_index  INTEGER NOT NULL,
			row_data   JSONB NOT NULL,
			UNIQUE (dataset_id, row_index)
		)`,
		`CREATE INDEX IF NOT EXISTS records_dataset_id_idx ON records (dataset_id)`,
		`CREATE INDEX IF NOT EXISTS records_row_data_idx ON records USING GIN (row_data)`,
	}
}

func (Dynamic) Accepts([]string) error { return nil }

var recordColumns = []string{"dataset_id", "row_index", "row_data"}

// InsertRecords streams rows with the COPY protocol.
func (Dynamic) InsertRecords(ctx context.Context, db store.DBTX, datasetID uuid.UUID, rows []core.Fields) error {
	src := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		return []any{datasetID, i, map[string]any(rows[i])}, nil
	})

	copied, err := db.CopyFrom(ctx, pgx.Identifier{"records"}, recordColumns, src)
	if err != nil {
		return err
	}
	if copied != int64(len(rows)) {
		return fmt.Errorf("copied %d of %d records", copied, len(rows))
	}
	return nil
}

// Matches any field whose text form contains the pattern. JSON null yields
// SQL NULL and never matches.
const dynamicSearch = `
AND EXISTS (
	SELECT 1 FROM jsonb_each_text(row_data) AS f (key, value)
	WHERE f.value ILIKE $2 ESCAPE '\'
)`

func (Dynamic) CountRecords(ctx context.Context, db store.DBTX, datasetID uuid.UUID, search string) (int64, error) {
	query := `SELECT count(*) FROM records WHERE dataset_id = $1`
	args := []any{datasetID}
	if search != "" {
		query += dynamicSearch
		args = append(args, store.LikePattern(search))
	}

	var total int64
	err := db.QueryRow(ctx, query, args...).Scan(&total)
	return total, err
}

func (Dynamic) SelectRecords(ctx context.Context, db store.DBTX, datasetID uuid.UUID, search string, limit int, offset int64) ([]core.Record, error) {
	query := `SELECT id, dataset_id, row_index, row_data FROM records WHERE dataset_id = $1`
	args := []any{datasetID}
	if search != "" {
		query += dynamicSearch
		args = append(args, store.LikePattern(search))
	}
	query += fmt.Sprintf(" ORDER BY row_index LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Record, error) {
		var (
			rec core.Record
			raw []byte
		)
		if err := row.Scan(&rec.ID, &rec.DatasetID, &rec.RowIndex, &raw); err != nil {
			return rec, err
		}
		fields, err := store.DecodeFields(raw)
		rec.Fields = fields
		return rec, err
	})
}
