// Package store persists datasets and their records in PostgreSQL.
//
// The Repository owns the connection pool and every transaction boundary.
// Record storage is delegated to a Layout chosen at startup; layouts register
// themselves from the layouts subpackage, which must be imported by the
// binary.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/csvstore/internal/config"
	"github.com/JonMunkholm/csvstore/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/patrickmn/go-cache"
)

// DefaultColumnsCacheTTL applies when no TTL is configured.
const DefaultColumnsCacheTTL = 10 * time.Minute

var readOnlySnapshot = pgx.TxOptions{
	IsoLevel:   pgx.RepeatableRead,
	AccessMode: pgx.ReadOnly,
}

// Repository implements core.DatasetWriter and core.DatasetReader.
type Repository struct {
	pool    *pgxpool.Pool
	layout  Layout
	columns *cache.Cache
}

// Open connects to PostgreSQL and verifies the connection.
// Close must be called to release the pool.
func Open(ctx context.Context, db config.DatabaseConfig, storage config.StorageConfig) (*Repository, error) {
	layout, ok := LookupLayout(storage.Layout)
	if !ok {
		return nil, fmt.Errorf("unknown storage layout %q (registered: %v)", storage.Layout, LayoutNames())
	}

	poolConfig, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if db.MaxConns > 0 {
		poolConfig.MaxConns = int32(db.MaxConns)
	}
	if db.MinConns > 0 {
		poolConfig.MinConns = int32(db.MinConns)
	}
	if db.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = db.MaxConnLifetime
	}
	if db.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = db.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return New(pool, layout, storage.ColumnsCacheTTL), nil
}

// New wraps an existing pool. The Repository takes ownership of it.
func New(pool *pgxpool.Pool, layout Layout, columnsTTL time.Duration) *Repository {
	if columnsTTL <= 0 {
		columnsTTL = DefaultColumnsCacheTTL
	}
	return &Repository{
		pool:    pool,
		layout:  layout,
		columns: cache.New(columnsTTL, 2*columnsTTL),
	}
}

// Close releases all pooled connections.
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Layout returns the record layout in use.
func (r *Repository) Layout() Layout {
	return r.layout
}

const insertDatasetSQL = `
INSERT INTO datasets (id, filename, row_count, columns)
VALUES ($1, $2, $3, $4)
RETURNING upload_date`

func insertDataset(ctx context.Context, db DBTX, name string, rowCount int, columns []string) (uuid.UUID, time.Time, error) {
	id := uuid.New()
	var uploaded time.Time
	if err := db.QueryRow(ctx, insertDatasetSQL, id, name, rowCount, columns).Scan(&uploaded); err != nil {
		return uuid.Nil, time.Time{}, err
	}
	return id, uploaded, nil
}

// CreateDataset stores dataset metadata on its own and returns the new id.
// Ingestion uses CreateDatasetWithRecords instead.
func (r *Repository) CreateDataset(ctx context.Context, name string, rowCount int, columns []string) (uuid.UUID, error) {
	id, _, err := insertDataset(ctx, r.pool, name, rowCount, columns)
	if err != nil {
		return uuid.Nil, core.NewStorageError("create dataset", err)
	}
	return id, nil
}

// InsertRecords writes all rows of a dataset in one transaction. Either every
// row is committed or none is.
func (r *Repository) InsertRecords(ctx context.Context, datasetID uuid.UUID, rows []core.Fields) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return r.layout.InsertRecords(ctx, tx, datasetID, rows)
	})
	return core.NewStorageError("insert records", err)
}

// CreateDatasetWithRecords stores the metadata and all records of an upload in
// a single transaction, so a failed row insert leaves no dataset behind.
func (r *Repository) CreateDatasetWithRecords(ctx context.Context, name string, columns []string, rows []core.Fields) (*core.Dataset, error) {
	if err := r.layout.Accepts(columns); err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, core.NewStorageError("begin transaction", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	id, uploaded, err := insertDataset(ctx, tx, name, len(rows), columns)
	if err != nil {
		return nil, core.NewStorageError("create dataset", err)
	}

	if err := r.layout.InsertRecords(ctx, tx, id, rows); err != nil {
		return nil, core.NewStorageError("insert records", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, core.NewStorageError("commit dataset", err)
	}

	r.columns.Set(id.String(), columns, cache.DefaultExpiration)

	return &core.Dataset{
		ID:         id,
		Filename:   name,
		UploadDate: uploaded,
		RowCount:   len(rows),
		Columns:    columns,
	}, nil
}

const (
	countDatasetsSQL = `SELECT count(*) FROM datasets`
	listDatasetsSQL  = `
SELECT id, filename, upload_date, row_count, columns
FROM datasets
ORDER BY upload_date DESC, id
LIMIT $1 OFFSET $2`
)

// ListDatasets returns a page of datasets, most recent first, and the total
// number of datasets.
func (r *Repository) ListDatasets(ctx context.Context, page, pageSize int) ([]core.Dataset, int64, error) {
	var (
		total    int64
		datasets []core.Dataset
	)

	err := pgx.BeginTxFunc(ctx, r.pool, readOnlySnapshot, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, countDatasetsSQL).Scan(&total); err != nil {
			return fmt.Errorf("count datasets: %w", err)
		}

		rows, err := tx.Query(ctx, listDatasetsSQL, pageSize, core.Offset(page, pageSize))
		if err != nil {
			return err
		}
		datasets, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Dataset, error) {
			var ds core.Dataset
			err := row.Scan(&ds.ID, &ds.Filename, &ds.UploadDate, &ds.RowCount, &ds.Columns)
			return ds, err
		})
		return err
	})
	if err != nil {
		return nil, 0, core.NewStorageError("list datasets", err)
	}
	return datasets, total, nil
}

const datasetExistsSQL = `SELECT EXISTS (SELECT 1 FROM datasets WHERE id = $1)`

// ListRecords returns a page of a dataset's records in row order. A non-empty
// search keeps records where any field contains the term, ignoring case; the
// total counts the filtered set. It returns core.ErrNotFound when the dataset
// does not exist, dropping any columns still cached for it.
func (r *Repository) ListRecords(ctx context.Context, datasetID uuid.UUID, page, pageSize int, search string) ([]core.Record, int64, error) {
	var (
		total   int64
		records []core.Record
	)

	err := pgx.BeginTxFunc(ctx, r.pool, readOnlySnapshot, func(tx pgx.Tx) error {
		var err error
		total, err = r.layout.CountRecords(ctx, tx, datasetID, search)
		if err != nil {
			return fmt.Errorf("count records: %w", err)
		}
		if total == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, datasetExistsSQL, datasetID).Scan(&exists); err != nil {
				return fmt.Errorf("check dataset: %w", err)
			}
			if !exists {
				return core.ErrNotFound
			}
			return nil
		}
		records, err = r.layout.SelectRecords(ctx, tx, datasetID, search, pageSize, core.Offset(page, pageSize))
		return err
	})
	if errors.Is(err, core.ErrNotFound) {
		// A lookup racing a delete can cache columns after the eviction.
		r.columns.Delete(datasetID.String())
		return nil, 0, core.ErrNotFound
	}
	if err != nil {
		return nil, 0, core.NewStorageError("list records", err)
	}
	return records, total, nil
}

const selectColumnsSQL = `SELECT columns FROM datasets WHERE id = $1`

// GetColumns returns the ordered column names of a dataset, or
// core.ErrNotFound. Column lists never change, so they are served from an
// in-process cache after the first lookup.
func (r *Repository) GetColumns(ctx context.Context, datasetID uuid.UUID) ([]string, error) {
	key := datasetID.String()
	if cached, ok := r.columns.Get(key); ok {
		return cached.([]string), nil
	}

	var columns []string
	err := r.pool.QueryRow(ctx, selectColumnsSQL, datasetID).Scan(&columns)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, core.NewStorageError("get columns", err)
	}

	r.columns.Set(key, columns, cache.DefaultExpiration)
	return columns, nil
}

const deleteDatasetSQL = `DELETE FROM datasets WHERE id = $1`

// DeleteDataset removes a dataset; its records go with it through the
// cascading foreign key. It reports whether the dataset existed.
func (r *Repository) DeleteDataset(ctx context.Context, datasetID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, deleteDatasetSQL, datasetID)
	if err != nil {
		return false, core.NewStorageError("delete dataset", err)
	}

	r.columns.Delete(datasetID.String())

	deleted := tag.RowsAffected() > 0
	if deleted {
		slog.Debug("dataset deleted", "dataset_id", datasetID)
	}
	return deleted, nil
}
