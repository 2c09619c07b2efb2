package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Fields maps a column name to its inferred scalar value: string, int64,
// float64, bool or nil.
type Fields map[string]any

// Dataset is the metadata of one uploaded CSV file.
type Dataset struct {
	ID         uuid.UUID `json:"id"`
	Filename   string    `json:"filename"`
	UploadDate time.Time `json:"upload_date"`
	RowCount   int       `json:"row_count"`
	Columns    []string  `json:"columns"`
}

// Record is one data row of a Dataset. RowIndex is the 0-based position of
// the row in the original file.
type Record struct {
	ID        int64     `json:"id"`
	DatasetID uuid.UUID `json:"file_id"`
	RowIndex  int       `json:"row_index"`
	Fields    Fields    `json:"row_data"`
}

// ParseResult is the outcome of parsing a CSV file. A non-empty Errors list
// means the upload must be rejected as a whole.
type ParseResult struct {
	Columns []string
	Rows    []Fields
	Errors  []string
}

// DatasetWriter persists a parsed upload. Implementations must create the
// dataset metadata and all of its records in a single transaction.
type DatasetWriter interface {
	CreateDatasetWithRecords(ctx context.Context, name string, columns []string, rows []Fields) (*Dataset, error)
}

// DatasetReader serves reads and deletion of stored datasets.
//
// GetColumns and ListRecords return ErrNotFound for an unknown dataset.
// DeleteDataset reports whether a dataset was present.
type DatasetReader interface {
	ListDatasets(ctx context.Context, page, pageSize int) ([]Dataset, int64, error)
	ListRecords(ctx context.Context, datasetID uuid.UUID, page, pageSize int, search string) ([]Record, int64, error)
	GetColumns(ctx context.Context, datasetID uuid.UUID) ([]string, error)
	DeleteDataset(ctx context.Context, datasetID uuid.UUID) (bool, error)
}
