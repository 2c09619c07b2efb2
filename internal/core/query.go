package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DatasetPage is one page of the dataset listing, newest first.
type DatasetPage struct {
	Datasets   []Dataset
	Pagination Pagination
}

// RecordPage is one page of a dataset's records in row order.
type RecordPage struct {
	Records    []Record
	Columns    []string
	Pagination Pagination
}

// QueryService serves dataset listings, record browsing and deletion.
type QueryService struct {
	store   DatasetReader
	pages   PageParams
	metrics *Metrics
}

// NewQueryService creates a QueryService reading from store.
func NewQueryService(store DatasetReader, pages PageParams, metrics *Metrics) *QueryService {
	return &QueryService{store: store, pages: pages, metrics: metrics}
}

// ListDatasets returns a page of datasets. Out of range paging values are
// normalized rather than rejected.
func (s *QueryService) ListDatasets(ctx context.Context, page, limit int) (*DatasetPage, error) {
	defer s.observe("list_datasets", time.Now())

	page, limit = s.pages.Normalize(page, limit)
	datasets, total, err := s.store.ListDatasets(ctx, page, limit)
	if err != nil {
		return nil, NewStorageError("list datasets", err)
	}
	if datasets == nil {
		datasets = []Dataset{}
	}

	return &DatasetPage{
		Datasets:   datasets,
		Pagination: NewPagination(total, page, limit),
	}, nil
}

// ListRecords returns a page of records of one dataset, optionally filtered
// to those where any field contains search case-insensitively. It returns
// ErrNotFound when the dataset does not exist.
func (s *QueryService) ListRecords(ctx context.Context, datasetID uuid.UUID, page, limit int, search string) (*RecordPage, error) {
	defer s.observe("list_records", time.Now())

	columns, err := s.store.GetColumns(ctx, datasetID)
	if err != nil {
		return nil, NewStorageError("get columns", err)
	}

	page, limit = s.pages.Normalize(page, limit)
	records, total, err := s.store.ListRecords(ctx, datasetID, page, limit, search)
	if err != nil {
		return nil, NewStorageError("list records", err)
	}
	if records == nil {
		records = []Record{}
	}

	return &RecordPage{
		Records:    records,
		Columns:    columns,
		Pagination: NewPagination(total, page, limit),
	}, nil
}

// DeleteDataset removes a dataset and its records. It returns ErrNotFound
// when no dataset has that id.
func (s *QueryService) DeleteDataset(ctx context.Context, datasetID uuid.UUID) error {
	defer s.observe("delete_dataset", time.Now())

	deleted, err := s.store.DeleteDataset(ctx, datasetID)
	if err != nil {
		return NewStorageError("delete dataset", err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

func (s *QueryService) observe(op string, start time.Time) {
	s.metrics.RecordQuery(op, time.Since(start).Seconds())
}
