package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/csvstore/internal/logging"
	"github.com/google/uuid"
)

// DefaultIngestTimeout bounds the persist transaction when no timeout is configured.
const DefaultIngestTimeout = 2 * time.Minute

// IngestOptions configures an IngestService. Zero values disable the size
// cap, the limiter and metrics.
type IngestOptions struct {
	MaxFileSize int64
	Timeout     time.Duration
	Limiter     *IngestLimiter
	Metrics     *Metrics
}

// IngestResult describes a stored upload.
type IngestResult struct {
	DatasetID uuid.UUID
	Filename  string
	RowCount  int
	Columns   []string
}

// IngestService parses uploads and persists them through a DatasetWriter.
type IngestService struct {
	store       DatasetWriter
	maxFileSize int64
	timeout     time.Duration
	limiter     *IngestLimiter
	metrics     *Metrics
}

// NewIngestService creates an IngestService writing to store.
func NewIngestService(store DatasetWriter, opts IngestOptions) *IngestService {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultIngestTimeout
	}
	return &IngestService{
		store:       store,
		maxFileSize: opts.MaxFileSize,
		timeout:     timeout,
		limiter:     opts.Limiter,
		metrics:     opts.Metrics,
	}
}

// Ingest parses r and stores it as a new dataset named filename.
//
// A file with any parse problem returns *ValidationError and nothing is
// written. Dataset metadata and records are committed in one transaction, so
// a failed insert leaves no trace. Other failures are ErrTooManyUploads,
// ErrFileTooLarge, a context error, or *StorageError.
func (s *IngestService) Ingest(ctx context.Context, r io.Reader, filename string) (*IngestResult, error) {
	log := logging.WithFields(ctx, "filename", filename)
	start := time.Now()

	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx); err != nil {
			s.metrics.RecordIngest(OutcomeRejected, 0, 0, time.Since(start).Seconds())
			log.Warn("ingest slot unavailable", "error", err)
			return nil, err
		}
		defer s.limiter.Release()
	}

	input := NewSizeCapReader(r, s.maxFileSize)
	parsed, err := Parse(input)
	if err != nil {
		s.metrics.RecordIngest(OutcomeRejected, 0, input.BytesRead, time.Since(start).Seconds())
		if errors.Is(err, ErrFileTooLarge) {
			return nil, ErrFileTooLarge
		}
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	if len(parsed.Errors) > 0 {
		s.metrics.RecordIngest(OutcomeInvalid, 0, input.BytesRead, time.Since(start).Seconds())
		log.Info("upload rejected", "errors", len(parsed.Errors))
		return nil, &ValidationError{Errors: parsed.Errors}
	}

	persistCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	dataset, err := s.store.CreateDatasetWithRecords(persistCtx, filename, parsed.Columns, parsed.Rows)
	if err != nil {
		s.metrics.RecordIngest(OutcomeError, 0, input.BytesRead, time.Since(start).Seconds())
		var ve *ValidationError
		if errors.As(err, &ve) {
			return nil, err
		}
		log.Error("persist upload failed", "rows", len(parsed.Rows), "error", err)
		return nil, NewStorageError("create dataset", err)
	}

	s.metrics.RecordIngest(OutcomeSuccess, dataset.RowCount, input.BytesRead, time.Since(start).Seconds())
	log.Info("upload stored",
		"dataset_id", dataset.ID,
		"rows", dataset.RowCount,
		"columns", len(dataset.Columns),
		"duration", time.Since(start),
	)

	return &IngestResult{
		DatasetID: dataset.ID,
		Filename:  dataset.Filename,
		RowCount:  dataset.RowCount,
		Columns:   dataset.Columns,
	}, nil
}
