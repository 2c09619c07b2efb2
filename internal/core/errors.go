package core

// errors.go defines the error taxonomy shared by the parser, the storage
// layer and the services:
//
//   - ValidationError: malformed CSV, client-fixable
//   - ErrNotFound: the referenced dataset does not exist
//   - StorageError: transaction or connectivity failure
//   - TransportError: the upload was rejected before reaching the parser

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a dataset id does not match a stored dataset.
var ErrNotFound = errors.New("dataset not found")

// ErrFileTooLarge is returned when an upload exceeds the configured byte cap.
var ErrFileTooLarge = errors.New("file too large")

// ValidationError carries every problem found in an uploaded CSV. Errors are
// human-readable and returned to the client verbatim.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "invalid csv: " + strings.Join(e.Errors, "; ")
}

// StorageError wraps a failure of the persistent store. Op names the
// repository operation, e.g. "insert records".
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err unless it is nil, already a StorageError or one of
// the domain sentinels that callers match on.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) || errors.Is(err, ErrNotFound) {
		return err
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// TransportError rejects an upload before it reaches the parser, for
// instance a missing form field or a non-CSV file.
type TransportError struct {
	Reason string
}

func (e *TransportError) Error() string {
	return e.Reason
}
