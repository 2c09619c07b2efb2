// Package core provides the CSV ingestion and query logic of csvstore.
//
// The package has no knowledge of HTTP or SQL. Storage is reached through the
// [DatasetWriter] and [DatasetReader] interfaces, implemented by the store
// package and by in-memory fakes in tests.
//
// # Ingestion
//
// [IngestService.Ingest] runs the pipeline for one upload:
//
//  1. Take a slot from the [IngestLimiter]
//  2. Cap the input size, strip a BOM and repair invalid UTF-8
//  3. [Parse] the CSV into columns and typed rows, collecting every problem
//  4. Reject the upload with [ValidationError] if any problem was found
//  5. Persist dataset metadata and records in one transaction
//
// # Type Inference
//
// Cells are converted by [InferValue]: blank cells become nil, true/false in
// any case become bool, numeric literals become int64 or float64, anything
// else stays text.
//
// # Error Handling
//
// Errors fall into four kinds: [ValidationError], [ErrNotFound],
// [StorageError] and [TransportError]. Storage failures are shown to users
// through [MapError], which attaches a support code:
//
//   - DB001-DB008: Database errors (constraints, connections, timeouts)
//   - FILE001-FILE006: File errors (size, format, type)
//   - UPL002-UPL005: Upload errors (busy, cancelled, timeout)
package core
