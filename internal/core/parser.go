package core

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Structural validation messages, appended after any per-line errors.
const (
	MsgNoColumns        = "CSV file has no columns"
	MsgNoData           = "CSV file contains no data"
	MsgDuplicateHeaders = "CSV file contains duplicate column headers"
)

const msgNULField = "Invalid character NUL in field"

// Parse reads a CSV file whose first non-empty record is the header. A line
// of delimiters only, such as ",,", is a row whose values are all nil.
//
// Problems with the content are collected in ParseResult.Errors and parsing
// continues past them; lines that produced an error are left out of Rows.
// The returned error is non-nil only when r itself fails, including
// ErrFileTooLarge from a SizeCapReader.
func Parse(r io.Reader) (*ParseResult, error) {
	reader := csv.NewReader(NormalizeInput(r))
	reader.FieldsPerRecord = -1

	result := &ParseResult{
		Columns: []string{},
		Rows:    []Fields{},
		Errors:  []string{},
	}
	headerSeen := false

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, fmt.Errorf("read csv: %w", err)
			}
			result.Errors = append(result.Errors, lineError(pe.StartLine, describeParseError(pe)))
			headerSeen = true
			continue
		}

		if isEmptyRecord(record) {
			continue
		}
		if i := nulField(record); i >= 0 {
			line, _ := reader.FieldPos(i)
			result.Errors = append(result.Errors, lineError(line, msgNULField))
			headerSeen = true
			continue
		}

		if !headerSeen {
			headerSeen = true
			result.Columns = cleanHeaders(record)
			continue
		}
		if len(result.Columns) == 0 {
			continue
		}

		line, _ := reader.FieldPos(0)
		if msg := fieldCountMismatch(len(result.Columns), len(record)); msg != "" {
			result.Errors = append(result.Errors, lineError(line, msg))
			continue
		}

		fields := make(Fields, len(record))
		for i, col := range result.Columns {
			fields[col] = InferValue(record[i])
		}
		result.Rows = append(result.Rows, fields)
	}

	result.Errors = append(result.Errors, structuralErrors(result)...)
	return result, nil
}

// ParseBytes parses an in-memory CSV file.
func ParseBytes(data []byte) (*ParseResult, error) {
	return Parse(bytes.NewReader(data))
}

func structuralErrors(result *ParseResult) []string {
	var errs []string

	for i, col := range result.Columns {
		if col == "" {
			errs = append(errs, fmt.Sprintf("CSV file has an empty column header at position %d", i+1))
		}
	}
	if len(result.Columns) == 0 {
		errs = append(errs, MsgNoColumns)
	}
	if len(result.Rows) == 0 {
		errs = append(errs, MsgNoData)
	}

	seen := make(map[string]struct{}, len(result.Columns))
	for _, col := range result.Columns {
		if _, dup := seen[col]; dup {
			errs = append(errs, MsgDuplicateHeaders)
			break
		}
		seen[col] = struct{}{}
	}

	return errs
}

func lineError(line int, msg string) string {
	return fmt.Sprintf("Line %d: %s", line, msg)
}

func describeParseError(pe *csv.ParseError) string {
	switch {
	case errors.Is(pe.Err, csv.ErrBareQuote):
		return `Invalid quotes: bare " in non-quoted field`
	case errors.Is(pe.Err, csv.ErrQuote):
		return "Unterminated or malformed quoted field"
	default:
		return pe.Err.Error()
	}
}

func fieldCountMismatch(want, got int) string {
	switch {
	case got < want:
		return fmt.Sprintf("Too few fields: expected %d fields but parsed %d", want, got)
	case got > want:
		return fmt.Sprintf("Too many fields: expected %d fields but parsed %d", want, got)
	default:
		return ""
	}
}

func cleanHeaders(record []string) []string {
	cols := make([]string, len(record))
	for i, h := range record {
		cols[i] = CleanHeader(h)
	}
	return cols
}

// isEmptyRecord matches a line with nothing on it. encoding/csv drops most of
// these itself; a lone quoted empty field still comes through.
func isEmptyRecord(record []string) bool {
	return len(record) == 1 && record[0] == ""
}

// nulField returns the index of the first field containing NUL, or -1.
// PostgreSQL text and jsonb cannot store the character.
func nulField(record []string) int {
	for i, v := range record {
		if strings.IndexByte(v, 0) >= 0 {
			return i
		}
	}
	return -1
}
