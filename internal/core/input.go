package core

// input.go prepares an uploaded byte stream for the CSV reader.
//
// NormalizeInput strips a byte order mark and repairs invalid UTF-8 using
// golang.org/x/text. A BOM also selects the encoding, so UTF-16 exports from
// spreadsheet tools are decoded to UTF-8 transparently.

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NormalizeInput wraps r so reads yield UTF-8 without a leading BOM. Invalid
// sequences are replaced with U+FFFD.
func NormalizeInput(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// SizeCapReader fails with ErrFileTooLarge once more than Max bytes have been
// read from the underlying reader. BytesRead counts bytes delivered so far.
type SizeCapReader struct {
	reader    io.Reader
	Max       int64
	BytesRead int64
}

// NewSizeCapReader limits r to max bytes. A non-positive max disables the cap.
func NewSizeCapReader(r io.Reader, max int64) *SizeCapReader {
	return &SizeCapReader{reader: r, Max: max}
}

// Read implements io.Reader.
func (r *SizeCapReader) Read(p []byte) (int, error) {
	if r.Max <= 0 {
		n, err := r.reader.Read(p)
		r.BytesRead += int64(n)
		return n, err
	}

	remaining := r.Max - r.BytesRead
	if remaining <= 0 {
		// Read one more byte to tell a file of exactly Max bytes from an
		// oversized one.
		var extra [1]byte
		n, err := r.reader.Read(extra[:])
		if n > 0 {
			return 0, ErrFileTooLarge
		}
		return 0, err
	}

	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}
