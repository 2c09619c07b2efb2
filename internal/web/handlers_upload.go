package web

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/csvstore/internal/core"
	"github.com/JonMunkholm/csvstore/internal/logging"
)

const (
	msgNoFile  = "No file uploaded"
	msgNotCSV  = "Only CSV files are allowed"
	msgCreated = "CSV file uploaded and processed successfully"

	// maxFormMemory is how much of a multipart form is held in memory
	// before parts spill to temporary files.
	maxFormMemory = 8 << 20
)

type uploadResponse struct {
	Message  string   `json:"message"`
	FileID   string   `json:"fileId"`
	RowCount int      `json:"rowCount"`
	Columns  []string `json:"columns"`
}

// handleUpload stores the multipart "file" field as a new dataset.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, core.ErrFileTooLarge, "processing CSV file")
			return
		}
		s.respondError(w, r, &core.TransportError{Reason: msgNoFile}, "processing CSV file")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, &core.TransportError{Reason: msgNoFile}, "processing CSV file")
		return
	}
	defer file.Close()

	if !isCSV(header.Filename, header.Header.Get("Content-Type")) {
		s.respondError(w, r, &core.TransportError{Reason: msgNotCSV}, "processing CSV file")
		return
	}

	logging.FromContext(r.Context()).Debug("upload received",
		"filename", header.Filename,
		"size", header.Size,
	)

	result, err := s.ingester.Ingest(r.Context(), file, filepath.Base(header.Filename))
	if err != nil {
		s.respondError(w, r, err, "processing CSV file")
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Message:  msgCreated,
		FileID:   result.DatasetID.String(),
		RowCount: result.RowCount,
		Columns:  result.Columns,
	})
}

// isCSV accepts a file whose name ends in .csv or whose part is declared as
// text/csv.
func isCSV(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/csv"
}
