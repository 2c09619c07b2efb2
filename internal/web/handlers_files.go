package web

import (
	"net/http"

	"github.com/JonMunkholm/csvstore/internal/core"
)

const msgDeleted = "CSV file deleted successfully"

type filesResponse struct {
	Files      []core.Dataset  `json:"files"`
	Pagination core.Pagination `json:"pagination"`
}

type dataResponse struct {
	Data       []core.Record   `json:"data"`
	Columns    []string        `json:"columns"`
	Pagination core.Pagination `json:"pagination"`
}

// handleListFiles returns one page of datasets, newest first.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	page := parseIntParam(r, "page", 1)
	limit := parseIntParam(r, "limit", s.cfg.Query.DefaultPageSize)

	result, err := s.browser.ListDatasets(r.Context(), page, limit)
	if err != nil {
		s.respondError(w, r, err, "retrieving CSV files")
		return
	}

	writeJSON(w, http.StatusOK, filesResponse{
		Files:      result.Datasets,
		Pagination: result.Pagination,
	})
}

// handleFileData returns one page of a dataset's rows, optionally filtered by
// the search query parameter.
func (s *Server) handleFileData(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFileID(r)
	if !ok {
		s.respondError(w, r, core.ErrNotFound, "retrieving CSV data")
		return
	}

	page := parseIntParam(r, "page", 1)
	limit := parseIntParam(r, "limit", s.cfg.Query.DefaultPageSize)
	search := r.URL.Query().Get("search")

	result, err := s.browser.ListRecords(r.Context(), id, page, limit, search)
	if err != nil {
		s.respondError(w, r, err, "retrieving CSV data")
		return
	}

	writeJSON(w, http.StatusOK, dataResponse{
		Data:       result.Records,
		Columns:    result.Columns,
		Pagination: result.Pagination,
	})
}

// handleDeleteFile removes a dataset and all of its rows.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFileID(r)
	if !ok {
		s.respondError(w, r, core.ErrNotFound, "deleting CSV file")
		return
	}

	if err := s.browser.DeleteDataset(r.Context(), id); err != nil {
		s.respondError(w, r, err, "deleting CSV file")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": msgDeleted})
}
