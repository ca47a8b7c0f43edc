package api

import (
	"errors"
	"net/http"

	"github.com/nerrad567/udevparse/internal/inventory"
)

// defaultIngestSource labels HTTP ingests that name no source.
const defaultIngestSource = "http"

// handleIngest ingests an export-db dump sent as the request body.
//
// Query parameters:
//   - source: label for logs and metrics (default "http")
//
// Responses:
//   - 200: inventory.Summary
//   - 400: malformed dump
//   - 413: body larger than the configured limit
//   - 503: no ingester configured
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.ingester == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "ingest is not enabled")
		return
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		source = defaultIngestSource
	}

	summary, err := s.ingester.IngestReader(r.Context(), source, r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeTooLarge(w, maxErr.Limit)
		case errors.Is(err, inventory.ErrInvalidExportDB):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			s.logger.Error("ingest failed", "source", source, "error", err)
			writeInternalError(w, "ingest failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
