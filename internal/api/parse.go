package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/udevparse/internal/inventory"
	"github.com/nerrad567/udevparse/internal/udev"
)

// parseRequest is the body of POST /parse/{kind}.
type parseRequest struct {
	Value *string `json:"value"`
}

// handleParse parses a single value.
//
// Responses:
//   - 200: inventory.Record
//   - 400: unknown kind, malformed body or missing value
//   - 422: the value does not parse; details hold the record with its error
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	kind := inventory.Kind(chi.URLParam(r, "kind"))
	if !knownKind(kind) {
		writeBadRequest(w, fmt.Sprintf("unknown kind %q; expected one of %v", kind, inventory.Kinds()))
		return
	}

	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeTooLarge(w, maxErr.Limit)
			return
		}
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, `body must contain "value"`)
		return
	}

	rec, err := inventory.ParseRecord(kind, *req.Value)
	if err != nil {
		if errors.Is(err, udev.ErrParse) {
			writeJSON(w, http.StatusUnprocessableEntity, Error{
				Status:  http.StatusUnprocessableEntity,
				Code:    ErrCodeParse,
				Message: err.Error(),
				Details: rec,
			})
			return
		}
		writeInternalError(w, "failed to parse value")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func knownKind(kind inventory.Kind) bool {
	for _, k := range inventory.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}
