package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/udevparse/internal/inventory"
)

// handleListDevices returns stored reports, with optional query filters.
//
// Query parameters:
//   - bus: only reports whose ID_PATH has a segment with this prefix (usb, ata, ...)
//   - errors: "true" for only reports with field errors
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	onlyErrors := false
	if v := query.Get("errors"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "errors must be true or false")
			return
		}
		onlyErrors = b
	}

	var (
		reports []inventory.Report
		err     error
	)
	switch bus := query.Get("bus"); {
	case bus != "":
		reports, err = s.reports.ListByBus(ctx, bus)
	case onlyErrors:
		reports, err = s.reports.ListWithErrors(ctx)
	default:
		reports, err = s.reports.List(ctx)
	}
	if err != nil {
		s.logger.Error("failed to list reports", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	if onlyErrors && query.Get("bus") != "" {
		filtered := reports[:0]
		for _, rep := range reports {
			if rep.HasErrors() {
				filtered = append(filtered, rep)
			}
		}
		reports = filtered
	}

	if reports == nil {
		reports = []inventory.Report{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": reports, "count": len(reports)})
}

// handleGetDevice returns the report for a sys name.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	report, ok := s.lookupReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleDeleteDevice removes the report for a sys name.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	report, ok := s.lookupReport(w, r)
	if !ok {
		return
	}

	if err := s.reports.Delete(r.Context(), report.SysPath); err != nil {
		if errors.Is(err, inventory.ErrReportNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("failed to delete report", "sys_path", report.SysPath, "error", err)
		writeInternalError(w, "failed to delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// lookupReport resolves the {sys_name} URL parameter, writing the error
// response itself when it returns false.
func (s *Server) lookupReport(w http.ResponseWriter, r *http.Request) (*inventory.Report, bool) {
	sysName := chi.URLParam(r, "sys_name")

	report, err := s.reports.GetBySysName(r.Context(), sysName)
	switch {
	case err == nil:
		return report, true
	case errors.Is(err, inventory.ErrReportNotFound):
		writeNotFound(w, "device not found")
	case errors.Is(err, inventory.ErrAmbiguousSysName):
		writeError(w, http.StatusConflict, ErrCodeConflict, "sys name matches more than one device")
	default:
		s.logger.Error("failed to get report", "sys_name", sysName, "error", err)
		writeInternalError(w, "failed to get device")
	}
	return nil, false
}
