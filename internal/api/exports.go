package api

import (
	"errors"
	"net/http"

	"github.com/FailDerErste/dienstplan-app/internal/export"
	"github.com/FailDerErste/dienstplan-app/internal/google"
	"github.com/FailDerErste/dienstplan-app/internal/metrics"
)

// ExportResponse reports the outcome of a file export.
type ExportResponse struct {
	Path  string `json:"path,omitempty"`
	Count int    `json:"count,omitempty"`
}

// handleExportICS writes the schedule to an .ics file.
// POST /api/export/ics
func (s *Server) handleExportICS(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_ics")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}
	path, err := s.runner.ICS(r.Context(), s.store.Snapshot())
	if err != nil {
		writeExportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Path: path})
}

// handleExportExcel writes the roster workbook.
// POST /api/export/excel
func (s *Server) handleExportExcel(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_excel")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}
	path, err := s.runner.Excel(r.Context(), s.store.Snapshot())
	if err != nil {
		writeExportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Path: path})
}

// handleExportNative creates events in the native calendar.
// POST /api/export/native
func (s *Server) handleExportNative(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_native")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}
	count, err := s.runner.Native(r.Context(), s.store.Snapshot())
	if err != nil {
		writeExportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Count: count})
}

func writeExportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, export.ErrInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, export.ErrEmptySchedule):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, google.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, google.ErrNoWritableCalendar):
		writeError(w, http.StatusFailedDependency, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
