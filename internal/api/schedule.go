package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FailDerErste/dienstplan-app/internal/grid"
	"github.com/FailDerErste/dienstplan-app/internal/metrics"
	"github.com/FailDerErste/dienstplan-app/internal/model"
	"github.com/FailDerErste/dienstplan-app/internal/store"
	"github.com/FailDerErste/dienstplan-app/internal/timefmt"
)

// AddServiceRequest is the request body for creating a service.
type AddServiceRequest struct {
	Name  string `json:"name"`
	Desc  string `json:"desc,omitempty"`
	Start string `json:"start"` // Format: HH:MM
	End   string `json:"end"`   // Format: HH:MM
	Color string `json:"color,omitempty"`
}

// AssignRequest is the request body for binding a date to a service.
type AssignRequest struct {
	Date      string `json:"date"` // Format: YYYY-MM-DD
	ServiceID string `json:"service_id"`
}

// OverrideRequest is the request body for patching a date override.
type OverrideRequest struct {
	Date  string  `json:"date"`
	Name  *string `json:"name,omitempty"`
	Desc  *string `json:"desc,omitempty"`
	Start *string `json:"start,omitempty"`
	End   *string `json:"end,omitempty"`
}

// DayResponse is the resolved view of a single date, used by detail
// dialogs and to hydrate edit forms.
type DayResponse struct {
	Date         string          `json:"date"`
	Assigned     bool            `json:"assigned"`
	ServiceID    string          `json:"service_id,omitempty"`
	HasOverride  bool            `json:"has_override"`
	Effective    model.Effective `json:"effective"`
	DisplayStart string          `json:"display_start"`
	DisplayEnd   string          `json:"display_end"`
}

// handleServices lists or creates services.
// GET/POST /api/services
func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("services")
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Snapshot().Services)
	case http.MethodPost:
		var req AddServiceRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		id, err := s.store.AddService(model.Service{
			Name:  req.Name,
			Desc:  req.Desc,
			Start: req.Start,
			End:   req.End,
			Color: req.Color,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleServiceByID updates or deletes a single service.
// PATCH/DELETE /api/services/{id}
func (s *Server) handleServiceByID(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("service_by_id")
	id := strings.TrimPrefix(r.URL.Path, "/api/services/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "service id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		svc, err := s.store.ServiceByID(id)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, svc)
	case http.MethodPatch, http.MethodPut:
		var patch store.ServicePatch
		if err := decodeBody(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.store.UpdateService(id, patch); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
	case http.MethodDelete:
		if err := s.store.RemoveService(id); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleAssignments reads or mutates the date-to-service map.
// GET/POST/DELETE /api/assignments
func (s *Server) handleAssignments(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("assignments")
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Snapshot().Assignments)
	case http.MethodPost:
		var req AssignRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.store.AssignDay(req.Date, req.ServiceID); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"assigned": true})
	case http.MethodDelete:
		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "date query parameter is required")
			return
		}
		s.store.UnassignDay(date)
		writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleClearAssignments removes every assignment.
// POST /api/assignments/clear
func (s *Server) handleClearAssignments(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("clear_assignments")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}
	s.store.ClearAssignments()
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// handleOverrides reads or mutates per-date overrides.
// GET/POST/DELETE /api/overrides
func (s *Server) handleOverrides(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("overrides")
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Snapshot().Overrides)
	case http.MethodPost:
		var req OverrideRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		patch := model.Override{Name: req.Name, Desc: req.Desc, Start: req.Start, End: req.End}
		if patch.IsEmpty() {
			writeError(w, http.StatusBadRequest, "override patch is empty")
			return
		}
		if err := s.store.SetDayOverride(req.Date, patch); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
	case http.MethodDelete:
		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "date query parameter is required")
			return
		}
		s.store.RemoveDayOverride(date)
		writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleTimeFormat reads or switches the global display preference.
// GET/PUT /api/timeformat
func (s *Server) handleTimeFormat(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("timeformat")
	switch r.Method {
	case http.MethodGet:
		format := "12"
		if s.store.Is24h() {
			format = "24"
		}
		writeJSON(w, http.StatusOK, map[string]string{"format": format})
	case http.MethodPut:
		var req struct {
			Format string `json:"format"`
		}
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Format != "24" && req.Format != "12" {
			writeError(w, http.StatusBadRequest, `format must be "24" or "12"`)
			return
		}
		s.store.SetIs24h(req.Format == "24")
		writeJSON(w, http.StatusOK, map[string]string{"format": req.Format})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleGrid returns the month projection.
// GET /api/grid?year=2025&month=3
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("grid")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	now := time.Now()
	year := now.Year()
	month := int(now.Month())
	if v := r.URL.Query().Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = parsed
	}
	if v := r.URL.Query().Get("month"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 12 {
			writeError(w, http.StatusBadRequest, "invalid month; expected 1-12")
			return
		}
		month = parsed
	}

	weeks := grid.Month(year, time.Month(month), s.store.Snapshot(), now)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"year":  year,
		"month": month,
		"weeks": weeks,
	})
}

// handleDay returns the resolved view of one date.
// GET /api/days/{date}
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("day")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	date := strings.TrimPrefix(r.URL.Path, "/api/days/")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date; expected YYYY-MM-DD")
		return
	}

	snap := s.store.Snapshot()
	resp := DayResponse{Date: date}
	serviceID, assigned := snap.Assignments[date]
	resp.Assigned = assigned
	resp.ServiceID = serviceID

	svc := snap.ServiceByID(serviceID)
	var ov *model.Override
	if o, ok := snap.Overrides[date]; ok {
		ov = &o
		resp.HasOverride = true
	}
	resp.Effective = model.Resolve(svc, ov)
	resp.DisplayStart = timefmt.Display(resp.Effective.Start, snap.Is24h)
	resp.DisplayEnd = timefmt.Display(resp.Effective.End, snap.Is24h)

	writeJSON(w, http.StatusOK, resp)
}

// handleValidation returns the startup-style issue report on demand.
// GET /api/validation
func (s *Server) handleValidation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("validation")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	issues := s.store.ValidateAll()
	if issues == nil {
		issues = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"issues": issues})
}

func decodeBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidDate),
		errors.Is(err, store.ErrNameRequired),
		errors.Is(err, store.ErrTimesRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
