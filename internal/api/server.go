package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/FailDerErste/dienstplan-app/internal/export"
	"github.com/FailDerErste/dienstplan-app/internal/store"
)

// Server is the JSON HTTP surface external UIs consume. It owns no
// schedule state; everything goes through the store and the export runner.
type Server struct {
	store  *store.Store
	runner *export.Runner
	logger *zerolog.Logger
	server *http.Server
}

// NewServer wires the API routes.
func NewServer(port int, st *store.Store, runner *export.Runner, logger *zerolog.Logger) *Server {
	s := &Server{
		store:  st,
		runner: runner,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/services", s.handleServices)
	mux.HandleFunc("/api/services/", s.handleServiceByID)
	mux.HandleFunc("/api/assignments", s.handleAssignments)
	mux.HandleFunc("/api/assignments/clear", s.handleClearAssignments)
	mux.HandleFunc("/api/overrides", s.handleOverrides)
	mux.HandleFunc("/api/timeformat", s.handleTimeFormat)
	mux.HandleFunc("/api/grid", s.handleGrid)
	mux.HandleFunc("/api/days/", s.handleDay)
	mux.HandleFunc("/api/validation", s.handleValidation)
	mux.HandleFunc("/api/export/ics", s.handleExportICS)
	mux.HandleFunc("/api/export/excel", s.handleExportExcel)
	mux.HandleFunc("/api/export/native", s.handleExportNative)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("API server listening")
	return s.server.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
