package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"deploytrack/internal/history"
	"deploytrack/internal/record"
)

const (
	// RecentRunsLimit is the number of pipeline runs returned by the
	// history endpoint.
	RecentRunsLimit = 20
)

// HandleIndex serves the API information root
func (s *Server) HandleIndex(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "Deployment Data API",
		"endpoints": map[string]string{
			"/api/deployments":  "Get deployments as JSON",
			"/api/history":      "Get recent pipeline runs",
			"/deployments.json": "Get raw JSON file",
			"/health":           "Health check",
		},
	})
}

// HandleHealth serves the health check endpoint
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "Deployment Data API",
	})
}

// HandleRawData serves the published data file verbatim
func (s *Server) HandleRawData(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(s.DataFile)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Deployments file not found"})
			return
		}
		s.Logger.Error("Failed to read data file", "error", err, "path", s.DataFile)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read deployments file"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// HandleDeployments serves the parsed deployment records
func (s *Server) HandleDeployments(w http.ResponseWriter, r *http.Request) {
	store, err := record.Load(s.DataFile)
	if err != nil {
		var parseErr *record.ParseError
		var schemaErr *record.SchemaError
		switch {
		case errors.As(err, &parseErr), errors.As(err, &schemaErr):
			s.Logger.Error("Data file is invalid", "error", err, "path", s.DataFile)
			s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Invalid JSON in deployments file"})
		case errors.Is(err, os.ErrNotExist):
			s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Deployments file not found"})
		default:
			s.Logger.Error("Failed to load data file", "error", err, "path", s.DataFile)
			s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load deployments"})
		}
		return
	}

	s.respondJSON(w, http.StatusOK, store)
}

// HandleHistory serves the recent pipeline runs
func (s *Server) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Run history not enabled"})
		return
	}

	runs, err := s.History.GetRunHistory(r.Context(), RecentRunsLimit)
	if err != nil {
		s.Logger.Error("Failed to query run history", "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to query run history"})
		return
	}

	if runs == nil {
		runs = []history.RunRecord{}
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs": runs,
	})
}

// respondJSON writes a JSON response with the given status code
func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}
