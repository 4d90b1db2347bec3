package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"deploytrack/internal/history"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, dataContent string, hist *history.History) *Server {
	t.Helper()
	dataFile := filepath.Join(t.TempDir(), "deployments.json")
	if dataContent != "" {
		if err := os.WriteFile(dataFile, []byte(dataContent), 0644); err != nil {
			t.Fatalf("Failed to write data file: %v", err)
		}
	}
	return NewServer(dataFile, hist, testLogger(), true)
}

func doRequest(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

const validData = `{
  "deployments": [
    {"Type": "Sprint", "Name": "Sprint 1", "PlannedDeploymentDate": "2025-01-01T00:00:00Z", "DeploymentDate": "2025-01-03T00:00:00Z", "DelayDays": 2, "OnTime": false}
  ],
  "lastUpdated": "2025-01-03T12:00:00Z"
}`

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, validData, nil)
	rec := doRequest(t, srv, "/health")

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %q", body["status"])
	}
}

func TestHandleIndex(t *testing.T) {
	srv := newTestServer(t, validData, nil)
	rec := doRequest(t, srv, "/")

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var body struct {
		Service   string            `json:"service"`
		Endpoints map[string]string `json:"endpoints"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if _, ok := body.Endpoints["/api/deployments"]; !ok {
		t.Error("Index should list /api/deployments")
	}
}

func TestHandleRawData(t *testing.T) {
	srv := newTestServer(t, validData, nil)
	rec := doRequest(t, srv, "/deployments.json")

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Expected JSON content type, got %q", got)
	}
	// Raw endpoint serves the file verbatim.
	if rec.Body.String() != validData {
		t.Errorf("Expected file served byte for byte, got:\n%s", rec.Body.String())
	}
}

func TestHandleRawData_MissingFile(t *testing.T) {
	srv := newTestServer(t, "", nil)
	rec := doRequest(t, srv, "/deployments.json")

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestHandleDeployments(t *testing.T) {
	srv := newTestServer(t, validData, nil)
	rec := doRequest(t, srv, "/api/deployments")

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var body struct {
		Deployments []struct {
			Name      string `json:"Name"`
			DelayDays *int   `json:"DelayDays"`
		} `json:"deployments"`
		LastUpdated string `json:"lastUpdated"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(body.Deployments) != 1 {
		t.Fatalf("Expected 1 deployment, got %d", len(body.Deployments))
	}
	if body.Deployments[0].Name != "Sprint 1" {
		t.Errorf("Expected 'Sprint 1', got %q", body.Deployments[0].Name)
	}
	if body.Deployments[0].DelayDays == nil || *body.Deployments[0].DelayDays != 2 {
		t.Errorf("Expected DelayDays 2, got %v", body.Deployments[0].DelayDays)
	}
}

func TestHandleDeployments_Errors(t *testing.T) {
	testCases := []struct {
		name       string
		content    string
		wantStatus int
	}{
		{"missing file", "", http.StatusNotFound},
		{"malformed JSON", `{"deployments": [`, http.StatusInternalServerError},
		{"wrong schema", `{"releases": []}`, http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, tc.content, nil)
			rec := doRequest(t, srv, "/api/deployments")

			if rec.Code != tc.wantStatus {
				t.Errorf("Expected status %d, got %d", tc.wantStatus, rec.Code)
			}

			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("Error responses must be JSON: %v", err)
			}
			if body["error"] == "" {
				t.Error("Expected an error message in the response")
			}
		})
	}
}

func TestHandleHistory_Disabled(t *testing.T) {
	srv := newTestServer(t, validData, nil)
	rec := doRequest(t, srv, "/api/history")

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 when history is disabled, got %d", rec.Code)
	}
}

func TestHandleHistory(t *testing.T) {
	hist, err := history.NewHistory(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create history: %v", err)
	}
	defer hist.Close()

	duration := 1.5
	if _, err := hist.RecordRun(context.Background(), &history.RunRecord{
		Command:         "run",
		Status:          "success",
		RecordsTotal:    4,
		DurationSeconds: &duration,
	}); err != nil {
		t.Fatalf("Failed to seed run record: %v", err)
	}

	srv := newTestServer(t, validData, hist)
	rec := doRequest(t, srv, "/api/history")

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var body struct {
		Runs []history.RunRecord `json:"runs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(body.Runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(body.Runs))
	}
	if body.Runs[0].Command != "run" || body.Runs[0].RecordsTotal != 4 {
		t.Errorf("Unexpected run record: %+v", body.Runs[0])
	}
}

func TestHandleHistory_EmptyLogReturnsEmptyArray(t *testing.T) {
	hist, err := history.NewHistory(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create history: %v", err)
	}
	defer hist.Close()

	srv := newTestServer(t, validData, hist)
	rec := doRequest(t, srv, "/api/history")

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	// The runs key must be an array, never null.
	var body map[string]json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if string(body["runs"]) == "null" {
		t.Error("Expected empty array for runs, got null")
	}
}
