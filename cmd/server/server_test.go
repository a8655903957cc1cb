package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/himanishpuri/PerfGrid/pkg/logger"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid"
)

func setupTestServer(t *testing.T) http.Handler {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_server.sqlite3")
	svc, err := perfgrid.NewService(
		perfgrid.WithDBPath(dbPath),
		perfgrid.WithLogger(logger.Discard()),
	)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	srv := NewServer(svc, &ServerConfig{DBPath: dbPath, MaxTries: 3, OutlierFactor: 4, AllowedOrigins: []string{"*"}})
	srv.log = logger.Discard()
	return srv.setupRoutes()
}

// strictMatch renders a match file in which tick t is played at t ms.
func strictMatch() string {
	var b strings.Builder
	b.WriteString("//Version: ScorePerfmMatch_v170503\n")
	for i, tick := 0, 0; tick <= 4000; i, tick = i+1, tick+250 {
		fmt.Fprintf(&b, "%d\t%.3f\t%.3f\t60\t64\t80\t0\t0\t%d\tP1-1-%d\t0\t0\n",
			i, float64(tick)/1000, float64(tick)/1000+0.2, tick, i)
	}
	return b.String()
}

func beatsRequest(t *testing.T, match string, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	fw, err := mw.CreateFormFile("match", "etude_match.txt")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(match))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/beats", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	h := setupTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header")
	}
}

func TestBeatsStoresRun(t *testing.T) {
	h := setupTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, beatsRequest(t, strictMatch(), map[string]string{
		"quarter_length":   "500",
		"anacrusis_offset": "0",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp BeatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Piece != "etude" || resp.Outcome != "converged" || len(resp.Beats) != 8 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Beats[2].Time == nil || math.Abs(*resp.Beats[2].Time-1.0) > 1e-9 {
		t.Errorf("expected beat 2 at 1.0s, got %v", resp.Beats[2].Time)
	}
	if len(resp.Tempo) != 7 || resp.QuarterLength != 500 {
		t.Errorf("unexpected tempo or params: %d points, quarter %d", len(resp.Tempo), resp.QuarterLength)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+resp.RunID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected stored run, got %d: %s", rec.Code, rec.Body.String())
	}
	var run RunDetailResponse
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatalf("decoding run: %v", err)
	}
	if run.Piece != "etude" || len(run.Beats) != 8 {
		t.Errorf("unexpected run %+v", run)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/runs/"+resp.RunID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected delete to succeed, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+resp.RunID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestBeatsCSV(t *testing.T) {
	h := setupTestServer(t)

	req := beatsRequest(t, strictMatch(), map[string]string{"grid": "0,1000,2000,3000"})
	req.URL.RawQuery = "format=csv"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 5 || lines[0] != "count,time,interpolated" {
		t.Errorf("unexpected CSV %q", rec.Body.String())
	}
}

func TestBeatsBadRequests(t *testing.T) {
	h := setupTestServer(t)

	tests := []struct {
		name   string
		match  string
		fields map[string]string
		want   int
	}{
		{"bad kind", strictMatch(), map[string]string{"kind": "phrases"}, http.StatusBadRequest},
		{"bars without grid", strictMatch(), map[string]string{"kind": "bars"}, http.StatusBadRequest},
		{"negative quarter", strictMatch(), map[string]string{"quarter_length": "-5"}, http.StatusBadRequest},
		{"malformed match", "0\t0.5\t0.9\t60\t64\t80\t0\t0\tabc\tP1-1-1\n", nil, http.StatusBadRequest},
		{"decreasing grid", strictMatch(), map[string]string{"grid": "0,1000,500"}, http.StatusUnprocessableEntity},
		{"too few atoms", "0\t0.5\t0.9\t60\t64\t80\t0\t0\t0\tP1-1-1\n", map[string]string{"grid": "0,500"}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, beatsRequest(t, tt.match, tt.fields))
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTempo(t *testing.T) {
	h := setupTestServer(t)

	body := strings.NewReader(`{"times": [0, 0.5, 1.0, 2.0]}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tempo", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp TempoResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Points) != 3 || *resp.Points[2].Tempo != 60 {
		t.Errorf("unexpected points %+v", resp.Points)
	}
	if resp.Stats == nil || resp.Stats.Max != 120 {
		t.Errorf("unexpected stats %+v", resp.Stats)
	}
}

func TestRunsMethodNotAllowed(t *testing.T) {
	h := setupTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/runs", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/not-a-uuid", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a malformed ID, got %d", rec.Code)
	}
}
