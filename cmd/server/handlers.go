package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hako/durafmt"

	"github.com/himanishpuri/PerfGrid/internal/report"
	"github.com/himanishpuri/PerfGrid/pkg/logger"
	"github.com/himanishpuri/PerfGrid/pkg/models"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid/alignment"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid/beatgrid"
	"github.com/himanishpuri/PerfGrid/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service perfgrid.Service
	config  *ServerConfig
	log     perfgrid.Logger
	started time.Time
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	MaxTries       int
	OutlierFactor  float64
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(service perfgrid.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger(),
		started: time.Now(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "PerfGrid API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":    "GET /health",
			"metrics":   "GET /api/health/metrics",
			"runs":      "GET /api/runs",
			"getRun":    "GET /api/runs/{id}",
			"deleteRun": "DELETE /api/runs/{id}",
			"beats":     "POST /api/beats",
			"tempo":     "POST /api/tempo",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats()
	if err != nil {
		s.log.Errorf("Failed to get run counts: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:        "healthy",
		DatabasePath:  s.config.DBPath,
		RunCount:      stats.Runs,
		BeatRowCount:  stats.Rows,
		MaxTries:      s.config.MaxTries,
		OutlierFactor: s.config.OutlierFactor,
		Uptime:        durafmt.Parse(time.Since(s.started)).LimitFirstN(2).String(),
	})
}

// handleListRuns handles GET /api/runs[?piece=name]
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.ListRuns(r.URL.Query().Get("piece"))
	if err != nil {
		s.log.Errorf("Failed to list runs: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i := range runs {
		dtos[i] = toRunDTO(&runs[i])
	}
	s.respondJSON(w, http.StatusOK, ListRunsResponse{Runs: dtos, Count: len(dtos)})
}

// handleGetRun handles GET /api/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request, id string) {
	run, err := s.service.GetRun(id)
	if errors.Is(err, perfgrid.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Run %s not found", id))
		return
	} else if err != nil {
		s.log.Errorf("Failed to get run %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}

	rows, err := s.service.GetBeatRows(id)
	if err != nil {
		s.log.Errorf("Failed to get beat rows of %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve beat rows")
		return
	}
	ignored, err := s.service.GetIgnored(id)
	if err != nil {
		s.log.Errorf("Failed to get ignored atoms of %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve ignored atoms")
		return
	}

	s.respondJSON(w, http.StatusOK, RunDetailResponse{
		RunDTO:  toRunDTO(run),
		Beats:   toBeatDTOs(rows),
		Ignored: toAtomDTOs(ignored),
	})
}

// handleDeleteRun handles DELETE /api/runs/{id}
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request, id string) {
	err := s.service.DeleteRun(id)
	if errors.Is(err, perfgrid.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Run %s not found", id))
		return
	} else if err != nil {
		s.log.Errorf("Failed to delete run %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete run")
		return
	}

	s.log.Infof("Deleted run %s", id)
	s.respondJSON(w, http.StatusOK, DeleteRunResponse{
		Message: "Run deleted successfully",
		ID:      id,
	})
}

// parseBeatsForm reads the grid request of POST /api/beats.
func parseBeatsForm(r *http.Request) (perfgrid.GridRequest, error) {
	req := perfgrid.GridRequest{
		PieceID: r.FormValue("piece"),
		Kind:    models.KindBeats,
	}

	switch kind := r.FormValue("kind"); kind {
	case "", string(models.KindBeats):
	case string(models.KindBars):
		req.Kind = models.KindBars
	default:
		return req, fmt.Errorf("kind must be beats or bars, got %q", kind)
	}

	intField := func(name string) (*int, error) {
		v := strings.TrimSpace(r.FormValue(name))
		if v == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer", name)
		}
		return &n, nil
	}

	var err error
	if req.QuarterLength, err = intField("quarter_length"); err != nil {
		return req, err
	}
	if req.AnacrusisOffset, err = intField("anacrusis_offset"); err != nil {
		return req, err
	}
	if v := r.FormValue("guess"); v != "" {
		if req.Guess, err = strconv.ParseBool(v); err != nil {
			return req, fmt.Errorf("guess must be a boolean")
		}
	}

	if grid := strings.TrimSpace(r.FormValue("grid")); grid != "" {
		for _, field := range strings.Split(grid, ",") {
			tick, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				return req, fmt.Errorf("grid must be comma-separated ticks")
			}
			req.Grid = append(req.Grid, tick)
		}
	}
	if req.Kind == models.KindBars && req.Grid == nil {
		return req, fmt.Errorf("bars need an explicit grid")
	}
	return req, nil
}

// handleBeats handles POST /api/beats (multipart match file upload)
func (s *Server) handleBeats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(MaxMatchFileSize); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	req, err := parseBeatsForm(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("match")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "match file is required")
		return
	}
	defer file.Close()

	if req.Atoms, err = alignment.ParseMatch(file); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid match file: %v", err))
		return
	}
	if req.PieceID == "" {
		req.PieceID = strings.TrimSuffix(utils.Stem(header.Filename), "_match")
	}

	s.log.Infof("Estimating %s of %s from %d atoms", req.Kind, req.PieceID, len(req.Atoms))
	res, err := s.service.ExtractGrid(ctx, req)
	switch {
	case beatgrid.IsInputError(err), errors.Is(err, beatgrid.ErrInvalidBeatParams):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.log.Errorf("Failed to estimate %s: %v", req.Kind, err)
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to estimate %s: %v", req.Kind, err))
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		if err := report.WriteBeats(w, res.Result.Rows); err != nil {
			s.log.Errorf("Failed to write CSV response: %v", err)
		}
		return
	}

	resp := BeatsResponse{
		RunID:    res.RunID,
		Piece:    req.PieceID,
		Kind:     string(req.Kind),
		Outcome:  string(res.Result.Outcome),
		Attempts: res.Result.Attempts,
		Beats:    toBeatDTOs(res.Result.Rows),
		Ignored:  toAtomDTOs(res.Result.Ignored),
		Tempo:    toTempoDTOs(res.Tempo),
		Summary:  res.Summary,
	}
	if res.Params != nil {
		resp.QuarterLength = res.Params.QuarterLength
		offset := res.Params.AnacrusisOffset
		resp.AnacrusisOffset = &offset
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleTempo handles POST /api/tempo
func (s *Server) handleTempo(w http.ResponseWriter, r *http.Request) {
	var req TempoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	points := beatgrid.Tempo(req.Times)
	s.respondJSON(w, http.StatusOK, TempoResponse{
		Points: toTempoDTOs(points),
		Stats:  report.TempoSummary(points),
	})
}

// handleRuns routes requests to /api/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleListRuns(w, r)
}

// handleRun routes requests to /api/runs/{id}
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "Run ID required")
		return
	}
	if !utils.IsUUID(id) {
		s.respondError(w, http.StatusBadRequest, "Invalid run ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetRun(w, r, id)
	case http.MethodDelete:
		s.handleDeleteRun(w, r, id)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleBeatsRoute routes requests to /api/beats
func (s *Server) handleBeatsRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleBeats(w, r)
}

// handleTempoRoute routes requests to /api/tempo
func (s *Server) handleTempoRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleTempo(w, r)
}
