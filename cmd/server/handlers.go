package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/PulseRate/pkg/logger"
	"github.com/himanishpuri/PulseRate/pkg/models"
	"github.com/himanishpuri/PulseRate/pkg/pulserate"
	"github.com/himanishpuri/PulseRate/pkg/pulserate/ppg"
	"github.com/himanishpuri/PulseRate/pkg/pulserate/recording"
	"github.com/himanishpuri/PulseRate/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service pulserate.Service
	config  *ServerConfig
	log     pulserate.Logger
	hub     *Hub
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	TempDir        string
	SampleRate     int
	WindowSize     int
	AllowedOrigins []string
	LogRequests    bool
}

// NewServer creates a new server instance
func NewServer(service pulserate.Service, config *ServerConfig) *Server {
	log := logger.GetLogger()
	return &Server{
		service: service,
		config:  config,
		log:     log,
		hub:     NewHub(config.AllowedOrigins, log),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
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

// respondServiceError maps service errors onto status codes
func (s *Server) respondServiceError(w http.ResponseWriter, sessionID string, err error) {
	if errors.Is(err, pulserate.ErrSessionNotFound) {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Session %s not found", sessionID))
		return
	}
	s.log.Errorf("Session %s: %v", sessionID, err)
	s.respondError(w, http.StatusInternalServerError, "Internal error")
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "PulseRate API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":          "GET /health",
			"metrics":         "GET /api/health/metrics",
			"sessions":        "GET /api/sessions",
			"startSession":    "POST /api/sessions",
			"getSession":      "GET /api/sessions/{id}",
			"deleteSession":   "DELETE /api/sessions/{id}",
			"appendSamples":   "POST /api/sessions/{id}/samples",
			"heartRate":       "GET /api/sessions/{id}/heartrate",
			"peaks":           "GET /api/sessions/{id}/peaks",
			"readings":        "GET /api/sessions/{id}/readings",
			"replayRecording": "POST /api/recordings",
			"live":            "GET /ws",
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
	sessions, err := s.service.ListSessions()
	if err != nil {
		s.log.Errorf("Failed to get session count: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:       "healthy",
		DatabasePath: s.config.DBPath,
		SessionCount: len(sessions),
		SampleRate:   s.config.SampleRate,
		WindowSize:   s.config.WindowSize,
		WSClients:    s.hub.Count(),
		Service:      s.service.Stats(),
	})
}

// handleListSessions handles GET /api/sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions()
	if err != nil {
		s.log.Errorf("Failed to list sessions: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve sessions")
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}

	s.respondJSON(w, http.StatusOK, ListSessionsResponse{
		Sessions: sessions,
		Count:    len(sessions),
	})
}

// handleStartSession handles POST /api/sessions
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	session, err := s.service.StartSession(req.Label, "http")
	if err != nil {
		s.log.Errorf("Failed to start session: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}

	s.respondJSON(w, http.StatusCreated, session)
}

// handleGetSession handles GET /api/sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := s.service.GetSession(sessionID)
	if err != nil {
		s.respondServiceError(w, sessionID, err)
		return
	}
	s.respondJSON(w, http.StatusOK, session)
}

// handleDeleteSession handles DELETE /api/sessions/{id}
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := s.service.DeleteSession(sessionID); err != nil {
		s.respondServiceError(w, sessionID, err)
		return
	}

	s.respondJSON(w, http.StatusOK, DeleteSessionResponse{
		Message: "Session deleted successfully",
		ID:      sessionID,
	})
}

// handleAppendSamples handles POST /api/sessions/{id}/samples
func (s *Server) handleAppendSamples(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req AppendSamplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.service.AppendSamples(sessionID, req.Samples); err != nil {
		s.respondServiceError(w, sessionID, err)
		return
	}

	s.respondJSON(w, http.StatusAccepted, AppendSamplesResponse{
		SessionID: sessionID,
		Accepted:  len(req.Samples),
	})
}

// handleHeartRate handles GET /api/sessions/{id}/heartrate
func (s *Server) handleHeartRate(w http.ResponseWriter, r *http.Request, sessionID string) {
	reading, err := s.service.EstimateHeartRate(sessionID)
	if err != nil {
		s.respondServiceError(w, sessionID, err)
		return
	}

	resp := HeartRateResponse{SessionID: sessionID}
	if reading != nil {
		resp.OK = true
		resp.BPM = reading.BPM
		resp.PeakCount = reading.PeakCount
		resp.TakenAtMs = reading.TakenAtMs
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handlePeaks handles GET /api/sessions/{id}/peaks
func (s *Server) handlePeaks(w http.ResponseWriter, r *http.Request, sessionID string) {
	peaks, err := s.service.FindPeaks(sessionID)
	if err != nil {
		s.respondServiceError(w, sessionID, err)
		return
	}
	if peaks == nil {
		peaks = []ppg.Peak{}
	}

	s.respondJSON(w, http.StatusOK, PeaksResponse{
		SessionID: sessionID,
		Peaks:     peaks,
		Count:     len(peaks),
	})
}

// handleReadings handles GET /api/sessions/{id}/readings
func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request, sessionID string) {
	readings, err := s.service.ListReadings(sessionID)
	if err != nil {
		s.respondServiceError(w, sessionID, err)
		return
	}
	if readings == nil {
		readings = []models.Reading{}
	}

	s.respondJSON(w, http.StatusOK, ReadingsResponse{
		SessionID: sessionID,
		Readings:  readings,
		Count:     len(readings),
	})
}

// handleReplayRecording handles POST /api/recordings (multipart WAV upload)
func (s *Server) handleReplayRecording(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	// Parse multipart form (max 50MB)
	if err := r.ParseMultipartForm(50 << 20); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	channel := 0
	if v := r.FormValue("channel"); v != "" {
		c, err := strconv.Atoi(v)
		if err != nil || c < 0 {
			s.respondError(w, http.StatusBadRequest, "Invalid channel")
			return
		}
		channel = c
	}

	file, header, err := r.FormFile("recording")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "recording file is required")
		return
	}
	defer file.Close()

	if !utils.IsWAV(header.Filename) {
		s.respondError(w, http.StatusBadRequest, "recording must be a .wav file")
		return
	}

	label := r.FormValue("label")
	if label == "" {
		label = header.Filename
	}

	// Save to temporary file
	tempFile := filepath.Join(s.config.TempDir, fmt.Sprintf("upload_%d_%s", time.Now().UnixNano(), filepath.Base(header.Filename)))
	out, err := os.Create(tempFile)
	if err != nil {
		s.log.Errorf("Failed to create temp file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to process upload")
		return
	}
	defer os.Remove(tempFile)

	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		s.log.Errorf("Failed to save file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}
	out.Close()

	report, err := s.service.ProcessRecording(ctx, tempFile, label, channel)
	if err != nil {
		if errors.Is(err, recording.ErrInvalidWAV) || errors.Is(err, recording.ErrChannelOutOfRange) ||
			errors.Is(err, pulserate.ErrEmptyRecording) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Errorf("Failed to replay recording: %v", err)
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to replay recording: %v", err))
		return
	}

	s.log.Infof("Replayed %s: %d readings", header.Filename, len(report.Readings))
	s.respondJSON(w, http.StatusCreated, newRecordingResponse(report))
}

// handleSessions routes requests to /api/sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListSessions(w, r)
	case http.MethodPost:
		s.handleStartSession(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleSession routes requests to /api/sessions/{id}[/resource]
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/")
	if rest == "" {
		s.respondError(w, http.StatusBadRequest, "Session ID required")
		return
	}

	sessionID, resource, _ := strings.Cut(rest, "/")

	switch {
	case resource == "" && r.Method == http.MethodGet:
		s.handleGetSession(w, r, sessionID)
	case resource == "" && r.Method == http.MethodDelete:
		s.handleDeleteSession(w, r, sessionID)
	case resource == "samples" && r.Method == http.MethodPost:
		s.handleAppendSamples(w, r, sessionID)
	case resource == "heartrate" && r.Method == http.MethodGet:
		s.handleHeartRate(w, r, sessionID)
	case resource == "peaks" && r.Method == http.MethodGet:
		s.handlePeaks(w, r, sessionID)
	case resource == "readings" && r.Method == http.MethodGet:
		s.handleReadings(w, r, sessionID)
	case resource == "" || resource == "samples" || resource == "heartrate" ||
		resource == "peaks" || resource == "readings":
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	default:
		http.NotFound(w, r)
	}
}

// handleRecordings routes requests to /api/recordings
func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleReplayRecording(w, r)
}
