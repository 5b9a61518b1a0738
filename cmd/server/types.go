package main

import (
	"fmt"

	"github.com/himanishpuri/PulseRate/pkg/models"
	"github.com/himanishpuri/PulseRate/pkg/pulserate"
	"github.com/himanishpuri/PulseRate/pkg/pulserate/ppg"
)

// MaxSamplesPerRequest bounds one POST /api/sessions/{id}/samples body
// (200 s of signal at 50 Hz).
const MaxSamplesPerRequest = 10000

// StartSessionRequest is the request body for POST /api/sessions
type StartSessionRequest struct {
	Label string `json:"label"`
}

// AppendSamplesRequest is the request body for POST /api/sessions/{id}/samples
type AppendSamplesRequest struct {
	Samples []models.SampleInput `json:"samples"`
}

// Validate checks if the request is valid
func (r *AppendSamplesRequest) Validate() error {
	if len(r.Samples) == 0 {
		return fmt.Errorf("samples cannot be empty")
	}
	if len(r.Samples) > MaxSamplesPerRequest {
		return fmt.Errorf("too many samples: %d (maximum: %d)", len(r.Samples), MaxSamplesPerRequest)
	}
	return nil
}

// AppendSamplesResponse is the response for POST /api/sessions/{id}/samples
type AppendSamplesResponse struct {
	SessionID string `json:"session_id"`
	Accepted  int    `json:"accepted"`
}

// HeartRateResponse is the response for GET /api/sessions/{id}/heartrate.
// OK is false while the window holds too little signal.
type HeartRateResponse struct {
	SessionID string  `json:"session_id"`
	OK        bool    `json:"ok"`
	BPM       float64 `json:"bpm,omitempty"`
	PeakCount int     `json:"peak_count,omitempty"`
	TakenAtMs uint32  `json:"taken_at_ms,omitempty"`
}

// PeaksResponse is the response for GET /api/sessions/{id}/peaks
type PeaksResponse struct {
	SessionID string     `json:"session_id"`
	Peaks     []ppg.Peak `json:"peaks"`
	Count     int        `json:"count"`
}

// ListSessionsResponse is the response for GET /api/sessions
type ListSessionsResponse struct {
	Sessions []models.Session `json:"sessions"`
	Count    int              `json:"count"`
}

// ReadingsResponse is the response for GET /api/sessions/{id}/readings
type ReadingsResponse struct {
	SessionID string           `json:"session_id"`
	Readings  []models.Reading `json:"readings"`
	Count     int              `json:"count"`
}

// DeleteSessionResponse is the response for DELETE /api/sessions/{id}
type DeleteSessionResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// RecordingResponse is the response for POST /api/recordings
type RecordingResponse struct {
	SessionID   string           `json:"session_id"`
	Filename    string           `json:"filename"`
	SampleRate  int              `json:"sample_rate"`
	SampleCount int              `json:"sample_count"`
	DurationMs  int64            `json:"duration_ms"`
	MeanBPM     float64          `json:"mean_bpm,omitempty"`
	Missed      int              `json:"missed"`
	Readings    []models.Reading `json:"readings"`
}

func newRecordingResponse(r *pulserate.RecordingReport) RecordingResponse {
	resp := RecordingResponse{
		SessionID:   r.SessionID,
		Filename:    r.Filename,
		SampleRate:  r.SampleRate,
		SampleCount: r.SampleCount,
		DurationMs:  r.Duration.Milliseconds(),
		Missed:      r.Missed,
		Readings:    r.Readings,
	}
	if resp.Readings == nil {
		resp.Readings = []models.Reading{}
	}
	if mean, ok := r.MeanBPM(); ok {
		resp.MeanBPM = mean
	}
	return resp
}

// MetricsResponse provides server health and service counters
type MetricsResponse struct {
	Status       string          `json:"status"`
	DatabasePath string          `json:"database_path"`
	SessionCount int             `json:"session_count"`
	SampleRate   int             `json:"sample_rate"`
	WindowSize   int             `json:"window_size"`
	WSClients    int             `json:"ws_clients"`
	Service      pulserate.Stats `json:"service"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
