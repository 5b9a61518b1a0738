package models

import "time"

// Session is one monitoring run. Each session owns a single signal window.
type Session struct {
	ID              string    `json:"id"`
	Label           string    `json:"label"`
	Source          string    `json:"source"` // e.g. "http", "nats", "recording"
	SampleRate      int       `json:"sample_rate"`
	WindowSize      int       `json:"window_size"`
	SmoothingWindow int       `json:"smoothing_window"`
	CreatedAt       time.Time `json:"created_at"`
}

// Reading is a heart rate estimate emitted for a session.
type Reading struct {
	ID        uint      `json:"id"`
	SessionID string    `json:"session_id"`
	BPM       float64   `json:"bpm"`
	PeakCount int       `json:"peak_count"`
	TakenAtMs uint32    `json:"taken_at_ms"` // session clock when the estimate was made
	CreatedAt time.Time `json:"created_at"`
}

// SampleInput is one raw sample as submitted by an acquisition source.
type SampleInput struct {
	Value       float64 `json:"value"`
	TimestampMs uint32  `json:"timestamp_ms"`
}
