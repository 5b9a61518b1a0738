package pulserate

import (
	"errors"
	"time"

	"github.com/himanishpuri/PulseRate/pkg/models"
)

var (
	// ErrSessionNotFound is returned for unknown session IDs.
	ErrSessionNotFound = errors.New("session not found")
	ErrServiceClosed   = errors.New("service closed")
	ErrEmptyRecording  = errors.New("recording has no samples")
)

// RecordingReport summarises the replay of a recording.
type RecordingReport struct {
	SessionID   string           // Session the readings were stored under
	Filename    string           // Base name of the recording
	SampleRate  int              // Recording sample rate in Hz
	SampleCount int              // Samples replayed
	Duration    time.Duration    // Signal length
	Readings    []models.Reading // Estimates in signal order
	Missed      int              // Compute points with no estimate
}

// MeanBPM averages the readings of the report. ok is false when there are
// none.
func (r *RecordingReport) MeanBPM() (bpm float64, ok bool) {
	if len(r.Readings) == 0 {
		return 0, false
	}
	var sum float64
	for _, rd := range r.Readings {
		sum += rd.BPM
	}
	return sum / float64(len(r.Readings)), true
}

// Stats is a snapshot of live service state.
type Stats struct {
	LiveSessions    int    `json:"live_sessions"`
	SamplesAppended uint64 `json:"samples_appended"`
	Estimates       uint64 `json:"estimates"`
	Subscribers     int    `json:"subscribers"`
}
