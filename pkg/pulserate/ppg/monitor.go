// Package ppg estimates heart rate from a stream of photoplethysmography
// samples. A Monitor keeps a bounded window of recent samples, smooths them
// with a moving average and derives beats per minute from the spacing of
// detected pulse peaks.
//
// A Monitor is owned by a single goroutine. Callers that append and query
// from different goroutines must serialise access themselves.
package ppg

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidWindowSize      = errors.New("ppg: window size must be positive")
	ErrInvalidSmoothingWindow = errors.New("ppg: smoothing window must be positive")
)

// Sample is one raw intensity reading and the time it arrived.
type Sample struct {
	Value     float64 `json:"value"`
	Timestamp Ticks   `json:"timestamp_ms"`
}

// FilteredSample is the smoothed value produced for a Sample. It carries the
// timestamp of the raw sample that triggered it.
type FilteredSample struct {
	Value     float64 `json:"value"`
	Timestamp Ticks   `json:"timestamp_ms"`
}

// Config is fixed when a Monitor is created.
type Config struct {
	// SampleRate is the acquisition rate in Hz. It is informational only.
	SampleRate int
	// WindowSize is the number of samples retained for detection.
	WindowSize int
	// SmoothingWindow is the number of trailing raw samples averaged per
	// filtered value. Keeping it at or below WindowSize is recommended.
	SmoothingWindow int
}

// DefaultConfig matches a 100 Hz stream with a short window.
func DefaultConfig() Config {
	return Config{
		SampleRate:      100,
		WindowSize:      10,
		SmoothingWindow: 5,
	}
}

// WindowSizeFor returns the number of samples covering the given number of
// seconds at sampleRate. It never returns less than one.
func WindowSizeFor(sampleRate int, seconds float64) int {
	n := int(math.Round(float64(sampleRate) * seconds))
	if n < 1 {
		return 1
	}
	return n
}

// Validate reports the first configuration value that cannot work.
func (c Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidWindowSize, c.WindowSize)
	}
	if c.SmoothingWindow <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidSmoothingWindow, c.SmoothingWindow)
	}
	return nil
}

// Monitor turns raw samples into heart rate estimates.
type Monitor struct {
	cfg    Config
	window *Window
	filter *MovingAverage
}

func NewMonitor(cfg Config) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Monitor{
		cfg:    cfg,
		window: newWindow(cfg.WindowSize),
		filter: NewMovingAverage(cfg.SmoothingWindow),
	}, nil
}

// Config returns the configuration the monitor was built with.
func (m *Monitor) Config() Config {
	return m.cfg
}

// Window exposes the live window for inspection. It must not be retained
// across calls to AppendSample.
func (m *Monitor) Window() *Window {
	return m.window
}

// Len returns the number of samples in the window.
func (m *Monitor) Len() int {
	return m.window.Len()
}

// Warm reports whether the moving average has left its warm-up phase.
func (m *Monitor) Warm() bool {
	return m.filter.Warm()
}

// AppendSample adds a raw reading. Timestamps are expected to be
// non-decreasing. When the window is full the oldest sample is evicted.
func (m *Monitor) AppendSample(value float64, timestamp Ticks) {
	m.window.push(record{
		raw:       value,
		timestamp: timestamp,
		filtered:  m.filter.Smooth(value),
	})
}

// Append is AppendSample for a Sample value.
func (m *Monitor) Append(s Sample) {
	m.AppendSample(s.Value, s.Timestamp)
}

// FindPeaks returns the pulse peaks in the current window in chronological
// order. It does not modify the monitor.
func (m *Monitor) FindPeaks() []Peak {
	return detectPeaks(m.window)
}

// EstimateHeartRate returns the current rate in beats per minute. ok is false
// while there is not enough signal to produce one.
func (m *Monitor) EstimateHeartRate() (bpm float64, ok bool) {
	return RateFromPeaks(m.FindPeaks())
}

// Reset discards all samples and returns the filter to its warm-up state.
func (m *Monitor) Reset() {
	m.window = newWindow(m.cfg.WindowSize)
	m.filter = NewMovingAverage(m.cfg.SmoothingWindow)
}
