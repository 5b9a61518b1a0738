package ppg

import "testing"

func newTestMonitor(t *testing.T, windowSize, smoothing int) *Monitor {
	t.Helper()
	m, err := NewMonitor(Config{WindowSize: windowSize, SmoothingWindow: smoothing})
	if err != nil {
		t.Fatalf("NewMonitor failed: %v", err)
	}
	return m
}

func feed(m *Monitor, values []float64, stepMs int) {
	for i, v := range values {
		m.AppendSample(v, Ticks(i*stepMs))
	}
}

func TestFindPeaksSinglePulse(t *testing.T) {
	m := newTestMonitor(t, 7, 1)
	feed(m, []float64{0, 0, 0, 10, 0, 0, 0}, 1)

	peaks := m.FindPeaks()
	if len(peaks) != 1 {
		t.Fatalf("Expected 1 peak, got %d", len(peaks))
	}
	if peaks[0].Timestamp != 3 {
		t.Errorf("Expected peak at timestamp 3, got %d", peaks[0].Timestamp)
	}
	if peaks[0].Amplitude != 10 {
		t.Errorf("Expected amplitude 10, got %v", peaks[0].Amplitude)
	}
}

func TestFindPeaksNoSpuriousPeaks(t *testing.T) {
	increasing := make([]float64, 30)
	decreasing := make([]float64, 30)
	flat := make([]float64, 30)
	for i := range increasing {
		increasing[i] = float64(i)
		decreasing[i] = float64(100 - i)
		flat[i] = 42
	}

	tests := []struct {
		name   string
		values []float64
	}{
		{"strictly increasing", increasing},
		{"strictly decreasing", decreasing},
		{"constant", flat},
		{"plateau top", []float64{0, 5, 10, 10, 5, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMonitor(t, len(tt.values), 1)
			feed(m, tt.values, 10)
			if peaks := m.FindPeaks(); len(peaks) != 0 {
				t.Errorf("Expected no peaks, got %v", peaks)
			}
		})
	}
}

func TestFindPeaksTooFewSamples(t *testing.T) {
	m := newTestMonitor(t, 10, 1)
	if peaks := m.FindPeaks(); len(peaks) != 0 {
		t.Errorf("Expected no peaks on empty window, got %v", peaks)
	}

	feed(m, []float64{0, 10}, 1)
	if peaks := m.FindPeaks(); len(peaks) != 0 {
		t.Errorf("Expected no peaks with 2 samples, got %v", peaks)
	}
}

func TestFindPeaksBelowThreshold(t *testing.T) {
	// the bump at index 2 is a local maximum but sits under the midpoint
	m := newTestMonitor(t, 9, 1)
	feed(m, []float64{0, 1, 2, 1, 0, 5, 10, 5, 0}, 1)

	peaks := m.FindPeaks()
	if len(peaks) != 1 {
		t.Fatalf("Expected 1 peak, got %d", len(peaks))
	}
	if peaks[0].Timestamp != 6 {
		t.Errorf("Expected peak at 6, got %d", peaks[0].Timestamp)
	}
}

func TestFindPeaksChronological(t *testing.T) {
	m := newTestMonitor(t, 20, 1)
	feed(m, []float64{0, 9, 0, 0, 8, 0, 0, 10, 0, 0, 9, 0}, 100)

	peaks := m.FindPeaks()
	if len(peaks) != 4 {
		t.Fatalf("Expected 4 peaks, got %d", len(peaks))
	}
	for i := 1; i < len(peaks); i++ {
		if peaks[i].Timestamp <= peaks[i-1].Timestamp {
			t.Errorf("Peaks not in chronological order: %v", peaks)
			break
		}
	}
}
