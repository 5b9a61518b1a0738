package recording

import (
	"math"
	"testing"
)

func TestSynthIsDeterministic(t *testing.T) {
	a := NewSynth(50, 72, 0.02).Generate(200)
	b := NewSynth(50, 72, 0.02).Generate(200)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestSynthRange(t *testing.T) {
	samples := NewSynth(50, 80, 0).Generate(500)

	minVal, maxVal := samples[0], samples[0]
	for _, v := range samples {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}

	if minVal < synthBaseline-synthAmplitude || maxVal > synthBaseline+2*synthAmplitude {
		t.Errorf("Samples outside expected range: min=%v max=%v", minVal, maxVal)
	}
	if maxVal-minVal < synthAmplitude/2 {
		t.Errorf("Pulse swing too small: %v", maxVal-minVal)
	}
}

func TestDominantRate(t *testing.T) {
	tests := []struct {
		bpm        float64
		sampleRate int
	}{
		{72, 50},
		{60, 100},
		{120, 50},
	}

	for _, tt := range tests {
		samples := NewSynth(tt.sampleRate, tt.bpm, 0).Generate(30 * tt.sampleRate)

		got, err := DominantRate(samples, tt.sampleRate)
		if err != nil {
			t.Fatalf("DominantRate failed: %v", err)
		}
		if math.Abs(got-tt.bpm) > 3 {
			t.Errorf("bpm %v @ %d Hz: expected dominant rate near %v, got %v", tt.bpm, tt.sampleRate, tt.bpm, got)
		}
	}
}

func TestDominantRateTooShort(t *testing.T) {
	if _, err := DominantRate(make([]float64, 10), 50); err == nil {
		t.Error("Expected error for short signal")
	}
	if _, err := DominantRate(make([]float64, 500), 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}
	if _, err := DominantRate(make([]float64, 500), 50); err == nil {
		t.Error("Expected error for flat signal")
	}
}
