package recording

import "math"

// Synth produces a synthetic PPG waveform in raw sensor counts: a systolic
// pulse followed by a smaller dicrotic wave, riding on a slowly wandering
// baseline. Output is deterministic for a given configuration.
type Synth struct {
	sampleRate float64
	bpm        float64
	noise      float64
	phase      float64
	t          float64
}

const (
	synthBaseline  = 50000.0
	synthAmplitude = 2000.0
	synthWander    = 0.05 // fraction of amplitude
	wanderHz       = 0.25
)

// NewSynth returns a generator at sampleRate Hz beating at bpm. noise is a
// fraction of the pulse amplitude, typically 0 to 0.05.
func NewSynth(sampleRate int, bpm, noise float64) *Synth {
	return &Synth{sampleRate: float64(sampleRate), bpm: bpm, noise: noise}
}

// SampleRate returns the generator rate in Hz.
func (s *Synth) SampleRate() int {
	return int(s.sampleRate)
}

// Next returns the next sample and advances time by one sample period.
func (s *Synth) Next() float64 {
	s.phase += s.bpm / 60.0 / s.sampleRate
	if s.phase >= 1.0 {
		s.phase -= 1.0
	}
	s.t += 1.0 / s.sampleRate

	p := s.phase
	systolic := gauss(p, 0.25, 0.08)
	dicrotic := 0.35 * gauss(p, 0.55, 0.06)
	wander := synthWander * math.Sin(2*math.Pi*wanderHz*s.t)
	n := s.noise * (2*fract(math.Sin(12345.678*s.t)*9876.543) - 1)

	return synthBaseline + synthAmplitude*(systolic+dicrotic+wander+n)
}

// Generate returns the next n samples.
func (s *Synth) Generate(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = s.Next()
	}
	return out
}

func gauss(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}

func fract(x float64) float64 { return x - math.Floor(x) }
