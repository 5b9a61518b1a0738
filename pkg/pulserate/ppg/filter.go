package ppg

// MovingAverage smooths raw samples with a trailing mean over a fixed number
// of samples. Until that many samples have been seen it is cold and passes
// values through unchanged.
type MovingAverage struct {
	history []float64
	next    int
	seen    int
}

func NewMovingAverage(size int) *MovingAverage {
	return &MovingAverage{history: make([]float64, size)}
}

// Warm reports whether enough samples have arrived for averaging.
func (m *MovingAverage) Warm() bool {
	return m.seen >= len(m.history)
}

// Size returns the number of samples averaged once warm.
func (m *MovingAverage) Size() int {
	return len(m.history)
}

// Smooth records value and returns the filtered value for it.
func (m *MovingAverage) Smooth(value float64) float64 {
	m.history[m.next] = value
	m.next = (m.next + 1) % len(m.history)
	m.seen++

	if !m.Warm() {
		return value
	}

	// sum oldest-first; once warm, m.next points at the oldest value
	var sum float64
	for i := 0; i < len(m.history); i++ {
		sum += m.history[(m.next+i)%len(m.history)]
	}
	return sum / float64(len(m.history))
}
