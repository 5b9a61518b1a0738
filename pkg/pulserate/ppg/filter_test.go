package ppg

import "testing"

func TestMovingAverageWarmUp(t *testing.T) {
	const size = 5
	m := NewMovingAverage(size)

	values := []float64{3.5, -2, 7.25, 100}
	for i, v := range values {
		got := m.Smooth(v)
		if got != v {
			t.Errorf("step %d: expected pass-through %v, got %v", i, v, got)
		}
		if m.Warm() {
			t.Errorf("step %d: filter should still be warming up", i)
		}
	}

	m.Smooth(1)
	if !m.Warm() {
		t.Error("Expected filter to be warm after size samples")
	}
}

func TestMovingAverageMatchesTrailingMean(t *testing.T) {
	for _, size := range []int{1, 2, 3, 5, 8} {
		m := NewMovingAverage(size)
		var history []float64

		for i := 0; i < 40; i++ {
			v := float64((i*37)%11) - 4.5
			history = append(history, v)
			got := m.Smooth(v)

			if len(history) < size {
				if got != v {
					t.Errorf("size %d step %d: expected raw %v, got %v", size, i, v, got)
				}
				continue
			}

			var sum float64
			for _, h := range history[len(history)-size:] {
				sum += h
			}
			want := sum / float64(size)
			if got != want {
				t.Errorf("size %d step %d: expected mean %v, got %v", size, i, want, got)
			}
		}
	}
}

func TestMonitorFilterThroughWindow(t *testing.T) {
	m, err := NewMonitor(Config{WindowSize: 4, SmoothingWindow: 3})
	if err != nil {
		t.Fatalf("NewMonitor failed: %v", err)
	}

	for i, v := range []float64{1, 2, 3, 4, 5, 6} {
		m.AppendSample(v, Ticks(i))
	}

	expected := []float64{2, 3, 4, 5}
	filtered := m.Window().Filtered()
	if len(filtered) != len(expected) {
		t.Fatalf("Expected %d filtered samples, got %d", len(expected), len(filtered))
	}
	for i, f := range filtered {
		if f.Value != expected[i] {
			t.Errorf("filtered[%d] = %v, expected %v", i, f.Value, expected[i])
		}
	}
}
