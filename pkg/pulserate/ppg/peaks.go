package ppg

// Peak is a local maximum of the filtered signal, taken as one heartbeat.
type Peak struct {
	Timestamp Ticks   `json:"timestamp_ms"`
	Amplitude float64 `json:"amplitude"`
}

// thresholdRatio places the detection threshold halfway between the window
// minimum and maximum.
const thresholdRatio = 0.5

// minPeakSamples is the smallest window that has an interior point.
const minPeakSamples = 3

// detectPeaks scans the window for interior points that rise strictly above
// both neighbours and the adaptive threshold. Plateaus never qualify.
func detectPeaks(w *Window) []Peak {
	n := w.Len()
	if n < minPeakSamples {
		return nil
	}

	minVal, maxVal := w.at(0).filtered, w.at(0).filtered
	for i := 1; i < n; i++ {
		v := w.at(i).filtered
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	threshold := minVal + thresholdRatio*(maxVal-minVal)

	var peaks []Peak
	prev, cur := w.at(0), w.at(1)
	for i := 1; i < n-1; i++ {
		next := w.at(i + 1)
		if cur.filtered > threshold &&
			prev.filtered < cur.filtered &&
			cur.filtered > next.filtered {
			peaks = append(peaks, Peak{Timestamp: cur.timestamp, Amplitude: cur.filtered})
		}
		prev, cur = cur, next
	}
	return peaks
}
