package ppg

const msPerMinute = 60000.0

// RateFromPeaks converts chronologically ordered peaks into beats per minute
// using the mean interval between neighbours. Intervals that are zero or
// negative (duplicate timestamps, clock anomalies) are left out of the mean.
// ok is false when fewer than two peaks are given or no usable interval
// remains.
func RateFromPeaks(peaks []Peak) (bpm float64, ok bool) {
	if len(peaks) < 2 {
		return 0, false
	}

	var total float64
	var used int
	for i := 1; i < len(peaks); i++ {
		interval := TicksDiff(peaks[i].Timestamp, peaks[i-1].Timestamp)
		if interval <= 0 {
			continue
		}
		total += float64(interval)
		used++
	}
	if used == 0 {
		return 0, false
	}

	return msPerMinute / (total / float64(used)), true
}
