package ppg

// record is one slot of the window: a raw sample, its arrival time and the
// filtered value computed when it arrived.
type record struct {
	raw       float64
	timestamp Ticks
	filtered  float64
}

// Window is a fixed-capacity ring buffer of the most recent samples.
// Appending to a full window overwrites the oldest record.
type Window struct {
	records []record
	head    int // index of the oldest record
	count   int
}

func newWindow(capacity int) *Window {
	return &Window{records: make([]record, capacity)}
}

// Len returns the number of records currently held.
func (w *Window) Len() int {
	return w.count
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return len(w.records)
}

func (w *Window) push(r record) {
	capacity := len(w.records)
	if w.count < capacity {
		w.records[(w.head+w.count)%capacity] = r
		w.count++
		return
	}
	// full: overwrite the oldest slot and advance head
	w.records[w.head] = r
	w.head = (w.head + 1) % capacity
}

// at returns the i-th record in chronological order (0 is the oldest).
func (w *Window) at(i int) record {
	return w.records[(w.head+i)%len(w.records)]
}

// Raw returns a chronological copy of the raw values.
func (w *Window) Raw() []float64 {
	out := make([]float64, w.count)
	for i := range out {
		out[i] = w.at(i).raw
	}
	return out
}

// Timestamps returns a chronological copy of the sample timestamps.
func (w *Window) Timestamps() []Ticks {
	out := make([]Ticks, w.count)
	for i := range out {
		out[i] = w.at(i).timestamp
	}
	return out
}

// Filtered returns a chronological copy of the filtered samples.
func (w *Window) Filtered() []FilteredSample {
	out := make([]FilteredSample, w.count)
	for i := range out {
		r := w.at(i)
		out[i] = FilteredSample{Value: r.filtered, Timestamp: r.timestamp}
	}
	return out
}
