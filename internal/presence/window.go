package presence

import "strings"

// SampleWindow is a fixed-capacity history of scan samples, most recent first.
// A sample is true when the device answered that round.
type SampleWindow struct {
	buf   []bool
	head  int // index of the most recent sample
	size  int
	trues int
}

// NewSampleWindow creates an empty window holding at most capacity samples
func NewSampleWindow(capacity int) *SampleWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &SampleWindow{buf: make([]bool, capacity)}
}

// SampleWindowFrom rebuilds a window from samples ordered most recent first.
// Samples beyond capacity are dropped.
func SampleWindowFrom(capacity int, samples []bool) *SampleWindow {
	w := NewSampleWindow(capacity)
	if len(samples) > len(w.buf) {
		samples = samples[:len(w.buf)]
	}
	for i := len(samples) - 1; i >= 0; i-- {
		w.Push(samples[i])
	}
	return w
}

// Push records a new sample at the front, evicting the oldest when full
func (w *SampleWindow) Push(sample bool) {
	capacity := len(w.buf)
	w.head = (w.head - 1 + capacity) % capacity

	if w.size == capacity {
		// head now points at the oldest slot
		if w.buf[w.head] {
			w.trues--
		}
	} else {
		w.size++
	}

	w.buf[w.head] = sample
	if sample {
		w.trues++
	}
}

// Len returns the number of recorded samples
func (w *SampleWindow) Len() int {
	return w.size
}

// Cap returns the window capacity
func (w *SampleWindow) Cap() int {
	return len(w.buf)
}

// IsFull reports whether the window holds Cap samples
func (w *SampleWindow) IsFull() bool {
	return w.size == len(w.buf)
}

// At returns the i-th most recent sample (0 = latest)
func (w *SampleWindow) At(i int) bool {
	if i < 0 || i >= w.size {
		panic("presence: sample index out of range")
	}
	return w.buf[(w.head+i)%len(w.buf)]
}

// Samples returns a copy of the history, most recent first
func (w *SampleWindow) Samples() []bool {
	out := make([]bool, w.size)
	for i := range out {
		out[i] = w.At(i)
	}
	return out
}

// BaseRate is the fraction of true samples over the whole window.
// ok is false for an empty window.
func (w *SampleWindow) BaseRate() (rate float64, ok bool) {
	if w.size == 0 {
		return 0, false
	}
	return float64(w.trues) / float64(w.size), true
}

// RecentRate is the fraction of true samples among the k most recent.
// k is clamped to Len; ok is false when no sample is covered.
func (w *SampleWindow) RecentRate(k int) (rate float64, ok bool) {
	if k > w.size {
		k = w.size
	}
	if k <= 0 {
		return 0, false
	}

	seen := 0
	for i := 0; i < k; i++ {
		if w.At(i) {
			seen++
		}
	}
	return float64(seen) / float64(k), true
}

// IndexOfLastTrue returns the position of the most recent true sample,
// or Cap when the window holds none.
func (w *SampleWindow) IndexOfLastTrue() int {
	if w.trues == 0 {
		return len(w.buf)
	}
	for i := 0; i < w.size; i++ {
		if w.At(i) {
			return i
		}
	}
	return len(w.buf)
}

// Clone returns an independent copy
func (w *SampleWindow) Clone() *SampleWindow {
	c := *w
	c.buf = append([]bool(nil), w.buf...)
	return &c
}

// String renders the activity strip, most recent first: 'O' seen, '-' missed
func (w *SampleWindow) String() string {
	var b strings.Builder
	b.Grow(w.size)
	for i := 0; i < w.size; i++ {
		if w.At(i) {
			b.WriteByte('O')
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// ParseActivity is the inverse of String. Unknown characters count as missed.
func ParseActivity(strip string) []bool {
	samples := make([]bool, len(strip))
	for i := 0; i < len(strip); i++ {
		samples[i] = strip[i] == 'O'
	}
	return samples
}
