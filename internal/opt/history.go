package opt

// DefaultHistoryLength is the late-acceptance window.
const DefaultHistoryLength = 1000

// lateHistory is the fixed-length FIFO of candidate costs. Oldest returns the
// value pushed exactly len pushes ago, or the seed while fewer pushes happened.
type lateHistory struct {
	buf  []float64
	head int // index of the oldest entry
}

func newLateHistory(length int, seed float64) *lateHistory {
	if length <= 0 {
		length = DefaultHistoryLength
	}
	buf := make([]float64, length)
	for i := range buf {
		buf[i] = seed
	}
	return &lateHistory{buf: buf}
}

func (h *lateHistory) Len() int { return len(h.buf) }

func (h *lateHistory) Oldest() float64 { return h.buf[h.head] }

// Push evicts the oldest cost and appends c.
func (h *lateHistory) Push(c float64) {
	h.buf[h.head] = c
	h.head++
	if h.head == len(h.buf) {
		h.head = 0
	}
}
