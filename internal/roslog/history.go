package roslog

import "sync"

const DefaultCapacity = 100

// History is an insertion-ordered, capacity-bounded list of the most
// recent records, newest first. The oldest entry is evicted on overflow.
type History struct {
	mu       sync.RWMutex
	capacity int
	records  []Record
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{
		capacity: capacity,
		records:  make([]Record, 0, capacity),
	}
}

func (h *History) Capacity() int {
	return h.capacity
}

// Push inserts a record at the head, evicting the oldest when full.
func (h *History) Push(r Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) == h.capacity {
		copy(h.records[1:], h.records)
		h.records[0] = r
		return
	}
	h.records = append(h.records, Record{})
	copy(h.records[1:], h.records)
	h.records[0] = r
}

// Latest returns the most recent record; false before the first push.
func (h *History) Latest() (Record, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.records) == 0 {
		return Record{}, false
	}
	return h.records[0], true
}

// Recent returns up to limit records, newest first. A non-positive
// limit returns the full buffer.
func (h *History) Recent(limit int) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := len(h.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, n)
	copy(out, h.records[:n])
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}
