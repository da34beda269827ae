package monitor

import "sync"

// ringBuffer keeps the N most recent samples and their rolling average.
// Older samples are overwritten; memory stays bounded no matter how long
// the process runs.
type ringBuffer struct {
	mu    sync.Mutex
	buf   []float64
	next  int
	count int
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{buf: make([]float64, capacity)}
}

func (r *ringBuffer) add(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// avg returns the rolling average over retained samples, 0 when empty.
func (r *ringBuffer) avg() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < r.count; i++ {
		sum += r.buf[i]
	}
	return sum / float64(r.count)
}

func (r *ringBuffer) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
