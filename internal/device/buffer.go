package device

import "sync"

// PCMBuffer is a thread-safe FIFO byte buffer between the audio pump and the
// real-time device callback. Reads never block: a short buffer is zero-padded
// and counted as an underflow. The buffer is capped; on overflow the oldest
// bytes are dropped so a stalled consumer cannot grow it without bound.
type PCMBuffer struct {
	mu         sync.Mutex
	data       []byte
	max        int
	underflows uint64
}

// NewPCMBuffer creates a buffer capped at max bytes (0 means uncapped).
func NewPCMBuffer(max int) *PCMBuffer {
	return &PCMBuffer{max: max}
}

// Write appends PCM bytes, dropping the oldest data past the cap.
func (b *PCMBuffer) Write(p []byte) {
	if len(p) == 0 {
		return
	}
	b.mu.Lock()
	b.data = append(b.data, p...)
	if b.max > 0 && len(b.data) > b.max {
		over := len(b.data) - b.max
		b.data = b.data[:copy(b.data, b.data[over:])]
	}
	b.mu.Unlock()
}

// ReadInto fills out from the front of the buffer. When fewer bytes are
// buffered than requested, the remainder is zero-filled and the underflow
// counter is incremented. Safe to call from a real-time callback: it never
// blocks waiting for data.
func (b *PCMBuffer) ReadInto(out []byte) {
	b.mu.Lock()
	n := copy(out, b.data)
	b.data = b.data[:copy(b.data, b.data[n:])]
	if n < len(out) {
		b.underflows++
	}
	b.mu.Unlock()

	for i := n; i < len(out); i++ {
		out[i] = 0
	}
}

// Len returns the number of buffered bytes.
func (b *PCMBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Underflows returns how many reads found fewer bytes than requested.
func (b *PCMBuffer) Underflows() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.underflows
}

// Reset discards all buffered bytes.
func (b *PCMBuffer) Reset() {
	b.mu.Lock()
	b.data = b.data[:0]
	b.mu.Unlock()
}
