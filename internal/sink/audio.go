package sink

import (
	"log"
	"math"
	"sync"
	"sync/atomic"

	"camrelay/receiver/internal/domain"
)

// Audio normalizes inbound audio frames to interleaved signed 16-bit PCM,
// feeds the virtual audio output and maintains a live loudness metric.
//
// The device binding is created lazily on the first frame and torn down on
// Stop; a fresh binding is created for each stream.
type Audio struct {
	newOutput func() domain.AudioOutput

	mu       sync.Mutex
	out      domain.AudioOutput
	degraded bool

	level atomic.Uint64 // float64 bits; lock-free reads from any context
}

// NewAudio creates an audio sink. newOutput constructs one device binding per
// stream.
func NewAudio(newOutput func() domain.AudioOutput) *Audio {
	return &Audio{newOutput: newOutput}
}

// Push converts one frame to PCM, updates the loudness metric and appends the
// bytes to the output ring. It never blocks on the device.
func (s *Audio) Push(f domain.AudioFrame) {
	pcm := ToInt16Interleaved(f)
	if len(pcm) == 0 {
		return
	}
	s.level.Store(math.Float64bits(Loudness(pcm)))

	s.mu.Lock()
	if s.out == nil && !s.degraded {
		out := s.newOutput()
		if err := out.Start(); err != nil {
			log.Printf("[sink] audio output: %v, continuing without audio device", err)
			s.degraded = true
		} else {
			log.Printf("[sink] audio output started")
			s.out = out
		}
	}
	out := s.out
	s.mu.Unlock()

	if out != nil {
		out.Write(pcm)
	}
}

// Level returns the current loudness scalar in [0, 1].
func (s *Audio) Level() float64 {
	return math.Float64frombits(s.level.Load())
}

// Stop releases the device binding and resets the metric. Idempotent.
func (s *Audio) Stop() {
	s.mu.Lock()
	out := s.out
	s.out = nil
	s.degraded = false
	s.mu.Unlock()

	if out != nil {
		out.Stop()
	}
	s.level.Store(0)
}
