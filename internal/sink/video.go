package sink

import (
	"log"
	"sync"

	"camrelay/receiver/internal/domain"
	"camrelay/receiver/internal/pixel"
)

// Video normalizes inbound video frames to a fixed target height, feeds the
// virtual camera output and keeps a single-slot latest-frame cache for
// preview consumers.
//
// The camera binding is created lazily, sized to the first normalized frame,
// and torn down on Stop; a fresh binding is created for each stream.
type Video struct {
	targetHeight int
	fps          int
	newOutput    func() domain.CameraOutput

	mu       sync.Mutex
	out      domain.CameraOutput
	degraded bool

	latestMu  sync.Mutex
	latest    domain.VideoFrame
	hasLatest bool
}

// NewVideo creates a video sink. newOutput constructs one device binding per
// stream.
func NewVideo(targetHeight, fps int, newOutput func() domain.CameraOutput) *Video {
	return &Video{targetHeight: targetHeight, fps: fps, newOutput: newOutput}
}

// Push normalizes one frame, overwrites the latest-frame cache and forwards
// the frame to the camera output. It never blocks the producing pump.
func (s *Video) Push(f domain.VideoFrame) {
	if f.Width <= 0 || f.Height <= 0 || len(f.Pix) < 4*f.Width*f.Height {
		return
	}
	frame := pixel.ScaleToHeight(f, s.targetHeight)

	s.latestMu.Lock()
	s.latest = frame.Clone()
	s.hasLatest = true
	s.latestMu.Unlock()

	s.mu.Lock()
	if s.out == nil && !s.degraded {
		out := s.newOutput()
		if err := out.Start(frame.Width, frame.Height, s.fps); err != nil {
			log.Printf("[sink] camera output: %v, continuing without camera device", err)
			s.degraded = true
		} else {
			log.Printf("[sink] camera output started at %dx%d@%d", frame.Width, frame.Height, s.fps)
			s.out = out
		}
	}
	out := s.out
	s.mu.Unlock()

	if out != nil {
		out.Send(frame)
	}
}

// Latest returns a copy of the most recent complete normalized frame.
func (s *Video) Latest() (domain.VideoFrame, bool) {
	s.latestMu.Lock()
	defer s.latestMu.Unlock()
	if !s.hasLatest {
		return domain.VideoFrame{}, false
	}
	return s.latest.Clone(), true
}

// Stop releases the camera binding and clears the cache. Idempotent.
func (s *Video) Stop() {
	s.mu.Lock()
	out := s.out
	s.out = nil
	s.degraded = false
	s.mu.Unlock()

	if out != nil {
		out.Stop()
	}

	s.latestMu.Lock()
	s.latest = domain.VideoFrame{}
	s.hasLatest = false
	s.latestMu.Unlock()
}
