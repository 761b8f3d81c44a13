// Package device owns the OS virtual-device bindings: the v4l2loopback
// camera writer and the loopback audio cable player.
package device

import (
	"log"
	"sync"
	"time"

	"camrelay/receiver/internal/domain"
	"camrelay/receiver/internal/pixel"
)

// queueDepth bounds the hand-off queue between the producing pump and the
// pacer thread. On overflow the oldest frame is dropped; the producer never
// blocks.
const queueDepth = 4

// pacerJoinTimeout bounds how long Stop waits for the pacer thread. Past the
// window the thread is abandoned rather than blocking shutdown.
const pacerJoinTimeout = time.Second

// CameraBinding is one bound OS camera device accepting RGBA frames.
type CameraBinding interface {
	Write(frame domain.VideoFrame) error
	Close() error
}

// BindCamera binds an OS camera device at the given geometry.
type BindCamera func(width, height, fps int) (CameraBinding, error)

// Camera paces frame delivery into a virtual camera device at a fixed rate.
// When no frame arrives in time it emits an idle placeholder so the OS device
// keeps a continuous cadence. Implements domain.CameraOutput.
type Camera struct {
	bind BindCamera

	mu      sync.Mutex
	running bool
	queue   chan domain.VideoFrame
	stop    chan struct{}
	done    chan struct{}
}

// NewCamera creates a camera output that binds devices with bind.
func NewCamera(bind BindCamera) *Camera {
	return &Camera{bind: bind}
}

// Start binds the device and launches the pacer thread. A failure to bind is
// returned to the caller; nothing is retried.
func (c *Camera) Start(width, height, fps int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	binding, err := c.bind(width, height, fps)
	if err != nil {
		return err
	}

	c.queue = make(chan domain.VideoFrame, queueDepth)
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.running = true

	go c.run(binding, width, height, fps)
	return nil
}

// Send hands a frame to the pacer. Never blocks: when the queue is full the
// oldest frame is dropped to make room for the newest.
func (c *Camera) Send(frame domain.VideoFrame) {
	c.mu.Lock()
	queue, running := c.queue, c.running
	c.mu.Unlock()
	if !running {
		return
	}

	select {
	case queue <- frame:
	default:
		select {
		case <-queue:
		default:
		}
		select {
		case queue <- frame:
		default:
		}
	}
}

// Stop signals the pacer to exit and waits for it with a bounded join, then
// marks the binding released. Idempotent.
func (c *Camera) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	stop, done := c.stop, c.done
	c.mu.Unlock()

	close(stop)
	select {
	case <-done:
	case <-time.After(pacerJoinTimeout):
		log.Printf("[device] camera pacer join timed out after %s, abandoning", pacerJoinTimeout)
	}
}

// run is the pacer thread: one emission per frame period, taken from the
// queue or synthesized as an idle frame. Frames of mismatched dimensions are
// resized before emission.
func (c *Camera) run(binding CameraBinding, width, height, fps int) {
	defer close(c.done)
	defer func() {
		if err := binding.Close(); err != nil {
			log.Printf("[device] camera close: %v", err)
		}
	}()

	if fps < 1 {
		fps = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	idle := pixel.Flat(width, height, 0, 0, 0)

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}

		frame := idle
		select {
		case f := <-c.queue:
			if f.Width != width || f.Height != height {
				f = pixel.Resize(f, width, height)
			}
			frame = f
		default:
		}

		if err := binding.Write(frame); err != nil {
			log.Printf("[device] camera write: %v", err)
			return
		}
	}
}
