package device

import (
	"log"
	"sync"
)

// AudioConfig describes the virtual audio cable binding.
type AudioConfig struct {
	// DeviceMatch is a case-insensitive substring matched against playback
	// device names. Defaults to the conventional loopback cable device.
	DeviceMatch string
	SampleRate  int
	Channels    int
	// BlockFrames is the fixed block size the device callback requests.
	BlockFrames int
}

func (c AudioConfig) withDefaults() AudioConfig {
	if c.DeviceMatch == "" {
		c.DeviceMatch = "CABLE Input"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	}
	if c.Channels <= 0 {
		c.Channels = 2
	}
	if c.BlockFrames <= 0 {
		c.BlockFrames = 960
	}
	return c
}

// player is the platform audio backend: it drives onData from the real-time
// device callback with the exact output block to fill.
type player interface {
	start(onData func(out []byte)) error
	stop()
}

// Audio feeds interleaved signed 16-bit PCM into a loopback audio device.
// The device callback dequeues from a FIFO byte buffer and zero-pads on
// underflow, so it completes within its real-time deadline without blocking.
// Implements domain.AudioOutput.
type Audio struct {
	cfg AudioConfig
	buf *PCMBuffer

	mu      sync.Mutex
	player  player
	running bool
}

// NewAudio creates an audio output backed by the platform audio stack.
func NewAudio(cfg AudioConfig) *Audio {
	cfg = cfg.withDefaults()
	a := &Audio{cfg: cfg}
	a.player = newMalgoPlayer(cfg)
	// Cap at one second of audio: a stalled consumer drops the oldest bytes
	// instead of growing the buffer without bound.
	a.buf = NewPCMBuffer(cfg.SampleRate * cfg.Channels * 2)
	return a
}

// newAudioWithPlayer wires a custom backend. Used by tests.
func newAudioWithPlayer(cfg AudioConfig, p player) *Audio {
	a := NewAudio(cfg)
	a.player = p
	return a
}

// Start binds the device and begins draining the buffer at the device rate.
func (a *Audio) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}
	if err := a.player.start(a.buf.ReadInto); err != nil {
		return err
	}
	a.running = true
	return nil
}

// Write appends PCM bytes for the device to consume. Never blocks.
func (a *Audio) Write(pcm []byte) {
	a.buf.Write(pcm)
}

// Stop releases the device binding and clears buffered audio. Idempotent.
func (a *Audio) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.mu.Unlock()

	a.player.stop()
	a.buf.Reset()
	if n := a.buf.Underflows(); n > 0 {
		log.Printf("[device] audio underflows this session: %d", n)
	}
}

// Underflows returns the diagnostic underflow counter.
func (a *Audio) Underflows() uint64 {
	return a.buf.Underflows()
}
