package domain

import "time"

// SampleFormat identifies the in-memory representation of audio samples.
type SampleFormat int

const (
	SampleS16 SampleFormat = iota // signed 16-bit PCM
	SampleS32                     // signed 32-bit PCM
	SampleF32                     // 32-bit float
	SampleF64                     // 64-bit float
)

func (f SampleFormat) String() string {
	switch f {
	case SampleS16:
		return "S16"
	case SampleS32:
		return "S32"
	case SampleF32:
		return "F32"
	case SampleF64:
		return "F64"
	default:
		return "Unknown"
	}
}

// BytesPerSample returns the width of one sample in bytes.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleS16:
		return 2
	case SampleS32, SampleF32:
		return 4
	case SampleF64:
		return 8
	default:
		return 0
	}
}

// SampleLayout identifies how multi-channel samples are ordered in memory.
type SampleLayout int

const (
	LayoutInterleaved SampleLayout = iota // frame-major: L R L R ...
	LayoutPlanar                          // channel-major: all L then all R
)

// VideoFrame is one decoded video frame in packed RGBA order (4 bytes per
// pixel, row stride = 4*Width). Frames are transient: only the newest is
// retained for preview, nothing is queued for history.
type VideoFrame struct {
	Width       int
	Height      int
	Pix         []byte
	CaptureTime time.Time
}

// Clone returns a deep copy. Use it whenever a frame crosses an execution
// context so the raw buffer is never shared across a thread boundary.
func (f VideoFrame) Clone() VideoFrame {
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	return VideoFrame{Width: f.Width, Height: f.Height, Pix: pix, CaptureTime: f.CaptureTime}
}

// AudioFrame is one decoded audio frame. Data holds raw little-endian sample
// bytes in the given format and layout; planar data is laid out channel-major
// (all of channel 0, then all of channel 1, ...).
type AudioFrame struct {
	Format     SampleFormat
	Layout     SampleLayout
	SampleRate int
	Channels   int
	Data       []byte
}

// StreamState tracks whether a media stream is currently flowing.
type StreamState int

const (
	StreamInactive StreamState = iota
	StreamActive
)

func (s StreamState) String() string {
	if s == StreamActive {
		return "ACTIVE"
	}
	return "INACTIVE"
}
