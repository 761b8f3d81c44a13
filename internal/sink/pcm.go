package sink

import (
	"encoding/binary"
	"math"

	"camrelay/receiver/internal/domain"
)

// loudnessGain maps typical speech RMS into a usable [0, 1] meter range.
const loudnessGain = 4.2

// ToInt16Interleaved converts an audio frame into interleaved little-endian
// signed 16-bit PCM bytes. Planar (channel-major) layouts are transposed into
// frame-major order; float samples are clipped to [-1, 1] and scaled by
// 32767; wider integer samples are rescaled by their type's maximum
// magnitude.
func ToInt16Interleaved(f domain.AudioFrame) []byte {
	width := f.Format.BytesPerSample()
	if width == 0 || len(f.Data) < width {
		return nil
	}
	total := len(f.Data) / width
	channels := f.Channels
	if channels < 1 {
		channels = 1
	}

	out := make([]byte, 2*total)
	if f.Layout == domain.LayoutPlanar && channels > 1 {
		frames := total / channels
		for t := 0; t < frames; t++ {
			for c := 0; c < channels; c++ {
				s := sampleAt(f, c*frames+t)
				binary.LittleEndian.PutUint16(out[2*(t*channels+c):], uint16(s))
			}
		}
		return out[:2*frames*channels]
	}

	for i := 0; i < total; i++ {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(sampleAt(f, i)))
	}
	return out
}

// sampleAt reads sample i from the frame's raw data as int16.
func sampleAt(f domain.AudioFrame, i int) int16 {
	switch f.Format {
	case domain.SampleS16:
		return int16(binary.LittleEndian.Uint16(f.Data[2*i:]))
	case domain.SampleS32:
		v := int32(binary.LittleEndian.Uint32(f.Data[4*i:]))
		return int16(int64(v) * 32767 / math.MaxInt32)
	case domain.SampleF32:
		v := math.Float32frombits(binary.LittleEndian.Uint32(f.Data[4*i:]))
		return floatToInt16(float64(v))
	case domain.SampleF64:
		v := math.Float64frombits(binary.LittleEndian.Uint64(f.Data[8*i:]))
		return floatToInt16(v)
	default:
		return 0
	}
}

func floatToInt16(v float64) int16 {
	if v > 1.0 {
		v = 1.0
	} else if v < -1.0 {
		v = -1.0
	}
	return int16(v * 32767)
}

// Loudness computes an RMS-based level in [0, 1] from interleaved signed
// 16-bit PCM bytes. An all-zero buffer yields exactly 0.
func Loudness(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768.0
		sum += s * s
	}
	level := math.Sqrt(sum/float64(n)) * loudnessGain
	if level > 1 {
		level = 1
	}
	return level
}
