package sink

import (
	"encoding/binary"
	"math"
	"testing"

	"camrelay/receiver/internal/domain"
)

func f32Frame(samples []float32, channels int, layout domain.SampleLayout) domain.AudioFrame {
	data := make([]byte, 4*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
	}
	return domain.AudioFrame{
		Format:     domain.SampleF32,
		Layout:     layout,
		SampleRate: 48000,
		Channels:   channels,
		Data:       data,
	}
}

func s16Frame(samples []int16, channels int, layout domain.SampleLayout) domain.AudioFrame {
	data := make([]byte, 2*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(v))
	}
	return domain.AudioFrame{
		Format:     domain.SampleS16,
		Layout:     layout,
		SampleRate: 48000,
		Channels:   channels,
		Data:       data,
	}
}

func pcmSamples(t *testing.T, pcm []byte) []int16 {
	t.Helper()
	if len(pcm)%2 != 0 {
		t.Fatalf("odd PCM byte count %d", len(pcm))
	}
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return out
}

func TestToInt16Interleaved_FloatHalfScale(t *testing.T) {
	frame := f32Frame([]float32{0.5, 0.5, 0.5, 0.5}, 2, domain.LayoutInterleaved)

	for _, s := range pcmSamples(t, ToInt16Interleaved(frame)) {
		// 0.5 * 32767 with rounding tolerance of one step
		if s < 16382 || s > 16384 {
			t.Errorf("expected ~16383, got %d", s)
		}
	}
}

func TestToInt16Interleaved_FloatClipped(t *testing.T) {
	frame := f32Frame([]float32{1.5, -2.0}, 1, domain.LayoutInterleaved)

	got := pcmSamples(t, ToInt16Interleaved(frame))
	if got[0] != 32767 {
		t.Errorf("expected positive clip to 32767, got %d", got[0])
	}
	if got[1] != -32767 {
		t.Errorf("expected negative clip to -32767, got %d", got[1])
	}
}

func TestToInt16Interleaved_PlanarTranspose(t *testing.T) {
	// channel-major: left = 1,2,3  right = 4,5,6
	frame := s16Frame([]int16{1, 2, 3, 4, 5, 6}, 2, domain.LayoutPlanar)

	got := pcmSamples(t, ToInt16Interleaved(frame))
	want := []int16{1, 4, 2, 5, 3, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: expected %d, got %d (full: %v)", i, want[i], got[i], got)
		}
	}
}

func TestToInt16Interleaved_S32Rescale(t *testing.T) {
	hi, lo := int32(math.MaxInt32), int32(math.MinInt32)
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[0:], uint32(hi))
	binary.LittleEndian.PutUint32(data[4:], uint32(lo))
	frame := domain.AudioFrame{
		Format:     domain.SampleS32,
		Layout:     domain.LayoutInterleaved,
		SampleRate: 48000,
		Channels:   1,
		Data:       data,
	}

	got := pcmSamples(t, ToInt16Interleaved(frame))
	if got[0] != 32767 {
		t.Errorf("max int32: expected 32767, got %d", got[0])
	}
	if got[1] < -32768 || got[1] > -32766 {
		t.Errorf("min int32: expected ~-32767, got %d", got[1])
	}
}

func TestToInt16Interleaved_S16Passthrough(t *testing.T) {
	frame := s16Frame([]int16{-5, 0, 12345}, 1, domain.LayoutInterleaved)

	got := pcmSamples(t, ToInt16Interleaved(frame))
	want := []int16{-5, 0, 12345}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestLoudness_Silence(t *testing.T) {
	if level := Loudness(make([]byte, 1920)); level != 0.0 {
		t.Errorf("expected exactly 0.0 for silence, got %v", level)
	}
}

func TestLoudness_FullScaleClamped(t *testing.T) {
	samples := make([]int16, 960)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 32767
		} else {
			samples[i] = -32768
		}
	}
	pcm := ToInt16Interleaved(s16Frame(samples, 1, domain.LayoutInterleaved))

	if level := Loudness(pcm); level != 1.0 {
		t.Errorf("expected clamp at 1.0, got %v", level)
	}
}

func TestLoudness_Empty(t *testing.T) {
	if level := Loudness(nil); level != 0.0 {
		t.Errorf("expected 0.0 for empty buffer, got %v", level)
	}
}
