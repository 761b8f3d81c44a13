package sink

import (
	"fmt"
	"sync"
	"testing"

	"camrelay/receiver/internal/domain"
)

type fakeAudioOutput struct {
	mu       sync.Mutex
	startErr error
	started  bool
	stopped  bool
	written  []byte
}

func (f *fakeAudioOutput) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeAudioOutput) Write(pcm []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, pcm...)
}

func (f *fakeAudioOutput) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func TestAudioSink_LazyStartAndWrite(t *testing.T) {
	out := &fakeAudioOutput{}
	s := NewAudio(func() domain.AudioOutput { return out })

	s.Push(s16Frame([]int16{100, -100}, 2, domain.LayoutInterleaved))

	if !out.started {
		t.Fatal("expected output started on first frame")
	}
	if len(out.written) != 4 {
		t.Errorf("expected 4 PCM bytes written, got %d", len(out.written))
	}

	s.Push(s16Frame([]int16{1, 2}, 2, domain.LayoutInterleaved))
	if len(out.written) != 8 {
		t.Errorf("expected 8 PCM bytes after second frame, got %d", len(out.written))
	}
}

func TestAudioSink_DegradedOnDeviceUnavailable(t *testing.T) {
	created := 0
	s := NewAudio(func() domain.AudioOutput {
		created++
		return &fakeAudioOutput{startErr: fmt.Errorf("%w: no such device", domain.ErrDeviceUnavailable)}
	})

	s.Push(s16Frame([]int16{10000}, 1, domain.LayoutInterleaved))
	s.Push(s16Frame([]int16{10000}, 1, domain.LayoutInterleaved))

	// one failed bind, then no retry until the next stream
	if created != 1 {
		t.Errorf("expected a single bind attempt, got %d", created)
	}
	if s.Level() <= 0 {
		t.Error("expected loudness tracking to continue in degraded mode")
	}
}

func TestAudioSink_StopResetsDegradedAndLevel(t *testing.T) {
	fail := true
	var out *fakeAudioOutput
	s := NewAudio(func() domain.AudioOutput {
		if fail {
			return &fakeAudioOutput{startErr: domain.ErrDeviceUnavailable}
		}
		out = &fakeAudioOutput{}
		return out
	})

	s.Push(s16Frame([]int16{20000}, 1, domain.LayoutInterleaved))
	s.Stop()

	if s.Level() != 0 {
		t.Errorf("expected level reset to 0 after Stop, got %v", s.Level())
	}

	// next stream binds again
	fail = false
	s.Push(s16Frame([]int16{20000}, 1, domain.LayoutInterleaved))
	if out == nil || !out.started {
		t.Fatal("expected a fresh bind attempt after Stop")
	}
}

func TestAudioSink_StopReleasesOutput(t *testing.T) {
	out := &fakeAudioOutput{}
	s := NewAudio(func() domain.AudioOutput { return out })

	s.Push(s16Frame([]int16{1}, 1, domain.LayoutInterleaved))
	s.Stop()
	s.Stop()

	if !out.stopped {
		t.Error("expected output stopped")
	}
}

func TestAudioSink_LevelTracksFrames(t *testing.T) {
	s := NewAudio(func() domain.AudioOutput { return &fakeAudioOutput{} })

	s.Push(s16Frame(make([]int16, 960), 1, domain.LayoutInterleaved))
	if s.Level() != 0 {
		t.Errorf("silence: expected 0, got %v", s.Level())
	}

	loud := make([]int16, 960)
	for i := range loud {
		loud[i] = 30000
	}
	s.Push(s16Frame(loud, 1, domain.LayoutInterleaved))
	if s.Level() != 1.0 {
		t.Errorf("loud frame: expected clamp at 1.0, got %v", s.Level())
	}
}
