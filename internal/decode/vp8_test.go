package decode

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
)

// vp8Pkt builds an RTP packet with a minimal one-byte VP8 payload descriptor.
// start sets the S bit; the descriptor carries no extensions.
func vp8Pkt(timestamp uint32, marker, start bool, payload []byte) *rtp.Packet {
	descriptor := byte(0x00)
	if start {
		descriptor = 0x10
	}
	return &rtp.Packet{
		Header:  rtp.Header{Timestamp: timestamp, Marker: marker},
		Payload: append([]byte{descriptor}, payload...),
	}
}

func TestVP8Assembler_SinglePacketKeyFrame(t *testing.T) {
	var a vp8Assembler

	// bit 0 of the first payload byte is the inverse key-frame flag
	frame, key := a.push(vp8Pkt(1000, true, true, []byte{0x00, 0xaa, 0xbb}))

	if frame == nil {
		t.Fatal("expected a completed frame")
	}
	if !key {
		t.Error("expected key frame")
	}
	if !bytes.Equal(frame, []byte{0x00, 0xaa, 0xbb}) {
		t.Errorf("unexpected frame bytes: %v", frame)
	}
}

func TestVP8Assembler_DeltaFrame(t *testing.T) {
	var a vp8Assembler

	frame, key := a.push(vp8Pkt(1000, true, true, []byte{0x01, 0xaa}))

	if frame == nil {
		t.Fatal("expected a completed frame")
	}
	if key {
		t.Error("expected delta frame")
	}
}

func TestVP8Assembler_FragmentedFrame(t *testing.T) {
	var a vp8Assembler

	if frame, _ := a.push(vp8Pkt(1000, false, true, []byte{0x00, 0x11})); frame != nil {
		t.Fatal("frame completed before the marker packet")
	}
	frame, key := a.push(vp8Pkt(1000, true, false, []byte{0x22, 0x33}))

	if frame == nil {
		t.Fatal("expected a completed frame")
	}
	if !key {
		t.Error("expected key frame")
	}
	if !bytes.Equal(frame, []byte{0x00, 0x11, 0x22, 0x33}) {
		t.Errorf("fragments not concatenated in order: %v", frame)
	}
}

func TestVP8Assembler_TimestampChangeFlushesPartialFrame(t *testing.T) {
	var a vp8Assembler

	// first frame loses its marker packet
	a.push(vp8Pkt(1000, false, true, []byte{0x00, 0x11}))

	frame, _ := a.push(vp8Pkt(2000, true, true, []byte{0x00, 0x99}))
	if frame == nil {
		t.Fatal("expected a completed frame")
	}
	if !bytes.Equal(frame, []byte{0x00, 0x99}) {
		t.Errorf("stale fragment leaked into the next frame: %v", frame)
	}
}

func TestVP8Assembler_FlushesPartialFrameAtTimestampZero(t *testing.T) {
	var a vp8Assembler

	// a frame may legitimately start at RTP timestamp 0
	a.push(vp8Pkt(0, false, true, []byte{0x00, 0x11}))

	frame, _ := a.push(vp8Pkt(1000, true, true, []byte{0x00, 0x99}))
	if frame == nil {
		t.Fatal("expected a completed frame")
	}
	if !bytes.Equal(frame, []byte{0x00, 0x99}) {
		t.Errorf("fragment from the timestamp-zero frame leaked: %v", frame)
	}
}

func TestVP8Assembler_MalformedPayloadIgnored(t *testing.T) {
	var a vp8Assembler

	frame, _ := a.push(&rtp.Packet{Header: rtp.Header{Timestamp: 1000, Marker: true}})
	if frame != nil {
		t.Error("expected malformed payload dropped")
	}

	// assembler still works afterwards
	frame, _ = a.push(vp8Pkt(2000, true, true, []byte{0x00, 0x01}))
	if frame == nil {
		t.Error("expected recovery after malformed payload")
	}
}

type erroringTrack struct{}

func (erroringTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	return nil, nil, errors.New("track closed")
}

func TestVP8Source_EOFOnTrackEnd(t *testing.T) {
	s := NewVP8Source(erroringTrack{})

	if _, err := s.ReadFrame(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}
