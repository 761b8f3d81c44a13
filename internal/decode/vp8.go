package decode

import (
	"bytes"
	"io"
	"log"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"golang.org/x/image/vp8"

	"camrelay/receiver/internal/domain"
	"camrelay/receiver/internal/pixel"
)

// RTPReader is the subset of *webrtc.TrackRemote the sources consume.
type RTPReader interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// VP8Source turns an RTP VP8 track into decoded RGBA frames.
//
// The pure-Go decoder handles key frames only, so delta frames are reassembled
// and discarded; the receiver requests key frames on a short PLI interval and
// the camera pacer keeps device cadence between arrivals.
type VP8Source struct {
	track RTPReader
	asm   vp8Assembler
	dec   *vp8.Decoder
}

// NewVP8Source wraps a remote VP8 track.
func NewVP8Source(track RTPReader) *VP8Source {
	return &VP8Source{track: track, dec: vp8.NewDecoder()}
}

// ReadFrame blocks until the next decodable frame arrives. It returns io.EOF
// once the track ends or the transport closes.
func (s *VP8Source) ReadFrame() (domain.VideoFrame, error) {
	for {
		pkt, _, err := s.track.ReadRTP()
		if err != nil {
			return domain.VideoFrame{}, io.EOF
		}

		data, key := s.asm.push(pkt)
		if data == nil || !key {
			continue
		}

		s.dec.Init(bytes.NewReader(data), len(data))
		if _, err := s.dec.DecodeFrameHeader(); err != nil {
			log.Printf("[decode] vp8 frame header: %v", err)
			continue
		}
		img, err := s.dec.DecodeFrame()
		if err != nil {
			log.Printf("[decode] vp8 frame: %v", err)
			continue
		}

		frame := pixel.FromImage(img)
		frame.CaptureTime = time.Now()
		return frame, nil
	}
}

// vp8Assembler reassembles full VP8 frames from RTP payloads: fragments of
// one frame share a timestamp, the marker bit closes the frame, and the
// inverse key-frame bit lives in bit 0 of the first payload byte.
type vp8Assembler struct {
	buf        []byte
	timestamp  uint32
	inProgress bool
	key        bool
}

func (a *vp8Assembler) push(pkt *rtp.Packet) ([]byte, bool) {
	var packet codecs.VP8Packet
	if _, err := packet.Unmarshal(pkt.Payload); err != nil {
		return nil, false
	}

	if a.inProgress && a.timestamp != pkt.Timestamp {
		a.buf = a.buf[:0]
	}
	a.timestamp = pkt.Timestamp
	a.inProgress = true

	if packet.S == 1 && packet.PID == 0 && len(packet.Payload) > 0 {
		a.key = packet.Payload[0]&0x01 == 0
	}

	a.buf = append(a.buf, packet.Payload...)

	if pkt.Header.Marker {
		frame := make([]byte, len(a.buf))
		copy(frame, a.buf)
		a.buf = a.buf[:0]
		a.inProgress = false
		return frame, a.key
	}
	return nil, false
}
