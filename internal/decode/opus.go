package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"

	"gopkg.in/hraban/opus.v2"

	"camrelay/receiver/internal/domain"
)

// maxOpusFrame is the largest Opus frame: 120ms at 48kHz per channel.
const maxOpusFrame = 5760

// OpusSource turns an RTP Opus track into float32 interleaved audio frames.
type OpusSource struct {
	track      RTPReader
	dec        *opus.Decoder
	sampleRate int
	channels   int
	pcm        []float32
}

// NewOpusSource wraps a remote Opus track.
func NewOpusSource(track RTPReader, sampleRate, channels int) (*OpusSource, error) {
	if channels < 1 {
		channels = 2
	}
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	return &OpusSource{
		track:      track,
		dec:        dec,
		sampleRate: sampleRate,
		channels:   channels,
		pcm:        make([]float32, maxOpusFrame*channels),
	}, nil
}

// ReadFrame blocks until the next decoded frame arrives. It returns io.EOF
// once the track ends or the transport closes.
func (s *OpusSource) ReadFrame() (domain.AudioFrame, error) {
	for {
		pkt, _, err := s.track.ReadRTP()
		if err != nil {
			return domain.AudioFrame{}, io.EOF
		}
		if len(pkt.Payload) == 0 {
			continue
		}

		n, err := s.dec.DecodeFloat32(pkt.Payload, s.pcm)
		if err != nil {
			log.Printf("[decode] opus: %v", err)
			continue
		}
		if n == 0 {
			continue
		}

		// DecodeFloat32 can exceed [-1, 1] during transients.
		total := n * s.channels
		data := make([]byte, 4*total)
		for i := 0; i < total; i++ {
			v := s.pcm[i]
			if v > 1.0 {
				v = 1.0
			} else if v < -1.0 {
				v = -1.0
			}
			binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
		}

		return domain.AudioFrame{
			Format:     domain.SampleF32,
			Layout:     domain.LayoutInterleaved,
			SampleRate: s.sampleRate,
			Channels:   s.channels,
			Data:       data,
		}, nil
	}
}
