package domain

// SignalHandler consumes inbound signaling payloads. The signaling transport
// itself lives outside the receiver core and feeds it through this interface.
type SignalHandler interface {
	// ReceiveOffer starts (re)negotiation. sendAnswer is invoked exactly once
	// with the local answer, or not at all if negotiation fails.
	ReceiveOffer(offer SDPPayload, sendAnswer func(SDPPayload))
	// AddICECandidate applies or queues a remote candidate. Malformed
	// candidates are silently ignored.
	AddICECandidate(candidate ICECandidatePayload)
	// StopSession tears down the active session. Idempotent.
	StopSession()
}

// VideoSource yields decoded video frames from a remote track.
// ReadFrame returns io.EOF when the track ends or the transport closes.
type VideoSource interface {
	ReadFrame() (VideoFrame, error)
}

// AudioSource yields decoded audio frames from a remote track.
// ReadFrame returns io.EOF when the track ends or the transport closes.
type AudioSource interface {
	ReadFrame() (AudioFrame, error)
}

// CameraOutput is an OS virtual-camera binding. Start binds the device for
// one session; Send never blocks; Stop releases the binding.
type CameraOutput interface {
	Start(width, height, fps int) error
	Send(frame VideoFrame)
	Stop()
}

// AudioOutput is an OS virtual-audio-cable binding. Write appends interleaved
// signed 16-bit PCM bytes and never blocks; Stop releases the binding and
// clears any buffered audio.
type AudioOutput interface {
	Start() error
	Write(pcm []byte)
	Stop()
}
