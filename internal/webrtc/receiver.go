package webrtc

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/rtcp"
	pion "github.com/pion/webrtc/v4"

	"camrelay/receiver/internal/decode"
	"camrelay/receiver/internal/domain"
	"camrelay/receiver/internal/sink"
)

// keyframeInterval is how often a PLI is sent while a video track is live.
// The pure-Go VP8 path decodes key frames only, so a short interval keeps
// fresh frames flowing to the virtual camera.
const keyframeInterval = time.Second

// Receiver owns at most one active peer session, drives offer/answer/ICE
// negotiation and routes received tracks into the video/audio sinks. It
// implements domain.SignalHandler.
type Receiver struct {
	iceServers []domain.ICEServer
	video      *sink.Video
	audio      *sink.Audio
	onStart    func()
	onStop     func()

	// offerMu serializes offer handling end to end: the previous session is
	// fully closed before its replacement is built, so concurrent offers are
	// processed one at a time in arrival order and exactly one session
	// survives.
	offerMu sync.Mutex

	mu      sync.Mutex
	session *session
	pending []domain.ICECandidatePayload

	streamMu sync.Mutex
	stream   domain.StreamState
}

// New creates a Receiver. The ICE server list is injected, never hardcoded.
// onStart/onStop fire exactly once per stream activation/deactivation and may
// be nil.
func New(iceServers []domain.ICEServer, video *sink.Video, audio *sink.Audio, onStart, onStop func()) *Receiver {
	return &Receiver{
		iceServers: iceServers,
		video:      video,
		audio:      audio,
		onStart:    onStart,
		onStop:     onStop,
	}
}

// ReceiveOffer negotiates a new session asynchronously. Any existing session
// is fully closed, and its device bindings released, before the replacement
// is constructed. sendAnswer is invoked exactly once with the local answer;
// on negotiation failure it is never invoked and no retry is attempted.
func (r *Receiver) ReceiveOffer(offer domain.SDPPayload, sendAnswer func(domain.SDPPayload)) {
	go r.handleOffer(offer, sendAnswer)
}

func (r *Receiver) handleOffer(offer domain.SDPPayload, sendAnswer func(domain.SDPPayload)) {
	r.offerMu.Lock()
	defer r.offerMu.Unlock()

	r.mu.Lock()
	prev := r.session
	r.session = nil
	r.mu.Unlock()

	if prev != nil {
		log.Printf("[webrtc] superseding active session (state=%s)", prev.currentState())
		prev.close()
		r.teardownStream()
	}

	sess, err := r.newSession()
	if err != nil {
		log.Printf("[webrtc] %v", fmt.Errorf("%w: %v", domain.ErrNegotiationFailed, err))
		return
	}

	r.mu.Lock()
	r.session = sess
	early := r.pending
	r.pending = nil
	r.mu.Unlock()
	sess.seed(early)

	desc := pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: offer.SDP}
	if err := sess.pc.SetRemoteDescription(desc); err != nil {
		log.Printf("[webrtc] %v", fmt.Errorf("%w: set remote description: %v", domain.ErrNegotiationFailed, err))
		return
	}
	sess.drainPending()

	answer, err := sess.pc.CreateAnswer(nil)
	if err != nil {
		log.Printf("[webrtc] %v", fmt.Errorf("%w: create answer: %v", domain.ErrNegotiationFailed, err))
		return
	}
	if err := sess.pc.SetLocalDescription(answer); err != nil {
		log.Printf("[webrtc] %v", fmt.Errorf("%w: set local description: %v", domain.ErrNegotiationFailed, err))
		return
	}

	log.Printf("[webrtc] local SDP answer set")
	sendAnswer(domain.SDPPayload{Type: answer.Type.String(), SDP: answer.SDP})
}

// newSession builds a pion PeerConnection restricted to the codecs the decode
// layer understands, with a NACK generator on the receive path.
func (r *Receiver) newSession() (*session, error) {
	m := &pion.MediaEngine{}

	videoFeedback := []pion.RTCPFeedback{
		{Type: "nack"},
		{Type: "nack", Parameter: "pli"},
	}
	vp8Codec := pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:     pion.MimeTypeVP8,
			ClockRate:    90000,
			RTCPFeedback: videoFeedback,
		},
		PayloadType: 96,
	}
	if err := m.RegisterCodec(vp8Codec, pion.RTPCodecTypeVideo); err != nil {
		return nil, fmt.Errorf("register VP8: %w", err)
	}

	opusCodec := pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:    pion.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	}
	if err := m.RegisterCodec(opusCodec, pion.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register Opus: %w", err)
	}

	i := &interceptor.Registry{}
	generatorFactory, err := nack.NewGeneratorInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create nack generator: %w", err)
	}
	i.Add(generatorFactory)

	api := pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(i),
	)

	var servers []pion.ICEServer
	for _, s := range r.iceServers {
		servers = append(servers, pion.ICEServer{
			URLs:       []string{s.URL},
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	pc, err := api.NewPeerConnection(pion.Configuration{ICEServers: servers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	sess := newSession(pc)

	pc.OnTrack(func(track *pion.TrackRemote, receiver *pion.RTPReceiver) {
		r.onTrack(sess, track)
	})
	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		log.Printf("[webrtc] ICE connection state: %s", state.String())
	})
	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		log.Printf("[webrtc] peer connection state: %s", state.String())
		switch state {
		case pion.PeerConnectionStateFailed, pion.PeerConnectionStateClosed:
			// off the pion ops goroutine: sessionEnded closes the pc
			go r.sessionEnded(sess)
		}
	})

	return sess, nil
}

// onTrack routes a newly attached track to the matching sink pump.
func (r *Receiver) onTrack(sess *session, track *pion.TrackRemote) {
	codec := track.Codec()
	log.Printf("[webrtc] got track: kind=%s codec=%s pt=%d", track.Kind(), codec.MimeType, codec.PayloadType)
	sess.markConnected()

	switch track.Kind() {
	case pion.RTPCodecTypeVideo:
		if codec.MimeType != pion.MimeTypeVP8 {
			log.Printf("[webrtc] unsupported video codec %s, draining", codec.MimeType)
			drainTrack(track)
			return
		}
		go r.requestKeyframes(sess, track)
		sess.pumps.Add(1)
		go r.runVideoPump(sess, decode.NewVP8Source(track))

	case pion.RTPCodecTypeAudio:
		if codec.MimeType != pion.MimeTypeOpus {
			log.Printf("[webrtc] unsupported audio codec %s, draining", codec.MimeType)
			drainTrack(track)
			return
		}
		src, err := decode.NewOpusSource(track, int(codec.ClockRate), int(codec.Channels))
		if err != nil {
			log.Printf("[webrtc] opus source: %v, draining", err)
			drainTrack(track)
			return
		}
		sess.pumps.Add(1)
		go r.runAudioPump(sess, src)

	default:
		drainTrack(track)
	}
}

// requestKeyframes sends a PLI at a fixed interval for the track's lifetime.
func (r *Receiver) requestKeyframes(sess *session, track *pion.TrackRemote) {
	ticker := time.NewTicker(keyframeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.done:
			return
		case <-ticker.C:
			err := sess.pc.WriteRTCP([]rtcp.Packet{
				&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
			})
			if err != nil {
				return
			}
		}
	}
}

// runVideoPump consumes decoded video frames until end-of-track. The first
// frame of a session activates the stream; the track ending closes the whole
// session and fires the matching stop notification.
func (r *Receiver) runVideoPump(sess *session, src domain.VideoSource) {
	for {
		frame, err := src.ReadFrame()
		if err != nil {
			break // TrackEnded: expected termination, not an error
		}
		if r.markActive() {
			log.Printf("[webrtc] stream started")
			if r.onStart != nil {
				r.onStart()
			}
		}
		r.video.Push(frame)
	}

	log.Printf("[webrtc] video track ended")
	sess.pumps.Done()
	r.sessionEnded(sess)
}

// runAudioPump consumes decoded audio frames until end-of-track.
func (r *Receiver) runAudioPump(sess *session, src domain.AudioSource) {
	defer sess.pumps.Done()
	for {
		frame, err := src.ReadFrame()
		if err != nil {
			log.Printf("[webrtc] audio track ended")
			return
		}
		r.audio.Push(frame)
	}
}

// sessionEnded runs the session-level cleanup when the video track terminates
// or the peer connection fails/closes. If the session was already superseded
// or stopped, that path owns cleanup.
func (r *Receiver) sessionEnded(sess *session) {
	r.mu.Lock()
	current := r.session == sess
	if current {
		r.session = nil
	}
	r.mu.Unlock()

	if !current {
		return
	}
	sess.close()
	r.teardownStream()
}

// AddICECandidate queues the candidate while no session (or no remote
// description) exists, otherwise applies it asynchronously. Malformed
// candidates are ignored.
func (r *Receiver) AddICECandidate(c domain.ICECandidatePayload) {
	if !c.Valid() {
		return
	}

	r.mu.Lock()
	if r.session == nil {
		r.pending = append(r.pending, c)
		r.mu.Unlock()
		return
	}
	sess := r.session
	r.mu.Unlock()

	go sess.queueOrApply(c)
}

// StopSession closes the active session and releases device bindings.
// Idempotent; fires at most one stop notification.
func (r *Receiver) StopSession() {
	r.mu.Lock()
	sess := r.session
	r.session = nil
	r.mu.Unlock()

	if sess != nil {
		sess.close()
	}
	r.teardownStream()
}

// teardownStream releases both device bindings and fires the stop
// notification if the stream was active.
func (r *Receiver) teardownStream() {
	r.video.Stop()
	r.audio.Stop()
	if r.markInactive() {
		log.Printf("[webrtc] stream stopped")
		if r.onStop != nil {
			r.onStop()
		}
	}
}

// markActive reports whether this call transitioned INACTIVE -> ACTIVE.
func (r *Receiver) markActive() bool {
	r.streamMu.Lock()
	defer r.streamMu.Unlock()
	if r.stream == domain.StreamActive {
		return false
	}
	r.stream = domain.StreamActive
	return true
}

// markInactive reports whether this call transitioned ACTIVE -> INACTIVE.
func (r *Receiver) markInactive() bool {
	r.streamMu.Lock()
	defer r.streamMu.Unlock()
	if r.stream == domain.StreamInactive {
		return false
	}
	r.stream = domain.StreamInactive
	return true
}

// StreamState returns the current activation state.
func (r *Receiver) StreamState() domain.StreamState {
	r.streamMu.Lock()
	defer r.streamMu.Unlock()
	return r.stream
}

// LatestFrame returns a copy of the most recent normalized video frame.
func (r *Receiver) LatestFrame() (domain.VideoFrame, bool) {
	return r.video.Latest()
}

// AudioLevel returns the current loudness scalar in [0, 1].
func (r *Receiver) AudioLevel() float64 {
	return r.audio.Level()
}

// drainTrack consumes a track nothing else reads so its buffers don't build up.
func drainTrack(track *pion.TrackRemote) {
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := track.Read(buf); err != nil {
				return
			}
		}
	}()
}
