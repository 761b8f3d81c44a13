package webrtc

import (
	"log"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"

	"camrelay/receiver/internal/domain"
)

// sessionState models the lifecycle of one negotiated peer connection.
type sessionState int

const (
	stateNone sessionState = iota
	stateNegotiating
	stateConnected
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateNegotiating:
		return "NEGOTIATING"
	case stateConnected:
		return "CONNECTED"
	case stateClosed:
		return "CLOSED"
	default:
		return "NONE"
	}
}

// pumpJoinTimeout bounds how long session close waits for pump goroutines.
// A pump that fails to observe end-of-track in time is abandoned rather than
// blocking shutdown.
const pumpJoinTimeout = 2 * time.Second

// session is the single active negotiated connection. It owns the pion
// PeerConnection, the queue of not-yet-applicable ICE candidates and the
// WaitGroup of its frame pumps. At most one session exists at any instant;
// the Receiver closes a superseded session before constructing a replacement.
type session struct {
	pc *pion.PeerConnection

	mu        sync.Mutex
	state     sessionState
	remoteSet bool
	pending   []domain.ICECandidatePayload
	closed    bool

	pumps sync.WaitGroup
	done  chan struct{} // closed when the session closes; stops the PLI ticker
}

func newSession(pc *pion.PeerConnection) *session {
	return &session{pc: pc, state: stateNegotiating, done: make(chan struct{})}
}

func (s *session) currentState() sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// markConnected is called when tracks begin flowing.
func (s *session) markConnected() {
	s.mu.Lock()
	if s.state == stateNegotiating {
		s.state = stateConnected
	}
	s.mu.Unlock()
}

// seed prepends candidates that arrived before this session existed. Must be
// called before the remote description is set.
func (s *session) seed(candidates []domain.ICECandidatePayload) {
	s.mu.Lock()
	s.pending = append(s.pending, candidates...)
	s.mu.Unlock()
}

// queueOrApply applies the candidate immediately once the remote description
// is set, otherwise buffers it in arrival order.
func (s *session) queueOrApply(c domain.ICECandidatePayload) {
	s.mu.Lock()
	if !s.remoteSet {
		s.pending = append(s.pending, c)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.apply(c)
}

// drainPending marks the remote description as set and applies every buffered
// candidate in arrival order, each independently. The queue is cleared.
func (s *session) drainPending() {
	s.mu.Lock()
	s.remoteSet = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, c := range pending {
		s.apply(c)
	}
}

// apply adds one remote candidate. A single candidate's failure is logged and
// skipped; it does not abort the session.
func (s *session) apply(c domain.ICECandidatePayload) {
	mid := c.SDPMid
	idx := uint16(c.SDPMLineIndex)
	init := pion.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	}
	if err := s.pc.AddICECandidate(init); err != nil {
		log.Printf("[webrtc] add ice candidate: %v (skipped)", err)
	}
}

// close shuts down the transport, which makes every pump observe end-of-track,
// then waits for the pumps with a bounded join. Idempotent.
func (s *session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.state = stateClosed
	s.mu.Unlock()

	close(s.done)
	if err := s.pc.Close(); err != nil {
		log.Printf("[webrtc] close peer connection: %v", err)
	}
	if !waitTimeout(&s.pumps, pumpJoinTimeout) {
		log.Printf("[webrtc] pump join timed out after %s, abandoning", pumpJoinTimeout)
	}
}

// waitTimeout waits for the WaitGroup up to d and reports whether it finished.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
		return true
	case <-time.After(d):
		return false
	}
}
