package domain

// SDPPayload is the JSON structure for SDP offer/answer messages.
type SDPPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidatePayload is the JSON structure for ICE candidate messages.
type ICECandidatePayload struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
}

// Valid reports whether the candidate carries the field required to apply it.
// Malformed candidates are ignored rather than surfaced as errors.
func (c ICECandidatePayload) Valid() bool {
	return c.Candidate != ""
}

// ICEServer holds STUN/TURN server configuration injected at construction.
type ICEServer struct {
	URL        string
	Username   string
	Credential string
}
