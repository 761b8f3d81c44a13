package domain

import "errors"

// ErrDeviceUnavailable is returned when a virtual camera/audio device cannot
// be bound. The session continues without that media kind's device sink.
var ErrDeviceUnavailable = errors.New("device unavailable")

// ErrNegotiationFailed wraps offer/answer negotiation step failures. No
// answer is produced and no retry is attempted; a fresh offer recovers.
var ErrNegotiationFailed = errors.New("negotiation failed")
