package session

import "github.com/pkg/errors"

// Send errors are recoverable: the session remains usable after one of
// these is returned from Send.
var (
	ErrInvalidLane     = errors.New("session: invalid lane index")
	ErrMessageTooLarge = errors.New("session: message too large")
	ErrTooManyMessages = errors.New("session: too many in-flight messages on lane")
)

// Recv errors are fatal: the owner must discard the session and signal
// disconnection to the peer.
var (
	ErrMalformedPacket       = errors.New("session: malformed packet")
	ErrInvalidLaneIndex      = errors.New("session: invalid lane index in fragment")
	ErrPayloadLengthTooLarge = errors.New("session: fragment payload length too large")
)

// ErrOutOfMemory is session-fatal: buffered bytes would exceed the
// configured cap.
var ErrOutOfMemory = errors.New("session: out of memory")
