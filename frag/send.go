// Package frag implements message fragmentation (Sender) and reassembly
// (Receiver), the two counterparts of splitting a message into MTU-bounded
// pieces and putting it back together on the other side.
package frag

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ventosilenzioso/laneproto/seq"
	"github.com/ventosilenzioso/laneproto/wire"
)

// ErrZeroPayloadLen is returned by NewSender when constructed with a
// max payload length of 0.
var ErrZeroPayloadLen = errors.New("frag: max payload length must be > 0")

// MessageTooBig is returned by Sender.Fragment when a message would need
// more than wire.MaxFrags fragments to send.
type MessageTooBig struct {
	Len int
	Max int
}

func (e *MessageTooBig) Error() string {
	return fmt.Sprintf("frag: message too big - %d / %d bytes", e.Len, e.Max)
}

// Sender splits a single message into wire.Fragment pieces no larger than
// maxPayloadLen each.
type Sender struct {
	maxPayloadLen int
}

// NewSender returns a Sender bounding fragment payloads to maxPayloadLen
// bytes. maxPayloadLen must be greater than 0.
func NewSender(maxPayloadLen int) (*Sender, error) {
	if maxPayloadLen <= 0 {
		return nil, ErrZeroPayloadLen
	}
	return &Sender{maxPayloadLen: maxPayloadLen}, nil
}

// MaxPayloadLen returns the bound given at construction.
func (s *Sender) MaxPayloadLen() int { return s.maxPayloadLen }

// Fragment splits msg (already including any lane-index prefix the caller
// wants fragmented along with the message) into fragments addressed by
// laneIndex and msgSeq, returned in reverse index order: the last fragment
// first.
//
// Returning fragments in reverse order is a behavioural contract, not an
// implementation detail: it lets a receiver learn the total fragment count
// as soon as it sees the first (= last-index) fragment, and size its
// reassembly buffer exactly once instead of growing it repeatedly.
//
// An empty msg yields no fragments. A message that would need more than
// wire.MaxFrags fragments is rejected with *MessageTooBig.
func (s *Sender) Fragment(laneIndex uint32, msgSeq seq.Message, msg []byte) ([]wire.Fragment, error) {
	if len(msg) == 0 {
		return nil, nil
	}

	numChunks := (len(msg) + s.maxPayloadLen - 1) / s.maxPayloadLen
	if numChunks > wire.MaxFrags {
		return nil, &MessageTooBig{Len: len(msg), Max: wire.MaxFrags * s.maxPayloadLen}
	}

	lastIndex := numChunks - 1
	frags := make([]wire.Fragment, numChunks)
	for i := 0; i < numChunks; i++ {
		start := i * s.maxPayloadLen
		end := start + s.maxPayloadLen
		if end > len(msg) {
			end = len(msg)
		}

		var marker wire.FragmentMarker
		var err error
		if i == lastIndex {
			marker, err = wire.LastFragmentMarker(uint8(i))
		} else {
			marker, err = wire.NonLastFragmentMarker(uint8(i))
		}
		if err != nil {
			// unreachable: numChunks <= wire.MaxFrags was just checked.
			return nil, err
		}

		// fill in reverse: frags[lastIndex] holds index 0, frags[0] holds
		// the last (highest) index, so the caller sees is-last first.
		frags[lastIndex-i] = wire.Fragment{
			Header: wire.FragmentHeader{
				LaneIndex: laneIndex,
				MsgSeq:    msgSeq,
				Marker:    marker,
			},
			Payload: msg[start:end],
		}
	}
	return frags, nil
}
