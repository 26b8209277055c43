package session

import (
	"time"

	"github.com/pkg/errors"

	"github.com/ventosilenzioso/laneproto/frag"
	"github.com/ventosilenzioso/laneproto/seq"
	"github.com/ventosilenzioso/laneproto/wire"
)

// Send splits msg and queues it for transmission on the lane at laneIndex,
// returning the message sequence number it was assigned. The message isn't
// actually handed to the IO layer until a subsequent Flush picks up its
// fragments.
func (s *Session) Send(now time.Time, laneIndex uint32, msg []byte) (seq.Message, error) {
	if int(laneIndex) >= len(s.sendLanes) {
		return 0, errors.Wrapf(ErrInvalidLane, "lane %d", laneIndex)
	}
	l := s.sendLanes[laneIndex]

	// Prepend the receive-lane index so the peer can dispatch the
	// reassembled message to the matching RecvLane policy, independent of
	// whatever FragmentHeader.LaneIndex groups fragments by on the wire.
	prefixed := prependLanePrefix(laneIndex, msg)

	frags, err := s.sender.Fragment(laneIndex, l.NextMsgSeq, prefixed)
	if err != nil {
		var tooBig *frag.MessageTooBig
		if errors.As(err, &tooBig) {
			return 0, errors.Wrapf(ErrMessageTooLarge, "lane %d: %v", laneIndex, tooBig)
		}
		return 0, err
	}

	totalBytes := uint64(0)
	for _, f := range frags {
		totalBytes += uint64(len(f.Payload))
	}
	if totalBytes > 0 {
		if err := s.mem.Reserve(totalBytes); err != nil {
			return 0, errors.Wrapf(ErrOutOfMemory, "lane %d: %v", laneIndex, err)
		}
	}

	msgSeq, err := l.NewMessage(frags, now)
	if err != nil {
		if totalBytes > 0 {
			s.mem.Release(totalBytes)
		}
		return 0, errors.Wrapf(ErrTooManyMessages, "lane %d: %v", laneIndex, err)
	}

	if s.metrics != nil {
		s.metrics.observeSend(s, laneIndex, len(frags), totalBytes)
	}
	return msgSeq, nil
}

// fragmentEncodeLen returns the on-wire size of f once it's wrapped in a
// wire.Fragment for the given lane.
func fragmentEncodeLen(laneIndex uint32, f wire.Fragment) int {
	f.Header.LaneIndex = laneIndex
	return f.EncodeLen()
}

// prependLanePrefix prepends varint(laneIndex) to msg, the prefix Recv
// strips back off via decodeLanePrefix once reassembly completes.
func prependLanePrefix(laneIndex uint32, msg []byte) []byte {
	w := wire.NewWriter(wire.VarintLen(uint64(laneIndex)) + len(msg))
	w.WriteVarint(uint64(laneIndex))
	w.WriteBytes(msg)
	return w.Bytes()
}
