package session

import (
	"time"

	"github.com/pkg/errors"

	"github.com/ventosilenzioso/laneproto/wire"
)

// Recv decodes one packet handed to the session by the IO layer, updates
// ack bookkeeping, resolves any acks the peer is reporting against our own
// sent fragments, and feeds any carried fragments through reassembly and
// the destination lane's receive policy.
//
// A non-nil error is fatal: the caller must discard the session.
func (s *Session) Recv(now time.Time, packet []byte) ([]RecvMessage, []MessageAck, error) {
	r := wire.NewReader(packet)
	header, err := wire.DecodePacketHeader(r)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrMalformedPacket, "packet header: %v", err)
	}
	s.acks.Ack(header.Seq)

	msgAcks := s.resolveAcks(header, now)

	var recvMsgs []RecvMessage
	for r.Remaining() > 0 {
		f, err := wire.DecodeFragmentWithLimit(r, s.maxFragPayload)
		if err != nil {
			if errors.Is(err, wire.ErrPayloadTooLarge) {
				return recvMsgs, msgAcks, errors.Wrapf(ErrPayloadLengthTooLarge, "%v", err)
			}
			return recvMsgs, msgAcks, errors.Wrapf(ErrMalformedPacket, "fragment: %v", err)
		}

		if int(f.Header.LaneIndex) >= len(s.recvLanes) {
			return recvMsgs, msgAcks, errors.Wrapf(ErrInvalidLaneIndex, "lane %d", f.Header.LaneIndex)
		}

		msg, err := s.reassembler.Reassemble(f.Header.LaneIndex, f, now)
		if err != nil {
			return recvMsgs, msgAcks, errors.Wrapf(ErrOutOfMemory, "%v", err)
		}
		if msg == nil {
			continue
		}

		recvLaneIndex, payload, err := decodeLanePrefix(msg)
		if err != nil {
			return recvMsgs, msgAcks, errors.Wrapf(ErrMalformedPacket, "lane prefix: %v", err)
		}
		if int(recvLaneIndex) >= len(s.recvLanes) {
			return recvMsgs, msgAcks, errors.Wrapf(ErrInvalidLaneIndex, "lane %d", recvLaneIndex)
		}

		outs, err := s.recvLanes[recvLaneIndex].Receive(now, f.Header.MsgSeq, payload)
		if err != nil {
			return recvMsgs, msgAcks, errors.Wrapf(ErrOutOfMemory, "%v", err)
		}
		for _, out := range outs {
			recvMsgs = append(recvMsgs, RecvMessage{LaneIndex: recvLaneIndex, Payload: out})
		}
	}

	if s.metrics != nil {
		s.metrics.observeRecv(len(recvMsgs), len(msgAcks))
	}
	return recvMsgs, msgAcks, nil
}

// resolveAcks walks every packet sequence the peer's header claims to have
// received, frees the send-side fragments those packets carried, and takes
// exactly one RTT sample per newly-resolved flushed packet (never
// resampling a packet whose ack we've already processed, per Karn's
// algorithm applied at packet granularity).
func (s *Session) resolveAcks(header wire.PacketHeader, now time.Time) []MessageAck {
	var msgAcks []MessageAck
	for _, ackedSeq := range header.Acks.Seqs() {
		fp, ok := s.flushedPackets[ackedSeq]
		if !ok {
			continue
		}
		for _, path := range fp.frags {
			l := s.sendLanes[path.laneIndex]
			freed, fullyAcked := l.AckFragment(path.msgSeq, path.fragIndex)
			if freed > 0 {
				s.mem.Release(uint64(freed))
			}
			if fullyAcked {
				msgAcks = append(msgAcks, MessageAck{LaneIndex: path.laneIndex, MsgSeq: path.msgSeq})
			}
		}
		if !fp.sampled {
			s.rtt.Sample(now.Sub(fp.flushedAt))
			fp.sampled = true
		}
		delete(s.flushedPackets, ackedSeq)
	}
	return msgAcks
}

// decodeLanePrefix strips the varint receive-lane index Send prepended to
// every message before fragmenting it.
func decodeLanePrefix(msg []byte) (uint32, []byte, error) {
	r := wire.NewReader(msg)
	laneIndex, err := r.ReadVarint()
	if err != nil {
		return 0, nil, err
	}
	return uint32(laneIndex), r.Bytes(), nil
}
