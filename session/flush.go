package session

import (
	"sort"
	"time"

	"github.com/ventosilenzioso/laneproto/flow"
	"github.com/ventosilenzioso/laneproto/lane"
	"github.com/ventosilenzioso/laneproto/wire"
)

type candidate struct {
	laneIndex uint32
	lane.FlushCandidate
}

// Flush assembles as many MTU-bounded packets as the current byte budget
// and outstanding/due fragments allow, returning their encoded bytes ready
// to hand to the IO layer. Call repeatedly (e.g. once per driver tick)
// after Send and before idle.
func (s *Session) Flush(now time.Time) [][]byte {
	var packets [][]byte
	retransmits := 0
	for {
		pkt, n, ok := s.flushOne(now)
		if !ok {
			break
		}
		packets = append(packets, pkt)
		retransmits += n
	}
	for _, l := range s.sendLanes {
		l.DropEmptyMessages()
	}
	if s.metrics != nil {
		s.metrics.observeFlush(s, packets, retransmits)
	}
	return packets
}

// flushOne assembles at most one packet's worth of due fragments, returning
// how many of the fragments it packed were retransmissions (already flushed
// at least once before).
func (s *Session) flushOne(now time.Time) ([]byte, int, bool) {
	packetBudget := s.bytesLeft.Remaining()
	if packetBudget > uint64(s.cfg.MTU) {
		packetBudget = uint64(s.cfg.MTU)
	}
	if packetBudget < uint64(wire.PacketHeaderLen) {
		return nil, 0, false
	}
	packetRemaining := int(packetBudget) - wire.PacketHeaderLen

	candidates := s.collectCandidates(now)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].SentAt.Before(candidates[j].SentAt)
	})

	var selected []candidate
	for _, c := range candidates {
		encLen := fragmentEncodeLen(c.laneIndex, c.Frag)
		if encLen > packetRemaining {
			continue
		}
		combined := flow.MinOf(s.bytesLeft, s.sendLanes[c.laneIndex].BytesLeft)
		if !combined.Consume(uint64(encLen)) {
			continue
		}
		packetRemaining -= encLen
		selected = append(selected, c)
	}

	if len(selected) == 0 && now.Before(s.nextKeepAliveAt) {
		return nil, 0, false
	}

	pktSeq := s.nextPacketSeq
	w := wire.NewWriter(s.cfg.MTU)
	header := wire.PacketHeader{Seq: pktSeq, Acks: s.acks}
	header.Encode(w)

	paths := make([]fragPath, 0, len(selected))
	retransmits := 0
	for _, c := range selected {
		f := wire.Fragment{
			Header: wire.FragmentHeader{
				LaneIndex: c.laneIndex,
				MsgSeq:    c.MsgSeq,
				Marker:    c.Frag.Header.Marker,
			},
			Payload: c.Frag.Payload,
		}
		f.Encode(w)

		l := s.sendLanes[c.laneIndex]
		wasUnreliable := l.Kind == lane.Unreliable
		if l.MarkSent(c.FlushCandidate, now, s.rtt.PTO()) {
			retransmits++
		}
		if wasUnreliable {
			s.mem.Release(uint64(len(c.Frag.Payload)))
		}

		paths = append(paths, fragPath{laneIndex: c.laneIndex, msgSeq: c.MsgSeq, fragIndex: c.FragIndex})
	}

	s.flushedPackets[pktSeq] = &flushedPacket{flushedAt: now, frags: paths}
	s.nextPacketSeq = s.nextPacketSeq.Add(1)
	s.nextKeepAliveAt = now.Add(s.cfg.MaxAckDelay)
	return w.Bytes(), retransmits, true
}

func (s *Session) collectCandidates(now time.Time) []candidate {
	var out []candidate
	for laneIndex, l := range s.sendLanes {
		for _, fc := range l.Candidates(now) {
			out = append(out, candidate{laneIndex: uint32(laneIndex), FlushCandidate: fc})
		}
	}
	return out
}
