// Package ack implements the acknowledgement bitfield tracker: which of our
// sent packets the peer has acked, and which peer packets we owe an ack.
package ack

import (
	"fmt"
	"strings"

	"github.com/ventosilenzioso/laneproto/seq"
)

// Window is the number of trailing packet sequences representable by the
// bitfield: bit N stands for LastRecv - N, so LastRecv itself is bit 0.
const Window = 32

// Acknowledge tracks the highest packet sequence we've seen (LastRecv) and a
// 32-bit bitfield of which of the 32 preceding sequences (including
// LastRecv itself, at bit 0) were also seen.
type Acknowledge struct {
	LastRecv seq.Packet
	Bits     uint32
}

// shl computes 1<<by as a uint32, saturating to 0 on overflow instead of
// relying on Go's defined-but-surprising shift-amount wraparound.
func shl(by uint16) uint32 {
	if by >= 32 {
		return 0
	}
	return uint32(1) << by
}

// Ack records that packet sequence s was received.
//
// If s is at or before LastRecv, the corresponding bit is set. If s is
// after LastRecv, the bitfield is shifted forward to make s the new
// LastRecv, and bit 0 (representing s itself) is set.
func (a *Acknowledge) Ack(s seq.Packet) {
	dist := s.DistTo(a.LastRecv) // LastRecv - s, wraparound aware
	if dist >= 0 {
		// s <= LastRecv: s is `dist` slots behind LastRecv.
		a.Bits |= shl(uint16(dist))
		return
	}
	// s > LastRecv: advance LastRecv to s, shifting history back.
	shiftBy := uint16(-dist)
	if shiftBy >= 32 {
		a.Bits = 0
	} else {
		a.Bits <<= shiftBy
	}
	a.Bits |= 1
	a.LastRecv = s
}

// IsAcked reports whether packet sequence s has been recorded as received.
func (a Acknowledge) IsAcked(s seq.Packet) bool {
	dist := s.DistTo(a.LastRecv)
	if dist < 0 {
		// s is ahead of LastRecv: we've never seen it.
		return false
	}
	if dist >= 32 {
		return false
	}
	return a.Bits&shl(uint16(dist)) != 0
}

// Seqs returns every packet sequence this Acknowledge has recorded as
// received, across the 32-slot window. It explicitly does not yield
// LastRecv unless bit 0 is set: LastRecv may have been advanced by a shift
// without that exact sequence ever being observed.
func (a Acknowledge) Seqs() []seq.Packet {
	out := make([]seq.Packet, 0, 32)
	for bit := uint16(0); bit < 32; bit++ {
		if a.Bits&shl(bit) == 0 {
			continue
		}
		out = append(out, a.LastRecv.Sub(bit))
	}
	return out
}

// String renders the bitfield as a 32-character binary string alongside
// LastRecv, useful as a structured-logging field.
func (a Acknowledge) String() string {
	var sb strings.Builder
	for bit := 31; bit >= 0; bit-- {
		if a.Bits&(uint32(1)<<uint(bit)) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return fmt.Sprintf("Acknowledge{last_recv=%s bits=%s}", a.LastRecv, sb.String())
}
