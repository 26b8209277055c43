// Package seq implements 16-bit wraparound-aware sequence number arithmetic,
// the basis for both packet and message sequencing in laneproto.
package seq

import "fmt"

// Num is a 16-bit sequence number. Arithmetic wraps naturally via uint16
// overflow; ordering is wraparound-aware and only meaningful for sequences
// whose true distance apart is less than 2^15.
type Num uint16

// DistTo returns the signed distance from s to other, i.e. how far forward
// (positive) or backward (negative) you'd have to walk from s to reach
// other. Meaningless if the true distance is >= 2^15.
func (s Num) DistTo(other Num) int16 {
	return int16(other - s)
}

// Less reports whether s comes before other in wraparound order.
func (s Num) Less(other Num) bool {
	return int16(s-other) < 0
}

// Compare returns -1, 0 or 1 as s is less than, equal to, or greater than
// other, wraparound-aware.
func (s Num) Compare(other Num) int {
	d := int16(s - other)
	switch {
	case d < 0:
		return -1
	case d > 0:
		return 1
	default:
		return 0
	}
}

// Add returns s + n, wrapping on overflow.
func (s Num) Add(n Num) Num {
	return s + n
}

// Sub returns s - n, wrapping on underflow.
func (s Num) Sub(n Num) Num {
	return s - n
}

func (s Num) String() string {
	return fmt.Sprintf("%d", uint16(s))
}

// Packet is the sequence number of an outbound packet, monotonic per session.
type Packet Num

// DistTo, Less, Compare, Add, Sub mirror Num's semantics for PacketSeq.

func (s Packet) DistTo(other Packet) int16 { return Num(s).DistTo(Num(other)) }
func (s Packet) Less(other Packet) bool    { return Num(s).Less(Num(other)) }
func (s Packet) Compare(other Packet) int  { return Num(s).Compare(Num(other)) }
func (s Packet) Add(n uint16) Packet       { return Packet(Num(s).Add(Num(n))) }
func (s Packet) Sub(n uint16) Packet       { return Packet(Num(s).Sub(Num(n))) }
func (s Packet) String() string            { return Num(s).String() }

// Message is the sequence number of an outbound message within one lane.
type Message Num

func (s Message) DistTo(other Message) int16 { return Num(s).DistTo(Num(other)) }
func (s Message) Less(other Message) bool    { return Num(s).Less(Num(other)) }
func (s Message) Compare(other Message) int  { return Num(s).Compare(Num(other)) }
func (s Message) Add(n uint16) Message       { return Message(Num(s).Add(Num(n))) }
func (s Message) Sub(n uint16) Message       { return Message(Num(s).Sub(Num(n))) }
func (s Message) String() string             { return Num(s).String() }
