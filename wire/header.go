package wire

import (
	"github.com/pkg/errors"

	"github.com/ventosilenzioso/laneproto/ack"
	"github.com/ventosilenzioso/laneproto/seq"
)

// PacketHeaderLen is the fixed 8-byte encoding of PacketHeader: 2-byte seq,
// 2-byte last_recv, 4-byte ack bits.
const PacketHeaderLen = 2 + 2 + 4

// PacketHeader is the fixed-size header prefixed to every outbound packet.
type PacketHeader struct {
	Seq  seq.Packet
	Acks ack.Acknowledge
}

func (h PacketHeader) Encode(w *Writer) {
	w.WriteUint16(uint16(h.Seq))
	w.WriteUint16(uint16(h.Acks.LastRecv))
	w.WriteUint32(h.Acks.Bits)
}

func DecodePacketHeader(r *Reader) (PacketHeader, error) {
	if r.Remaining() < PacketHeaderLen {
		return PacketHeader{}, errors.Wrap(ErrTruncated, "packet header")
	}
	s, err := r.ReadUint16()
	if err != nil {
		return PacketHeader{}, err
	}
	lastRecv, err := r.ReadUint16()
	if err != nil {
		return PacketHeader{}, err
	}
	bits, err := r.ReadUint32()
	if err != nil {
		return PacketHeader{}, err
	}
	return PacketHeader{
		Seq: seq.Packet(s),
		Acks: ack.Acknowledge{
			LastRecv: seq.Packet(lastRecv),
			Bits:     bits,
		},
	}, nil
}
