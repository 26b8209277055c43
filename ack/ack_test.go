package ack

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ventosilenzioso/laneproto/seq"
)

func TestAckInOrder(t *testing.T) {
	var a Acknowledge
	a.Ack(seq.Packet(0))
	assert.Equal(t, seq.Packet(0), a.LastRecv)
	assert.Equal(t, uint32(1), a.Bits)
	assert.True(t, a.IsAcked(seq.Packet(0)))

	a.Ack(seq.Packet(1))
	assert.Equal(t, seq.Packet(1), a.LastRecv)
	assert.True(t, a.IsAcked(seq.Packet(0)))
	assert.True(t, a.IsAcked(seq.Packet(1)))
}

func TestAckOutOfOrder(t *testing.T) {
	var a Acknowledge
	a.Ack(seq.Packet(5))
	a.Ack(seq.Packet(3))
	assert.Equal(t, seq.Packet(5), a.LastRecv)
	assert.True(t, a.IsAcked(seq.Packet(5)))
	assert.True(t, a.IsAcked(seq.Packet(3)))
	assert.False(t, a.IsAcked(seq.Packet(4)))
}

func TestAckIsIdempotent(t *testing.T) {
	var a, b Acknowledge
	a.Ack(seq.Packet(10))
	a.Ack(seq.Packet(10))
	b.Ack(seq.Packet(10))
	assert.Equal(t, b, a)
}

func TestAckFutureSeqNotYetAcked(t *testing.T) {
	var a Acknowledge
	a.Ack(seq.Packet(10))
	assert.False(t, a.IsAcked(seq.Packet(11)))
}

func TestSeqsDoesNotYieldLastRecvUnlessBit0Set(t *testing.T) {
	a := Acknowledge{LastRecv: seq.Packet(10), Bits: 0b10}
	seqs := a.Seqs()
	assert.Len(t, seqs, 1)
	assert.Equal(t, seq.Packet(9), seqs[0])
}

func TestSeqsYieldsAllSetBits(t *testing.T) {
	a := Acknowledge{LastRecv: seq.Packet(10), Bits: 0b111}
	seqs := a.Seqs()
	assert.ElementsMatch(t, []seq.Packet{10, 9, 8}, seqs)
}

func TestAckOutsideWindowDoesNothingUseful(t *testing.T) {
	var a Acknowledge
	a.Ack(seq.Packet(1000))
	a.Ack(seq.Packet(0))
	assert.Equal(t, seq.Packet(1000), a.LastRecv)
	assert.False(t, a.IsAcked(seq.Packet(0)))
}

func TestAckWraparound(t *testing.T) {
	var a Acknowledge
	a.Ack(seq.Packet(65535))
	a.Ack(seq.Packet(1))
	assert.Equal(t, seq.Packet(1), a.LastRecv)
	assert.True(t, a.IsAcked(seq.Packet(65535)))
}
