package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ventosilenzioso/laneproto/ack"
	"github.com/ventosilenzioso/laneproto/seq"
)

func TestVarintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 300, 16384, 1 << 40}
	for _, v := range cases {
		w := NewWriter(8)
		w.WriteVarint(v)
		assert.Equal(t, VarintLen(v), w.Len())
		r := NewReader(w.Bytes())
		got, err := r.ReadVarint()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestPacketHeaderRoundTrip(t *testing.T) {
	h := PacketHeader{
		Seq: seq.Packet(42),
		Acks: ack.Acknowledge{
			LastRecv: seq.Packet(40),
			Bits:     0b1011,
		},
	}
	w := NewWriter(PacketHeaderLen)
	h.Encode(w)
	assert.Equal(t, PacketHeaderLen, w.Len())

	got, err := DecodePacketHeader(NewReader(w.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestFragmentRoundTrip(t *testing.T) {
	marker, err := LastFragmentMarker(3)
	require.NoError(t, err)
	f := Fragment{
		Header: FragmentHeader{
			LaneIndex: 2,
			MsgSeq:    seq.Message(7),
			Marker:    marker,
		},
		Payload: []byte("hello"),
	}
	w := NewWriter(f.EncodeLen())
	f.Encode(w)
	assert.Equal(t, f.EncodeLen(), w.Len())

	got, err := DecodeFragment(NewReader(w.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestFragmentMarker(t *testing.T) {
	last, err := LastFragmentMarker(5)
	require.NoError(t, err)
	assert.True(t, last.IsLast())
	assert.Equal(t, uint8(5), last.Index())

	nonLast, err := NonLastFragmentMarker(5)
	require.NoError(t, err)
	assert.False(t, nonLast.IsLast())
	assert.Equal(t, uint8(5), nonLast.Index())

	_, err = LastFragmentMarker(128)
	assert.ErrorIs(t, err, ErrFragmentIndexOutOfRange)
}

func TestDecodeTruncatedHeader(t *testing.T) {
	_, err := DecodePacketHeader(NewReader([]byte{1, 2, 3}))
	assert.Error(t, err)
}
