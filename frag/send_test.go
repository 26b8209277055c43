package frag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ventosilenzioso/laneproto/seq"
	"github.com/ventosilenzioso/laneproto/wire"
)

const payloadLen = 2

var msgSeq = seq.Message(0)

func TestZeroPayloadLenRejected(t *testing.T) {
	_, err := NewSender(0)
	assert.ErrorIs(t, err, ErrZeroPayloadLen)
}

func TestMessageTooLarge(t *testing.T) {
	s, err := NewSender(1)
	require.NoError(t, err)

	_, err = s.Fragment(0, msgSeq, make([]byte, wire.MaxFrags))
	assert.NoError(t, err)

	_, err = s.Fragment(0, msgSeq, make([]byte, wire.MaxFrags+1))
	var tooBig *MessageTooBig
	assert.ErrorAs(t, err, &tooBig)
}

func TestEmptyMessageYieldsNoFragments(t *testing.T) {
	s, err := NewSender(payloadLen)
	require.NoError(t, err)
	frags, err := s.Fragment(0, msgSeq, nil)
	require.NoError(t, err)
	assert.Empty(t, frags)
}

func TestMessageSmallerThanPayloadLen(t *testing.T) {
	s, _ := NewSender(payloadLen)
	frags, err := s.Fragment(0, msgSeq, []byte{1})
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.True(t, frags[0].Header.Marker.IsLast())
	assert.Equal(t, uint8(0), frags[0].Header.Marker.Index())
	assert.Equal(t, []byte{1}, frags[0].Payload)
}

func TestMessageEqualToPayloadLen(t *testing.T) {
	s, _ := NewSender(payloadLen)
	frags, err := s.Fragment(0, msgSeq, []byte{1, 2})
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.True(t, frags[0].Header.Marker.IsLast())
	assert.Equal(t, []byte{1, 2}, frags[0].Payload)
}

// msg_larger_than_payload_len_1: 3 bytes / payloadLen 2 -> 2 fragments,
// emitted last-first: (last, index1, [3]) then (non-last, index0, [1,2]).
func TestMessageLargerThanPayloadLen1(t *testing.T) {
	s, _ := NewSender(payloadLen)
	frags, err := s.Fragment(0, msgSeq, []byte{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, frags, 2)

	assert.True(t, frags[0].Header.Marker.IsLast())
	assert.Equal(t, uint8(1), frags[0].Header.Marker.Index())
	assert.Equal(t, []byte{3}, frags[0].Payload)

	assert.False(t, frags[1].Header.Marker.IsLast())
	assert.Equal(t, uint8(0), frags[1].Header.Marker.Index())
	assert.Equal(t, []byte{1, 2}, frags[1].Payload)
}

// msg_larger_than_payload_len_2: 5 bytes / payloadLen 2 -> 3 fragments,
// emitted last(index2), non-last(index1), non-last(index0).
func TestMessageLargerThanPayloadLen2(t *testing.T) {
	s, _ := NewSender(payloadLen)
	frags, err := s.Fragment(0, msgSeq, []byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.Len(t, frags, 3)

	assert.True(t, frags[0].Header.Marker.IsLast())
	assert.Equal(t, uint8(2), frags[0].Header.Marker.Index())
	assert.Equal(t, []byte{5}, frags[0].Payload)

	assert.False(t, frags[1].Header.Marker.IsLast())
	assert.Equal(t, uint8(1), frags[1].Header.Marker.Index())
	assert.Equal(t, []byte{3, 4}, frags[1].Payload)

	assert.False(t, frags[2].Header.Marker.IsLast())
	assert.Equal(t, uint8(0), frags[2].Header.Marker.Index())
	assert.Equal(t, []byte{1, 2}, frags[2].Payload)
}
