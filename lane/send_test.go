package lane

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ventosilenzioso/laneproto/wire"
)

func frag(idx uint8, last bool) wire.Fragment {
	var m wire.FragmentMarker
	if last {
		m, _ = wire.LastFragmentMarker(idx)
	} else {
		m, _ = wire.NonLastFragmentMarker(idx)
	}
	return wire.Fragment{Header: wire.FragmentHeader{Marker: m}, Payload: []byte{byte(idx)}}
}

func TestNewMessageAssignsSeqAndAdvances(t *testing.T) {
	l := NewSendLane(Reliable, 1<<20)
	now := time.Now()
	s1, err := l.NewMessage([]wire.Fragment{frag(0, true)}, now)
	require.NoError(t, err)
	s2, err := l.NewMessage([]wire.Fragment{frag(0, true)}, now)
	require.NoError(t, err)
	assert.True(t, s1.Less(s2))
}

func TestTooManyMessagesWhenSlotOccupied(t *testing.T) {
	l := NewSendLane(Reliable, 1<<20)
	now := time.Now()
	// manually occupy seq 0 without advancing NextMsgSeq.
	l.Sent[0] = &SentMessage{Frags: []*SentFragment{{Frag: frag(0, true), SentAt: now, NextFlushAt: now}}}
	_, err := l.NewMessage([]wire.Fragment{frag(0, true)}, now)
	assert.ErrorIs(t, err, ErrTooManyMessages)
}

func TestUnreliableDroppedAfterSend(t *testing.T) {
	l := NewSendLane(Unreliable, 1<<20)
	now := time.Now()
	msgSeq, err := l.NewMessage([]wire.Fragment{frag(0, true)}, now)
	require.NoError(t, err)

	cands := l.Candidates(now)
	require.Len(t, cands, 1)
	l.MarkSent(cands[0], now, time.Second)
	l.DropEmptyMessages()
	_, exists := l.Sent[msgSeq]
	assert.False(t, exists)
}

func TestReliableRetransmitsAfterPTO(t *testing.T) {
	l := NewSendLane(Reliable, 1<<20)
	now := time.Now()
	_, err := l.NewMessage([]wire.Fragment{frag(0, true)}, now)
	require.NoError(t, err)

	cands := l.Candidates(now)
	require.Len(t, cands, 1)
	l.MarkSent(cands[0], now, 10*time.Millisecond)

	assert.Empty(t, l.Candidates(now))
	assert.Len(t, l.Candidates(now.Add(11*time.Millisecond)), 1)
}

func TestMarkSentReportsRetransmitOnSecondAttempt(t *testing.T) {
	l := NewSendLane(Reliable, 1<<20)
	now := time.Now()
	_, err := l.NewMessage([]wire.Fragment{frag(0, true)}, now)
	require.NoError(t, err)

	cands := l.Candidates(now)
	require.Len(t, cands, 1)
	assert.False(t, l.MarkSent(cands[0], now, 10*time.Millisecond), "first send is not a retransmission")

	later := now.Add(11 * time.Millisecond)
	cands = l.Candidates(later)
	require.Len(t, cands, 1)
	assert.True(t, l.MarkSent(cands[0], later, 10*time.Millisecond), "second send of the same fragment is a retransmission")
}

func TestAckFragmentRemovesMessageWhenComplete(t *testing.T) {
	l := NewSendLane(Reliable, 1<<20)
	now := time.Now()
	msgSeq, err := l.NewMessage([]wire.Fragment{frag(0, false), frag(1, true)}, now)
	require.NoError(t, err)

	_, fullyAcked := l.AckFragment(msgSeq, 0)
	assert.False(t, fullyAcked)
	_, fullyAcked = l.AckFragment(msgSeq, 1)
	assert.True(t, fullyAcked)
	_, exists := l.Sent[msgSeq]
	assert.False(t, exists)
}

func TestAckFragmentSecondAckIsNoop(t *testing.T) {
	l := NewSendLane(Reliable, 1<<20)
	now := time.Now()
	msgSeq, err := l.NewMessage([]wire.Fragment{frag(0, true)}, now)
	require.NoError(t, err)
	freed, fullyAcked := l.AckFragment(msgSeq, 0)
	assert.True(t, fullyAcked)
	assert.Equal(t, 1, freed)
	freed, fullyAcked = l.AckFragment(msgSeq, 0)
	assert.False(t, fullyAcked)
	assert.Equal(t, 0, freed)
}
