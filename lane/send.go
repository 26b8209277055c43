// Package lane implements the per-lane send and receive state machines:
// outbound retransmission bookkeeping (SendLane) and the five inbound
// ordering/sequencing policies (RecvLane).
package lane

import (
	"time"

	"github.com/pkg/errors"

	"github.com/ventosilenzioso/laneproto/flow"
	"github.com/ventosilenzioso/laneproto/seq"
	"github.com/ventosilenzioso/laneproto/wire"
)

// SendKind selects a send lane's retransmission behaviour.
type SendKind int

const (
	Unreliable SendKind = iota
	Reliable
)

// ErrTooManyMessages is returned by NewMessage when the lane's next message
// sequence slot is still occupied by an unacked/undropped message.
var ErrTooManyMessages = errors.New("lane: too many in-flight messages")

// SentFragment is one outstanding fragment of an outbound message: either
// awaiting its first flush, awaiting an ack, or due for retransmission.
type SentFragment struct {
	Frag        wire.Fragment
	SentAt      time.Time
	NextFlushAt time.Time
	Attempts    int // incremented by MarkSent; >1 means this flush is a retransmission
}

// SentMessage tracks the outstanding fragments of one outbound message, in
// the order they were passed to NewMessage (for fragments from frag.Sender,
// last fragment first). A FragIndex in this package is a position in Frags,
// not the fragment's wire index from its marker. A nil entry means that
// fragment has been dropped (sent and forgotten, for Unreliable, or acked,
// for Reliable).
type SentMessage struct {
	Frags []*SentFragment
}

func (m *SentMessage) allDropped() bool {
	for _, f := range m.Frags {
		if f != nil {
			return false
		}
	}
	return true
}

// FlushCandidate names one outstanding fragment eligible to be (re)sent in
// the next assembled packet.
type FlushCandidate struct {
	MsgSeq    seq.Message
	FragIndex int
	SentAt    time.Time
	Frag      wire.Fragment
}

// SendLane is one outbound lane's retransmission state.
type SendLane struct {
	Kind       SendKind
	NextMsgSeq seq.Message
	Sent       map[seq.Message]*SentMessage
	BytesLeft  *flow.Bucket
}

// NewSendLane returns an empty SendLane with a byte budget of bucketCap.
func NewSendLane(kind SendKind, bucketCap uint64) *SendLane {
	return &SendLane{
		Kind:      kind,
		Sent:      make(map[seq.Message]*SentMessage),
		BytesLeft: flow.NewBucket(bucketCap),
	}
}

// NewMessage registers frags as a freshly split outbound message, due for
// their first flush immediately (now). Returns the allocated message
// sequence and advances NextMsgSeq.
func (l *SendLane) NewMessage(frags []wire.Fragment, now time.Time) (seq.Message, error) {
	msgSeq := l.NextMsgSeq
	if _, exists := l.Sent[msgSeq]; exists {
		return 0, ErrTooManyMessages
	}

	sentFrags := make([]*SentFragment, len(frags))
	for i, f := range frags {
		sentFrags[i] = &SentFragment{Frag: f, SentAt: now, NextFlushAt: now}
	}
	if len(sentFrags) > 0 {
		l.Sent[msgSeq] = &SentMessage{Frags: sentFrags}
	}
	l.NextMsgSeq = l.NextMsgSeq.Add(1)
	return msgSeq, nil
}

// Candidates returns every outstanding fragment due for (re)transmission at
// or before now, across all messages in this lane.
func (l *SendLane) Candidates(now time.Time) []FlushCandidate {
	var out []FlushCandidate
	for msgSeq, msg := range l.Sent {
		for idx, sf := range msg.Frags {
			if sf == nil || now.Before(sf.NextFlushAt) {
				continue
			}
			out = append(out, FlushCandidate{
				MsgSeq:    msgSeq,
				FragIndex: idx,
				SentAt:    sf.SentAt,
				Frag:      sf.Frag,
			})
		}
	}
	return out
}

// MarkSent records that the fragment named by c was just written into an
// outbound packet. Reliable fragments are rescheduled for retransmission
// after pto; unreliable fragments are dropped immediately (sent once,
// forgotten). Returns true when this call is a retransmission - i.e. the
// fragment had already been flushed at least once before.
func (l *SendLane) MarkSent(c FlushCandidate, now time.Time, pto time.Duration) (retransmit bool) {
	msg, ok := l.Sent[c.MsgSeq]
	if !ok {
		return false
	}
	sf := msg.Frags[c.FragIndex]
	if sf == nil {
		return false
	}
	sf.Attempts++
	retransmit = sf.Attempts > 1
	switch l.Kind {
	case Reliable:
		sf.NextFlushAt = now.Add(pto)
	case Unreliable:
		msg.Frags[c.FragIndex] = nil
	}
	return retransmit
}

// AckFragment marks the fragment at fragIndex of msgSeq as acknowledged,
// removing it from the outstanding set. Returns the payload length freed
// (0 if this path no longer resolves to anything — already acked, already
// dropped, or an unrecognised path, all of which are no-ops) and whether
// this was the last outstanding fragment of its message (the message is
// now fully acked and has been removed) — first-ack-wins, since a second
// ack of an already-removed message is simply a no-op.
func (l *SendLane) AckFragment(msgSeq seq.Message, fragIndex int) (freedBytes int, msgFullyAcked bool) {
	msg, ok := l.Sent[msgSeq]
	if !ok {
		return 0, false
	}
	if fragIndex < 0 || fragIndex >= len(msg.Frags) {
		return 0, false
	}
	sf := msg.Frags[fragIndex]
	if sf == nil {
		return 0, false
	}
	freedBytes = len(sf.Frag.Payload)
	msg.Frags[fragIndex] = nil
	if msg.allDropped() {
		delete(l.Sent, msgSeq)
		return freedBytes, true
	}
	return freedBytes, false
}

// DropEmptyMessages removes any message whose fragments are all nil
// (everything either acked, for Reliable, or already sent once, for
// Unreliable). Called after each flush.
func (l *SendLane) DropEmptyMessages() {
	for msgSeq, msg := range l.Sent {
		if msg.allDropped() {
			delete(l.Sent, msgSeq)
		}
	}
}
