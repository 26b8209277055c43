package lane

import (
	"time"

	"github.com/ventosilenzioso/laneproto/memacct"
	"github.com/ventosilenzioso/laneproto/seq"
)

// RecvKind selects an inbound lane's ordering/sequencing policy.
type RecvKind int

const (
	UnreliableUnordered RecvKind = iota
	UnreliableSequenced
	ReliableUnordered
	ReliableSequenced
	ReliableOrdered
)

// dedupWindowSpan is the span of message sequences a reliable lane's
// duplicate filter remembers. int16 distance comparisons saturate at
// +/-32767, so this is the largest span representable without ambiguity -
// satisfying the spec's "window of at least 2^15" requirement exactly.
const dedupWindowSpan = 1 << 15

// dedupWindow remembers which message sequences have already been
// delivered, bounded to the trailing dedupWindowSpan sequences relative to
// the highest one seen.
type dedupWindow struct {
	hasHighest bool
	highest    seq.Message
	seen       map[seq.Message]struct{}
}

func newDedupWindow() *dedupWindow {
	return &dedupWindow{seen: make(map[seq.Message]struct{})}
}

// observe returns true the first time s is seen, false on any repeat.
func (w *dedupWindow) observe(s seq.Message) bool {
	if _, ok := w.seen[s]; ok {
		return false
	}
	w.seen[s] = struct{}{}
	if !w.hasHighest || w.highest.Less(s) {
		w.highest = s
		w.hasHighest = true
	}
	w.prune()
	return true
}

func (w *dedupWindow) prune() {
	for s := range w.seen {
		if uint16(w.highest-s) >= dedupWindowSpan {
			delete(w.seen, s)
		}
	}
}

// pendingMessage is one ReliableOrdered arrival buffered ahead of
// nextExpected, charged against the shared memacct.Accountant until it is
// either delivered or purged as stale.
type pendingMessage struct {
	payload    []byte
	bufferedAt time.Time
}

// RecvLane is one inbound lane's ordering/sequencing state.
type RecvLane struct {
	Kind RecvKind

	hasMaxSeen bool
	maxSeen    seq.Message

	dedup *dedupWindow

	nextExpected seq.Message
	pending      map[seq.Message]*pendingMessage
	mem          *memacct.Accountant
}

// NewRecvLane returns an empty RecvLane of the given kind, billing any
// out-of-order buffering it does (ReliableOrdered only) against mem. mem is
// shared with the rest of the session so that reorder buffers, reassembly
// buffers and send-lane buffers are all bounded by one combined cap.
func NewRecvLane(kind RecvKind, mem *memacct.Accountant) *RecvLane {
	l := &RecvLane{Kind: kind, mem: mem}
	switch kind {
	case ReliableUnordered, ReliableSequenced:
		l.dedup = newDedupWindow()
	case ReliableOrdered:
		l.pending = make(map[seq.Message]*pendingMessage)
	}
	return l
}

// Receive applies this lane's policy to one reassembled message with
// sequence msgSeq, returning zero or more messages (in delivery order) now
// ready to hand to the application. ReliableOrdered may return more than
// one message per call, when an earlier out-of-order arrival was just
// unblocked. A non-nil error (memacct.ErrOutOfMemory) is session-fatal: it
// means buffering this out-of-order arrival would exceed the memory cap.
func (l *RecvLane) Receive(now time.Time, msgSeq seq.Message, payload []byte) ([][]byte, error) {
	switch l.Kind {
	case UnreliableUnordered:
		return [][]byte{payload}, nil

	case UnreliableSequenced:
		if l.hasMaxSeen && msgSeq.Less(l.maxSeen) {
			return nil, nil
		}
		l.maxSeen = msgSeq
		l.hasMaxSeen = true
		return [][]byte{payload}, nil

	case ReliableUnordered:
		if !l.dedup.observe(msgSeq) {
			return nil, nil
		}
		return [][]byte{payload}, nil

	case ReliableSequenced:
		if l.hasMaxSeen && msgSeq.Less(l.maxSeen) {
			return nil, nil
		}
		if !l.dedup.observe(msgSeq) {
			return nil, nil
		}
		l.maxSeen = msgSeq
		l.hasMaxSeen = true
		return [][]byte{payload}, nil

	case ReliableOrdered:
		return l.receiveOrdered(now, msgSeq, payload)

	default:
		return nil, nil
	}
}

func (l *RecvLane) receiveOrdered(now time.Time, msgSeq seq.Message, payload []byte) ([][]byte, error) {
	if msgSeq.Less(l.nextExpected) {
		return nil, nil // already delivered
	}
	if msgSeq == l.nextExpected {
		// fall through to delivery below
	} else if _, dup := l.pending[msgSeq]; dup {
		return nil, nil
	} else {
		if err := l.mem.Reserve(uint64(len(payload))); err != nil {
			return nil, err
		}
		l.pending[msgSeq] = &pendingMessage{payload: payload, bufferedAt: now}
		return nil, nil
	}

	out := [][]byte{payload}
	l.nextExpected = l.nextExpected.Add(1)
	for {
		next, ok := l.pending[l.nextExpected]
		if !ok {
			break
		}
		delete(l.pending, l.nextExpected)
		l.mem.Release(uint64(len(next.payload)))
		out = append(out, next.payload)
		l.nextExpected = l.nextExpected.Add(1)
	}
	return out, nil
}

// PurgeStale drops any ReliableOrdered out-of-order arrival that has sat in
// the reorder buffer for longer than timeout, releasing its accounted
// memory. A purged message is permanently lost - mirroring
// frag.Receiver.PurgeStale's tradeoff of bounded memory over perfect
// delivery under sustained loss. Intended to be called periodically from
// Session.Update.
func (l *RecvLane) PurgeStale(now time.Time, timeout time.Duration) int {
	if l.pending == nil {
		return 0
	}
	purged := 0
	for msgSeq, pm := range l.pending {
		if now.Sub(pm.bufferedAt) > timeout {
			l.mem.Release(uint64(len(pm.payload)))
			delete(l.pending, msgSeq)
			purged++
		}
	}
	return purged
}

// Pending returns the number of out-of-order arrivals currently buffered,
// for diagnostics and metrics.
func (l *RecvLane) Pending() int { return len(l.pending) }
