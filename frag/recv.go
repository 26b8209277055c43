package frag

import (
	"time"

	"github.com/ventosilenzioso/laneproto/memacct"
	"github.com/ventosilenzioso/laneproto/wire"
)

// key identifies one in-progress message by the lane it was sent on and its
// message sequence number within that lane.
type key struct {
	laneIndex uint32
	msgSeq    uint64 // seq.Message widened for map-key use
}

type inProgress struct {
	payloads      map[uint8][]byte
	totalCount    int // -1 until the last-fragment marker is seen
	receivedCount int
	bytesHeld     uint64
	lastActivity  time.Time
}

// Receiver buffers fragments keyed by (lane, message sequence) and
// reconstructs the original message once every fragment has arrived,
// charging every buffered byte against a shared memacct.Accountant.
type Receiver struct {
	mem     *memacct.Accountant
	entries map[key]*inProgress
}

// NewReceiver returns a Receiver billing buffered fragment bytes against
// mem. mem is shared with the rest of the session so that reassembly
// buffers and send-lane buffers are bounded by one combined cap.
func NewReceiver(mem *memacct.Accountant) *Receiver {
	return &Receiver{mem: mem, entries: make(map[key]*inProgress)}
}

// Reassemble ingests one fragment of lane laneIndex. It returns the
// complete message once every fragment has arrived, or (nil, nil) while
// the message is still incomplete (or the fragment was a duplicate).
// A non-nil error is session-fatal (memacct.ErrOutOfMemory).
func (r *Receiver) Reassemble(laneIndex uint32, frag wire.Fragment, now time.Time) ([]byte, error) {
	k := key{laneIndex: laneIndex, msgSeq: uint64(frag.Header.MsgSeq)}
	entry, ok := r.entries[k]
	if !ok {
		entry = &inProgress{payloads: make(map[uint8][]byte), totalCount: -1}
		r.entries[k] = entry
	}

	index := frag.Header.Marker.Index()
	if _, dup := entry.payloads[index]; dup {
		entry.lastActivity = now
		return nil, nil
	}

	if err := r.mem.Reserve(uint64(len(frag.Payload))); err != nil {
		return nil, err
	}
	entry.payloads[index] = frag.Payload
	entry.bytesHeld += uint64(len(frag.Payload))
	entry.receivedCount++
	entry.lastActivity = now

	if frag.Header.Marker.IsLast() {
		entry.totalCount = int(index) + 1
	}

	if entry.totalCount == -1 || entry.receivedCount != entry.totalCount {
		return nil, nil
	}

	out := make([]byte, 0, entry.bytesHeld)
	for i := 0; i < entry.totalCount; i++ {
		out = append(out, entry.payloads[uint8(i)]...)
	}
	r.mem.Release(entry.bytesHeld)
	delete(r.entries, k)
	return out, nil
}

// PurgeStale drops any in-progress reassembly whose most recent fragment
// arrived more than timeout ago, releasing its accounted memory. Intended
// to be called periodically from Session.Update.
func (r *Receiver) PurgeStale(now time.Time, timeout time.Duration) int {
	purged := 0
	for k, entry := range r.entries {
		if now.Sub(entry.lastActivity) > timeout {
			r.mem.Release(entry.bytesHeld)
			delete(r.entries, k)
			purged++
		}
	}
	return purged
}

// Pending returns the number of in-progress reassemblies, for diagnostics.
func (r *Receiver) Pending() int { return len(r.entries) }
