// Package memnet provides an in-memory, lossy, reordering duplex packet
// pipe. It is not a shipped IO adapter - real deployments carry a
// session.Session over whatever datagram transport they already have,
// the way the teacher's Server carries its RakNet handler over a
// net.UDPConn. memnet exists purely so cmd/laneproto-echo (and tests) can
// exercise a Session pair without a real socket.
package memnet

import (
	"errors"
	"math/rand"
)

// ErrClosed is returned by Send once the pipe has been closed.
var ErrClosed = errors.New("memnet: pipe closed")

// Pipe delivers packets from one endpoint to its peer in a background
// queue, optionally dropping or reordering them to simulate a lossy
// network link. The zero value is not usable; construct with NewPair.
type Pipe struct {
	out     chan []byte
	in      chan []byte
	lossPct float64
	jitter  int // max extra packets to hold back before releasing, for reordering
	rng     *rand.Rand
	closed  chan struct{}
}

// NewPair returns two Pipes, each other's peer: sending on one arrives
// (subject to loss/jitter) on the other's Recv.
func NewPair(lossPct float64, jitter int, seed int64) (*Pipe, *Pipe) {
	ab := make(chan []byte, 256)
	ba := make(chan []byte, 256)
	closed := make(chan struct{})
	rng := rand.New(rand.NewSource(seed))
	a := &Pipe{out: ab, in: ba, lossPct: lossPct, jitter: jitter, rng: rng, closed: closed}
	b := &Pipe{out: ba, in: ab, lossPct: lossPct, jitter: jitter, rng: rng, closed: closed}
	return a, b
}

// Send queues packet for delivery to the peer, silently dropping it with
// probability lossPct. The packet is copied; the caller's buffer may be
// reused immediately after Send returns.
func (p *Pipe) Send(packet []byte) error {
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}
	if p.lossPct > 0 && p.rng.Float64() < p.lossPct {
		return nil
	}
	cp := make([]byte, len(packet))
	copy(cp, packet)
	select {
	case p.out <- cp:
		return nil
	case <-p.closed:
		return ErrClosed
	}
}

// Recv drains every packet currently queued from the peer, without
// blocking. When jitter is configured, up to jitter packets may be held
// back and appended after the others in the same call's result,
// simulating reordering.
func (p *Pipe) Recv() [][]byte {
	var held [][]byte
	var out [][]byte
	for {
		select {
		case pkt := <-p.in:
			if p.jitter > 0 && len(held) < p.jitter && p.rng.Intn(2) == 0 {
				held = append(held, pkt)
				continue
			}
			out = append(out, pkt)
		default:
			return append(out, held...)
		}
	}
}

// Close releases both ends of the pair; further Send calls return
// ErrClosed. Recv still drains any packets queued before the close.
func (p *Pipe) Close() {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
}
