// Package memacct tallies bytes buffered across a session's send and
// receive queues against a hard cap.
package memacct

import "github.com/pkg/errors"

// ErrOutOfMemory is returned when an allocation would push usage over the
// configured cap. It is session-fatal: the caller must discard the session.
var ErrOutOfMemory = errors.New("memacct: out of memory")

// Accountant tracks current usage against a fixed cap.
type Accountant struct {
	cap   uint64
	usage uint64
}

// New returns an Accountant with the given cap and zero current usage.
func New(cap uint64) *Accountant {
	return &Accountant{cap: cap}
}

func (a *Accountant) Cap() uint64   { return a.cap }
func (a *Accountant) Usage() uint64 { return a.usage }

// Reserve attempts to account for delta additional bytes. Returns
// ErrOutOfMemory (and leaves usage unchanged) if that would exceed the cap.
func (a *Accountant) Reserve(delta uint64) error {
	if a.usage+delta > a.cap {
		return ErrOutOfMemory
	}
	a.usage += delta
	return nil
}

// Release gives back delta bytes previously reserved. Must be called
// symmetrically with Reserve; delta larger than current usage clamps to 0
// rather than underflowing, since a caller bug here must not corrupt the
// accountant's invariant that Usage() <= Cap().
func (a *Accountant) Release(delta uint64) {
	if delta > a.usage {
		a.usage = 0
		return
	}
	a.usage -= delta
}
