// Package flow implements the token-bucket byte budget used for session-wide
// and per-lane flow control.
package flow

// Bucket is a capped, refillable counter of bytes still available to spend.
type Bucket struct {
	cap uint64
	rem uint64
}

// NewBucket returns a Bucket with the given capacity, starting full.
func NewBucket(capacity uint64) *Bucket {
	return &Bucket{cap: capacity, rem: capacity}
}

func (b *Bucket) Cap() uint64       { return b.cap }
func (b *Bucket) Remaining() uint64 { return b.rem }

// Refill adds cap*portion bytes back to the bucket, saturating at cap.
// portion is typically dt.Seconds() * bytesPerSec / cap, i.e. the fraction
// of a full refill earned since the last call.
func (b *Bucket) Refill(portion float64) {
	if portion <= 0 {
		return
	}
	add := uint64(float64(b.cap) * portion)
	if b.rem+add < b.rem || b.rem+add > b.cap { // overflow or saturate
		b.rem = b.cap
		return
	}
	b.rem += add
}

// Has reports whether at least n bytes remain.
func (b *Bucket) Has(n uint64) bool {
	return b.rem >= n
}

// Consume debits n bytes if available, returning false (and leaving the
// bucket untouched) otherwise.
func (b *Bucket) Consume(n uint64) bool {
	if !b.Has(n) {
		return false
	}
	b.rem -= n
	return true
}

// MinOf views a and b as one combined budget: Consume only succeeds if both
// a and b individually have n bytes available, and debits both atomically
// (neither is touched if either lacks the budget).
func MinOf(a, b *Bucket) *Combined {
	return &Combined{a: a, b: b}
}

// Combined is the min_of combinator described in the original Rust source's
// byte_count.rs: it lets the packet assembler enforce a single spend against
// two independent budgets (session-wide and per-lane) as one operation.
type Combined struct {
	a, b *Bucket
}

func (c *Combined) Has(n uint64) bool {
	return c.a.Has(n) && c.b.Has(n)
}

func (c *Combined) Consume(n uint64) bool {
	if !c.Has(n) {
		return false
	}
	c.a.rem -= n
	c.b.rem -= n
	return true
}

// Remaining returns the smaller of the two underlying remaining counts.
func (c *Combined) Remaining() uint64 {
	if c.a.rem < c.b.rem {
		return c.a.rem
	}
	return c.b.rem
}
