// Package rtt implements a classic TCP-style smoothed round-trip-time
// estimator (SRTT/RTTVAR) and derives a probe timeout (PTO) from it.
package rtt

import "time"

// DefaultGranularity matches TCP's typical clock granularity assumption; it
// bounds the minimum PTO contribution from RTTVAR.
const DefaultGranularity = 20 * time.Millisecond

// Estimator tracks smoothed RTT and RTT variance from a stream of round-trip
// samples, per RFC 6298.
type Estimator struct {
	granularity time.Duration
	minPTO      time.Duration

	hasSample bool
	srtt      time.Duration
	rttvar    time.Duration
}

// New returns an Estimator with the given clock granularity and a floor on
// the PTO it will ever report (useful so early/noisy samples don't produce
// an unreasonably tight retransmit timer).
func New(granularity, minPTO time.Duration) *Estimator {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	return &Estimator{granularity: granularity, minPTO: minPTO}
}

// Sample records one observed round-trip time r.
func (e *Estimator) Sample(r time.Duration) {
	if !e.hasSample {
		e.srtt = r
		e.rttvar = r / 2
		e.hasSample = true
		return
	}
	diff := e.srtt - r
	if diff < 0 {
		diff = -diff
	}
	e.rttvar = (e.rttvar*3 + diff) / 4
	e.srtt = (e.srtt*7 + r) / 8
}

// SRTT returns the current smoothed RTT estimate, or 0 if no sample has
// been taken yet.
func (e *Estimator) SRTT() time.Duration { return e.srtt }

// RTTVAR returns the current RTT variance estimate.
func (e *Estimator) RTTVAR() time.Duration { return e.rttvar }

// HasSample reports whether at least one RTT sample has been recorded.
func (e *Estimator) HasSample() bool { return e.hasSample }

// PTO returns the current probe timeout: srtt + max(4*rttvar, granularity),
// floored at minPTO. Before any sample has been taken it returns minPTO.
func (e *Estimator) PTO() time.Duration {
	if !e.hasSample {
		return e.minPTO
	}
	variance := 4 * e.rttvar
	if variance < e.granularity {
		variance = e.granularity
	}
	pto := e.srtt + variance
	if pto < e.minPTO {
		return e.minPTO
	}
	return pto
}
