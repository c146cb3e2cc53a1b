// Package aggregate turns an unbounded event stream into fixed-cadence
// feature bins. Detectors downstream need gap-free numeric series, so the
// aggregator's sole job is to guarantee every bin is sealed exactly once,
// in time order, and never mutated afterwards.
package aggregate

import (
	"errors"
	"sync"
)

// ErrNoClosedBin is returned when popping with no sealed bin available.
// Callers must check HasClosedBin first.
var ErrNoClosedBin = errors.New("aggregate: no closed bin available")

// FeatureBin holds aggregated counters for one half-open interval
// [BinStart, BinEnd). Immutable once sealed.
type FeatureBin struct {
	BinStart float64                       `json:"bin_start"`
	BinEnd   float64                       `json:"bin_end"`
	Totals   map[string]float64            `json:"totals"`
	PerPeer  map[string]map[string]float64 `json:"per_peer"`
}

// Contribution is one event's additive share of a bin: named counter deltas
// plus an optional peer attribution for the per-peer breakdown.
type Contribution struct {
	Timestamp float64
	Peer      string
	Deltas    map[string]float64
}

// Aggregator bins event contributions into fixed-duration windows.
// Sealing is monotonic: an event whose timestamp opens a newer bin seals the
// current one; an event belonging to an already-sealed bin folds into the
// open bin rather than re-opening history. One bin is mutable at a time.
type Aggregator struct {
	binSeconds float64

	mu              sync.Mutex
	hasOpen         bool
	currentBinStart float64
	totals          map[string]float64
	perPeer         map[string]map[string]float64
	closed          []*FeatureBin

	sealedCount uint64
	eventCount  uint64
}

// New creates an Aggregator with the given bin duration in seconds.
func New(binSeconds float64) *Aggregator {
	if binSeconds <= 0 {
		binSeconds = 60
	}
	return &Aggregator{
		binSeconds: binSeconds,
		totals:     make(map[string]float64),
		perPeer:    make(map[string]map[string]float64),
	}
}

// BinSeconds returns the configured bin duration in seconds.
func (a *Aggregator) BinSeconds() float64 {
	return a.binSeconds
}

// AddEvent applies one event's contribution to the aggregator, sealing the
// open bin first if the event starts a newer interval.
func (a *Aggregator) AddEvent(c Contribution) {
	a.mu.Lock()
	defer a.mu.Unlock()

	bin := float64(int64(c.Timestamp/a.binSeconds)) * a.binSeconds

	if !a.hasOpen {
		a.hasOpen = true
		a.currentBinStart = bin
	} else if bin > a.currentBinStart {
		a.sealLocked()
		a.currentBinStart = bin
	}
	// bin < currentBinStart: late event, folded into the open bin. Sealed
	// bins are never re-opened.

	for name, delta := range c.Deltas {
		a.totals[name] += delta
	}
	if c.Peer != "" {
		peerTotals, ok := a.perPeer[c.Peer]
		if !ok {
			peerTotals = make(map[string]float64)
			a.perPeer[c.Peer] = peerTotals
		}
		for name, delta := range c.Deltas {
			peerTotals[name] += delta
		}
	}
	a.eventCount++
}

// sealLocked moves the open accumulator into the closed queue and resets it.
func (a *Aggregator) sealLocked() {
	a.closed = append(a.closed, &FeatureBin{
		BinStart: a.currentBinStart,
		BinEnd:   a.currentBinStart + a.binSeconds,
		Totals:   a.totals,
		PerPeer:  a.perPeer,
	})
	a.totals = make(map[string]float64)
	a.perPeer = make(map[string]map[string]float64)
	a.sealedCount++
}

// HasClosedBin reports whether a sealed bin is waiting to be popped.
func (a *Aggregator) HasClosedBin() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.closed) > 0
}

// PopClosedBin removes and returns the oldest sealed bin, FIFO.
func (a *Aggregator) PopClosedBin() (*FeatureBin, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.closed) == 0 {
		return nil, ErrNoClosedBin
	}
	bin := a.closed[0]
	a.closed = a.closed[1:]
	return bin, nil
}

// Stats returns aggregator statistics.
func (a *Aggregator) Stats() map[string]interface{} {
	a.mu.Lock()
	defer a.mu.Unlock()

	return map[string]interface{}{
		"bin_seconds":  a.binSeconds,
		"events":       a.eventCount,
		"sealed_bins":  a.sealedCount,
		"pending_bins": len(a.closed),
		"bin_open":     a.hasOpen,
	}
}
