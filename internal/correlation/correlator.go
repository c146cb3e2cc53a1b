// Package correlation fuses independent anomaly detections from different
// telemetry sources into deduplicated, confidence-scored correlated events.
// A BGP anomaly and an SNMP anomaly close in time and space become one
// multi-modal event instead of two alerts.
package correlation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"nettriage/internal/schema"
	"nettriage/internal/topology"
)

// Matching weights and combination factors. Fixed contract, not tunables.
const (
	weightDeviceMatch    = 0.5
	weightInterfaceMatch = 0.3
	weightNeighborMatch  = 0.2

	weightTemporal = 0.6
	weightSpatial  = 0.4

	// loneConfidenceFloor lets a single high-confidence event alert even
	// when correlation strength is below the minimum.
	loneConfidenceFloor = 0.85
)

// Config configures the correlator.
type Config struct {
	WindowSeconds float64 `yaml:"window_seconds"` // max separation for two events to correlate
	MinConfidence float64 `yaml:"min_confidence"` // correlation strength floor
}

// DefaultConfig returns default correlator configuration.
func DefaultConfig() Config {
	return Config{
		WindowSeconds: 60,
		MinConfidence: 0.3,
	}
}

// Correlator buffers recent anomaly events per source and matches each new
// event against the opposite source's buffer. Shared across source workers;
// all mutable state is guarded by the mutex.
type Correlator struct {
	config Config
	graph  *topology.Graph
	dedup  DedupStore

	mu      sync.Mutex
	buffers map[string][]*schema.AnomalyEvent

	ingested   uint64
	emitted    uint64
	duplicates uint64
	suppressed uint64
}

// New creates a Correlator. A nil dedup store defaults to in-memory.
func New(cfg Config, graph *topology.Graph, dedup DedupStore) *Correlator {
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = DefaultConfig().WindowSeconds
	}
	if dedup == nil {
		dedup = NewMemoryDedup(DedupHorizon)
	}
	if graph == nil {
		graph = topology.EmptyGraph()
	}
	return &Correlator{
		config: cfg,
		graph:  graph,
		dedup:  dedup,
		buffers: map[string][]*schema.AnomalyEvent{
			schema.SourceBGP:  nil,
			schema.SourceSNMP: nil,
		},
	}
}

// Ingest processes one anomaly event. It returns the correlated event when
// one should proceed to triage, or nil when the event was deduplicated or
// suppressed as a probable false positive.
func (c *Correlator) Ingest(ctx context.Context, event *schema.AnomalyEvent) *schema.CorrelatedEvent {
	if event == nil {
		return nil
	}

	c.mu.Lock()
	c.ingested++
	c.buffers[event.Source] = append(c.buffers[event.Source], event)
	c.pruneLocked(event.Timestamp)

	match := c.bestMatchLocked(event)
	c.mu.Unlock()

	corr := c.assemble(event, match)

	if c.dedup.Seen(ctx, corr.CorrelationID, time.Now()) {
		c.mu.Lock()
		c.duplicates++
		c.mu.Unlock()
		slog.Debug("duplicate correlation discarded", "correlation_id", corr.CorrelationID)
		return nil
	}

	if corr.CorrelationStrength < c.config.MinConfidence && maxConfidence(corr) <= loneConfidenceFloor {
		c.mu.Lock()
		c.suppressed++
		c.mu.Unlock()
		slog.Debug("low-confidence correlation suppressed",
			"correlation_id", corr.CorrelationID,
			"strength", corr.CorrelationStrength,
		)
		return nil
	}

	c.mu.Lock()
	c.emitted++
	c.mu.Unlock()
	return corr
}

// pruneLocked drops buffered events older than the correlation window
// relative to now (the newest event timestamp).
func (c *Correlator) pruneLocked(now float64) {
	cutoff := now - c.config.WindowSeconds
	for source, buf := range c.buffers {
		keep := buf[:0]
		for _, ev := range buf {
			if ev.Timestamp >= cutoff {
				keep = append(keep, ev)
			}
		}
		c.buffers[source] = keep
	}
}

// bestMatchLocked scans the opposite source's buffer for the candidate with
// the strictly greatest combined score. Ties keep the first encountered.
func (c *Correlator) bestMatchLocked(event *schema.AnomalyEvent) *schema.AnomalyEvent {
	opposite := schema.SourceSNMP
	if event.Source == schema.SourceSNMP {
		opposite = schema.SourceBGP
	}

	var best *schema.AnomalyEvent
	bestScore := -1.0

	for _, candidate := range c.buffers[opposite] {
		temporal := c.temporalProximity(event, candidate)
		spatial := c.spatialCorrelation(event, candidate)
		combined := weightTemporal*temporal + weightSpatial*spatial
		if combined > bestScore {
			bestScore = combined
			best = candidate
		}
	}
	return best
}

// temporalProximity decays linearly from 1 at zero separation to 0 at the
// window edge.
func (c *Correlator) temporalProximity(a, b *schema.AnomalyEvent) float64 {
	dt := math.Abs(a.Timestamp - b.Timestamp)
	return math.Max(0, 1-dt/c.config.WindowSeconds)
}

// spatialCorrelation scores how topologically close two events are:
// same device, same interface, or one event's peer being the other's device
// (or a direct BGP neighbor of it). Capped at 1.
func (c *Correlator) spatialCorrelation(a, b *schema.AnomalyEvent) float64 {
	var score float64

	if a.Device != "" && a.Device == b.Device {
		score += weightDeviceMatch
	}
	if a.Interface != "" && a.Interface == b.Interface {
		score += weightInterfaceMatch
	}
	if c.peerRelated(a, b) || c.peerRelated(b, a) {
		score += weightNeighborMatch
	}

	return math.Min(1, score)
}

func (c *Correlator) peerRelated(a, b *schema.AnomalyEvent) bool {
	if a.Peer != "" && a.Peer == b.Device {
		return true
	}
	if a.Device != "" && b.Device != "" && c.graph.AreNeighbors(a.Device, b.Device) {
		return true
	}
	return false
}

// assemble builds the CorrelatedEvent for an event and its (possibly nil)
// opposite-source match.
func (c *Correlator) assemble(event, match *schema.AnomalyEvent) *schema.CorrelatedEvent {
	corr := &schema.CorrelatedEvent{}

	if event.Source == schema.SourceBGP {
		corr.BGPEvent = event
		corr.SNMPEvent = match
	} else {
		corr.SNMPEvent = event
		corr.BGPEvent = match
	}

	if match != nil {
		corr.IsMultiModal = true
		corr.Timestamp = (event.Timestamp + match.Timestamp) / 2
		corr.TemporalProximity = c.temporalProximity(event, match)
		corr.SpatialCorrelation = c.spatialCorrelation(event, match)
		corr.CorrelationStrength = (corr.TemporalProximity + corr.SpatialCorrelation) / 2
	} else {
		corr.Timestamp = event.Timestamp
	}

	for _, ev := range corr.Events() {
		corr.Modalities = append(corr.Modalities, ev.Source)
	}
	corr.CorrelationID = correlationID(corr.Events())
	return corr
}

// correlationID is a deterministic digest of the constituent events'
// source and timestamp. Re-processing the same events yields the same id,
// which is what makes dedup idempotent.
func correlationID(events []*schema.AnomalyEvent) string {
	h := sha256.New()
	for _, ev := range events {
		fmt.Fprintf(h, "%s:%.6f|", ev.Source, ev.Timestamp)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// CombinedConfidence computes downstream alert confidence: the average of
// the present sides' confidences, boosted 1.3x when multi-modal, then scaled
// by correlation strength. Agreement across independent sources increases
// confidence rather than just averaging it.
func CombinedConfidence(corr *schema.CorrelatedEvent) float64 {
	events := corr.Events()
	if len(events) == 0 {
		return 0
	}

	var sum float64
	for _, ev := range events {
		sum += ev.Confidence
	}
	confidence := sum / float64(len(events))

	if corr.IsMultiModal {
		confidence = math.Min(1, confidence*1.3)
	}
	confidence *= 0.7 + 0.3*corr.CorrelationStrength
	return math.Min(1, confidence)
}

func maxConfidence(corr *schema.CorrelatedEvent) float64 {
	var max float64
	for _, ev := range corr.Events() {
		if ev.Confidence > max {
			max = ev.Confidence
		}
	}
	return max
}

// BufferLen returns the current buffer length for a source.
func (c *Correlator) BufferLen(source string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffers[source])
}

// Stats returns correlator statistics.
func (c *Correlator) Stats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	return map[string]interface{}{
		"ingested":    c.ingested,
		"emitted":     c.emitted,
		"duplicates":  c.duplicates,
		"suppressed":  c.suppressed,
		"bgp_buffer":  len(c.buffers[schema.SourceBGP]),
		"snmp_buffer": len(c.buffers[schema.SourceSNMP]),
	}
}
