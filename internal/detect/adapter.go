package detect

import (
	"sort"

	"nettriage/internal/aggregate"
	"nettriage/internal/schema"
)

// Adapter feeds closed feature bins through a detector and emits anomaly
// events. It keeps a bounded rolling history per named series; missing
// series in a bin contribute zero, keeping the cadence gap-free.
type Adapter struct {
	source   string
	detector Detector
	history  map[string][]float64
	maxLen   int
}

// NewAdapter creates an adapter for one source tag ("bgp" or "snmp").
func NewAdapter(source string, detector Detector, historyLen int) *Adapter {
	if historyLen < 16 {
		historyLen = 16
	}
	return &Adapter{
		source:   source,
		detector: detector,
		history:  make(map[string][]float64),
		maxLen:   historyLen,
	}
}

// ProcessBin appends the bin's totals to each series history, runs the
// detector per series, and fuses anomalous series into a single
// AnomalyEvent. Returns nil when nothing is anomalous.
func (a *Adapter) ProcessBin(bin *aggregate.FeatureBin) *schema.AnomalyEvent {
	// Union of series already tracked and series present in this bin, so an
	// established counter that drops to zero still gets scored.
	names := make(map[string]bool, len(a.history)+len(bin.Totals))
	for name := range a.history {
		names[name] = true
	}
	for name := range bin.Totals {
		names[name] = true
	}

	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	var affected []string
	var maxScore, maxConfidence float64

	for _, name := range ordered {
		series := append(a.history[name], bin.Totals[name])
		if len(series) > a.maxLen {
			series = series[len(series)-a.maxLen:]
		}
		a.history[name] = series

		result := a.detector.Update(series)
		if result.IsAnomaly {
			affected = append(affected, name)
			if result.Score > maxScore {
				maxScore = result.Score
			}
			if result.Confidence > maxConfidence {
				maxConfidence = result.Confidence
			}
		}
	}

	if len(affected) == 0 {
		return nil
	}

	ev := &schema.AnomalyEvent{
		Timestamp:        bin.BinEnd,
		Source:           a.source,
		Confidence:       maxConfidence,
		Severity:         severityFromScore(maxScore),
		Device:           dominantPeer(bin, affected),
		AffectedFeatures: affected,
		RawScore:         maxScore,
	}
	if a.source == schema.SourceBGP {
		ev.Peer = ev.Device
	}
	return ev
}

// severityFromScore maps a detector score to an event severity tag.
func severityFromScore(score float64) schema.Severity {
	switch {
	case score >= 6:
		return schema.SeverityCritical
	case score >= 4.5:
		return schema.SeverityError
	case score >= 3:
		return schema.SeverityWarning
	default:
		return schema.SeverityInfo
	}
}

// dominantPeer returns the peer with the largest contribution to the
// affected series, ties broken lexicographically for determinism.
func dominantPeer(bin *aggregate.FeatureBin, affected []string) string {
	var best string
	var bestTotal float64

	peers := make([]string, 0, len(bin.PerPeer))
	for peer := range bin.PerPeer {
		peers = append(peers, peer)
	}
	sort.Strings(peers)

	for _, peer := range peers {
		var total float64
		for _, name := range affected {
			total += bin.PerPeer[peer][name]
		}
		if total > bestTotal {
			bestTotal = total
			best = peer
		}
	}
	return best
}
