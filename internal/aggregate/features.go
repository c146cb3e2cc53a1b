package aggregate

import (
	"strconv"
	"strings"

	"nettriage/internal/schema"
)

// Named BGP feature counters.
const (
	FeatureAnnTotal    = "ann_total"
	FeatureWdrTotal    = "wdr_total"
	FeatureASPathChurn = "as_path_churn"
)

// BGPContribution extracts a bin contribution from one BGP update:
// announcement and withdrawal counts, plus AS-path churn when the update
// replaces a previously seen path for a prefix.
func BGPContribution(update *schema.BGPUpdate, churn *PathChurnTracker) Contribution {
	deltas := map[string]float64{
		FeatureAnnTotal: float64(len(update.Announce)),
		FeatureWdrTotal: float64(len(update.Withdraw)),
	}

	if churn != nil {
		if n := churn.Observe(update); n > 0 {
			deltas[FeatureASPathChurn] = float64(n)
		}
	}

	return Contribution{
		Timestamp: update.Timestamp,
		Peer:      update.Peer,
		Deltas:    deltas,
	}
}

// SNMPContribution extracts a bin contribution from one SNMP poll: every
// reported metric becomes a named counter, attributed to the device.
func SNMPContribution(metrics *schema.SNMPMetrics) Contribution {
	deltas := make(map[string]float64, len(metrics.Metrics))
	for name, value := range metrics.Metrics {
		deltas[name] = value
	}
	return Contribution{
		Timestamp: metrics.Timestamp,
		Peer:      metrics.Device,
		Deltas:    deltas,
	}
}

// PathChurnTracker counts AS-path replacements per prefix. A churn event is
// one announcement whose path string differs from the last one seen for the
// same prefix. Bounded: oldest entries are evicted past maxPrefixes.
type PathChurnTracker struct {
	maxPrefixes int
	paths       map[string]string
	order       []string
}

// NewPathChurnTracker creates a tracker bounded to maxPrefixes entries.
func NewPathChurnTracker(maxPrefixes int) *PathChurnTracker {
	if maxPrefixes <= 0 {
		maxPrefixes = 100000
	}
	return &PathChurnTracker{
		maxPrefixes: maxPrefixes,
		paths:       make(map[string]string),
	}
}

// Observe records the update's AS path against its announced prefixes and
// returns how many prefixes changed path.
func (t *PathChurnTracker) Observe(update *schema.BGPUpdate) int {
	path := asPathString(update.Attrs)
	if path == "" {
		return 0
	}

	changed := 0
	for _, prefix := range update.Announce {
		prev, seen := t.paths[prefix]
		if seen && prev != path {
			changed++
		}
		if !seen {
			t.order = append(t.order, prefix)
			if len(t.order) > t.maxPrefixes {
				evict := t.order[0]
				t.order = t.order[1:]
				delete(t.paths, evict)
			}
		}
		t.paths[prefix] = path
	}
	return changed
}

// asPathString renders the as_path attribute to a comparable string.
func asPathString(attrs map[string]any) string {
	if attrs == nil {
		return ""
	}
	raw, ok := attrs["as_path"]
	if !ok {
		return ""
	}

	switch path := raw.(type) {
	case string:
		return path
	case []int:
		parts := make([]string, 0, len(path))
		for _, hop := range path {
			parts = append(parts, strconv.Itoa(hop))
		}
		return strings.Join(parts, " ")
	case []any:
		parts := make([]string, 0, len(path))
		for _, hop := range path {
			switch x := hop.(type) {
			case string:
				parts = append(parts, x)
			case float64:
				parts = append(parts, strconv.FormatInt(int64(x), 10))
			case int:
				parts = append(parts, strconv.Itoa(x))
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}
