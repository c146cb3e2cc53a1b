// Package schema defines the canonical telemetry and alert types for
// nettriage. Inbound BGP and SNMP records are normalized to these structures
// before aggregation, and every downstream stage consumes and produces them.
package schema

import (
	"time"

	"github.com/google/uuid"
)

// Source tags for anomaly events. Each tag names an independent signal
// modality; the correlator matches events across opposite tags.
const (
	SourceBGP  = "bgp"
	SourceSNMP = "snmp"
)

// BGPUpdate represents one inbound BGP route update as delivered by the
// transport. Timestamps are UNIX seconds (fractional part preserved).
type BGPUpdate struct {
	Timestamp float64        `json:"timestamp" validate:"required"`
	Peer      string         `json:"peer" validate:"required,max=256"`
	Type      string         `json:"type,omitempty" validate:"max=32"`
	Announce  []string       `json:"announce,omitempty"`
	Withdraw  []string       `json:"withdraw,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// SNMPMetrics represents one inbound SNMP poll result for a device.
type SNMPMetrics struct {
	Timestamp float64            `json:"timestamp" validate:"required"`
	Device    string             `json:"device" validate:"required,max=256"`
	Metrics   map[string]float64 `json:"metrics" validate:"required"`
}

// AnomalyEvent is a single detector verdict for one point in time.
// Immutable once created; it lives only in the correlator's bounded
// per-source recent-event buffers.
type AnomalyEvent struct {
	Timestamp        float64  `json:"timestamp"`
	Source           string   `json:"source"`
	Confidence       float64  `json:"confidence"`
	Severity         Severity `json:"severity"`
	Device           string   `json:"device,omitempty"`
	Interface        string   `json:"interface,omitempty"`
	Peer             string   `json:"peer,omitempty"`
	AffectedFeatures []string `json:"affected_features,omitempty"`
	RawScore         float64  `json:"raw_score"`
}

// CorrelatedEvent is the fused view of one or two anomaly events that were
// judged related. At least one of BGPEvent/SNMPEvent is non-nil.
type CorrelatedEvent struct {
	CorrelationID       string        `json:"correlation_id"`
	Timestamp           float64       `json:"timestamp"`
	BGPEvent            *AnomalyEvent `json:"bgp_event,omitempty"`
	SNMPEvent           *AnomalyEvent `json:"snmp_event,omitempty"`
	TemporalProximity   float64       `json:"temporal_proximity"`
	SpatialCorrelation  float64       `json:"spatial_correlation"`
	CorrelationStrength float64       `json:"correlation_strength"`
	IsMultiModal        bool          `json:"is_multi_modal"`
	Modalities          []string      `json:"modalities"`
}

// Events returns the non-nil constituent events.
func (c *CorrelatedEvent) Events() []*AnomalyEvent {
	var out []*AnomalyEvent
	if c.BGPEvent != nil {
		out = append(out, c.BGPEvent)
	}
	if c.SNMPEvent != nil {
		out = append(out, c.SNMPEvent)
	}
	return out
}

// Devices returns the distinct device names referenced by the constituent
// events, in bgp-then-snmp order.
func (c *CorrelatedEvent) Devices() []string {
	var out []string
	seen := make(map[string]bool)
	for _, ev := range c.Events() {
		if ev.Device != "" && !seen[ev.Device] {
			seen[ev.Device] = true
			out = append(out, ev.Device)
		}
	}
	return out
}

// EnrichedAlert is the pipeline's final product: a correlated event joined
// with its topology triage, ready for delivery to external sinks.
type EnrichedAlert struct {
	ID                      uuid.UUID        `json:"id"`
	CreatedAt               time.Time        `json:"created_at"`
	Correlation             *CorrelatedEvent `json:"correlation"`
	Triage                  any              `json:"triage"` // *triage.Result; typed any to keep schema a leaf package
	AlertType               string           `json:"alert_type"`
	Severity                Severity         `json:"severity"`
	Priority                Priority         `json:"priority"`
	Confidence              float64          `json:"confidence"`
	AffectedDevices         []string         `json:"affected_devices"`
	AffectedServices        []string         `json:"affected_services"`
	BlastRadiusCount        int              `json:"blast_radius_count"`
	SPOF                    bool             `json:"spof"`
	ProbableRootCause       string           `json:"probable_root_cause"`
	SupportingEvidence      []string         `json:"supporting_evidence"`
	RecommendedActions      []string         `json:"recommended_actions"`
	EscalationRequired      bool             `json:"escalation_required"`
	EstimatedResolutionTime string           `json:"estimated_resolution_time"`
}
