// Package alerting assembles enriched alerts from correlation and triage
// output and manages their delivery, deduplication and escalation.
package alerting

import (
	"fmt"
	"strings"
	"time"

	"nettriage/internal/correlation"
	"nettriage/internal/schema"
	"nettriage/internal/triage"

	"github.com/google/uuid"
)

// resolutionEstimates is the fixed failure-type to duration table.
var resolutionEstimates = map[string]string{
	correlation.FailureLink:       "30-60 minutes",
	correlation.FailureHardware:   "2-4 hours",
	correlation.FailureRouteLeak:  "15-45 minutes",
	correlation.FailureCongestion: "1-2 hours",
	correlation.FailureUnknown:    "1-2 hours",
}

// recommendedActions is the fixed failure-type to runbook table.
var recommendedActions = map[string][]string{
	correlation.FailureLink: {
		"Check optics and interface error counters on the affected link",
		"Verify BGP session state with the remote peer",
		"Drain traffic from the link before physical inspection",
	},
	correlation.FailureHardware: {
		"Check environmental sensors and PSU status",
		"Schedule hardware replacement if sensors confirm degradation",
		"Fail over to redundant device before intervention",
	},
	correlation.FailureRouteLeak: {
		"Inspect recent routing policy changes",
		"Compare received prefixes against expected baselines",
		"Apply prefix filters toward the offending peer if confirmed",
	},
	correlation.FailureCongestion: {
		"Review interface utilization and queue drops",
		"Rebalance traffic via routing metrics or LAG members",
	},
	correlation.FailureUnknown: {
		"Review the supporting evidence and recent changes on the device",
		"Correlate with maintenance calendar and change tickets",
	},
}

// Assembler merges a CorrelatedEvent and a TriageResult into an
// EnrichedAlert for delivery to external sinks.
type Assembler struct{}

// NewAssembler creates an alert assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Build produces the final alert record. Always succeeds: missing topology
// data yields a low-confidence, low-priority alert rather than none.
func (a *Assembler) Build(corr *schema.CorrelatedEvent, tr *triage.Result) *schema.EnrichedAlert {
	alertType := correlation.ClassifyFailure(corr)
	confidence := correlation.CombinedConfidence(corr)

	affectedDevices := corr.Devices()
	if tr.Location.Device != "" && tr.Location.Device != "unknown" && !containsString(affectedDevices, tr.Location.Device) {
		affectedDevices = append(affectedDevices, tr.Location.Device)
	}

	estimate := resolutionEstimates[alertType]
	if estimate == "" {
		estimate = resolutionEstimates[correlation.FailureUnknown]
	}
	if tr.Criticality.Priority == schema.PriorityP1 {
		estimate += " (URGENT)"
	}

	return &schema.EnrichedAlert{
		ID:                      uuid.New(),
		CreatedAt:               time.Now().UTC(),
		Correlation:             corr,
		Triage:                  tr,
		AlertType:               alertType,
		Severity:                tr.Severity,
		Priority:                tr.Criticality.Priority,
		Confidence:              confidence,
		AffectedDevices:         affectedDevices,
		AffectedServices:        tr.BlastRadius.AffectedServices,
		BlastRadiusCount:        tr.BlastRadius.AffectedDevices,
		SPOF:                    tr.BlastRadius.SPOF,
		ProbableRootCause:       rootCause(alertType, tr),
		SupportingEvidence:      evidence(corr, tr),
		RecommendedActions:      recommendedActions[alertType],
		EscalationRequired:      tr.Criticality.Priority == schema.PriorityP1,
		EstimatedResolutionTime: estimate,
	}
}

// rootCause renders a human-readable probable cause line.
func rootCause(alertType string, tr *triage.Result) string {
	cause := fmt.Sprintf("Probable %s at %s (role: %s, domain: %s)",
		strings.ReplaceAll(alertType, "_", " "),
		tr.Location.Device,
		tr.Location.Role,
		tr.BlastRadius.FailureDomain,
	)
	if tr.BlastRadius.SPOF {
		cause += "; device is a single point of failure"
	}
	return cause
}

// evidence collects the supporting-evidence strings shown to operators.
func evidence(corr *schema.CorrelatedEvent, tr *triage.Result) []string {
	var out []string

	for _, ev := range corr.Events() {
		out = append(out, fmt.Sprintf("%s anomaly at t=%.0f (confidence %.2f): %s",
			ev.Source, ev.Timestamp, ev.Confidence, strings.Join(ev.AffectedFeatures, ", ")))
	}
	if corr.IsMultiModal {
		out = append(out, fmt.Sprintf("multi-modal correlation (strength %.2f, temporal %.2f, spatial %.2f)",
			corr.CorrelationStrength, corr.TemporalProximity, corr.SpatialCorrelation))
	}
	out = append(out, tr.Criticality.Factors...)
	if len(tr.BlastRadius.DownstreamDevices) > 0 {
		out = append(out, fmt.Sprintf("downstream impact: %s",
			strings.Join(tr.BlastRadius.DownstreamDevices, ", ")))
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
