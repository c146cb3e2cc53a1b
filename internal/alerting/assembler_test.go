package alerting

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"nettriage/internal/correlation"
	"nettriage/internal/schema"
	"nettriage/internal/topology"
	"nettriage/internal/triage"
)

func testCorrelation() *schema.CorrelatedEvent {
	return &schema.CorrelatedEvent{
		CorrelationID: "abcd1234abcd1234",
		Timestamp:     102.5,
		BGPEvent: &schema.AnomalyEvent{
			Timestamp: 100, Source: schema.SourceBGP, Confidence: 0.8,
			Device: "spine-01", AffectedFeatures: []string{"wdr_total"},
		},
		SNMPEvent: &schema.AnomalyEvent{
			Timestamp: 105, Source: schema.SourceSNMP, Confidence: 0.9,
			Device: "spine-01", AffectedFeatures: []string{"if_in_errors"},
		},
		TemporalProximity:   0.9,
		SpatialCorrelation:  0.5,
		CorrelationStrength: 0.7,
		IsMultiModal:        true,
		Modalities:          []string{"bgp", "snmp"},
	}
}

func testTriageResult(priority schema.Priority, score float64) *triage.Result {
	return &triage.Result{
		Location: triage.Location{Device: "spine-01", Role: topology.RoleSpine, Confidence: 0.9},
		BlastRadius: triage.BlastRadius{
			AffectedDevices:  3,
			AffectedServices: []string{"east_west_traffic"},
			SPOF:             true,
			FailureDomain:    topology.DomainDatacenter,
			ImpactScore:      4.5,
		},
		Criticality: triage.Criticality{Score: score, Priority: priority},
		Severity:    schema.SeverityFromScore(score),
	}
}

func TestAssembler_Build(t *testing.T) {
	alert := NewAssembler().Build(testCorrelation(), testTriageResult(schema.PriorityP2, 7.5))

	if alert.ID == uuid.Nil {
		t.Error("ID not assigned")
	}
	if alert.AlertType != correlation.FailureLink {
		t.Errorf("AlertType = %q, want %q (withdrawals + link errors)", alert.AlertType, correlation.FailureLink)
	}
	if alert.Priority != schema.PriorityP2 {
		t.Errorf("Priority = %v, want P2", alert.Priority)
	}
	if alert.EscalationRequired {
		t.Error("EscalationRequired = true, want false for P2")
	}
	if !alert.SPOF || alert.BlastRadiusCount != 3 {
		t.Errorf("blast fields = (spof %v, count %d), want (true, 3)", alert.SPOF, alert.BlastRadiusCount)
	}
	if len(alert.AffectedDevices) != 1 || alert.AffectedDevices[0] != "spine-01" {
		t.Errorf("AffectedDevices = %v, want [spine-01]", alert.AffectedDevices)
	}
	if len(alert.RecommendedActions) == 0 {
		t.Error("RecommendedActions empty, want runbook entries")
	}
	if alert.EstimatedResolutionTime != "30-60 minutes" {
		t.Errorf("EstimatedResolutionTime = %q, want 30-60 minutes", alert.EstimatedResolutionTime)
	}
	if !strings.Contains(alert.ProbableRootCause, "spine-01") {
		t.Errorf("ProbableRootCause = %q, want the device named", alert.ProbableRootCause)
	}
	if len(alert.SupportingEvidence) == 0 {
		t.Error("SupportingEvidence empty")
	}
}

func TestAssembler_Build_P1Urgent(t *testing.T) {
	alert := NewAssembler().Build(testCorrelation(), testTriageResult(schema.PriorityP1, 9.0))

	if !alert.EscalationRequired {
		t.Error("EscalationRequired = false, want true for P1")
	}
	if !strings.HasSuffix(alert.EstimatedResolutionTime, "(URGENT)") {
		t.Errorf("EstimatedResolutionTime = %q, want (URGENT) suffix", alert.EstimatedResolutionTime)
	}
}

func TestAssembler_Build_UnknownFailureType(t *testing.T) {
	corr := &schema.CorrelatedEvent{
		CorrelationID: "ffff0000ffff0000",
		Timestamp:     50,
		SNMPEvent: &schema.AnomalyEvent{
			Timestamp: 50, Source: schema.SourceSNMP, Confidence: 0.9,
			Device: "tor-01", AffectedFeatures: []string{"fan_speed"},
		},
		Modalities: []string{"snmp"},
	}
	tr := testTriageResult(schema.PriorityP3, 2.0)

	alert := NewAssembler().Build(corr, tr)
	if alert.AlertType != correlation.FailureUnknown {
		t.Errorf("AlertType = %q, want %q", alert.AlertType, correlation.FailureUnknown)
	}
	if alert.EstimatedResolutionTime != "1-2 hours" {
		t.Errorf("EstimatedResolutionTime = %q, want the unknown-type default", alert.EstimatedResolutionTime)
	}
}
