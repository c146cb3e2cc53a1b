package correlation

import (
	"strings"

	"nettriage/internal/schema"
)

// Failure classifications feeding root-cause text downstream.
const (
	FailureLink       = "link_failure"
	FailureHardware   = "hardware_failure"
	FailureRouteLeak  = "route_instability"
	FailureCongestion = "congestion"
	FailureUnknown    = "unknown_anomaly"

	signalWithdrawal   = "route_withdrawal"
	signalChurn        = "path_churn"
	signalLinkDegraded = "link_degradation"
	signalThermal      = "thermal"
	signalPower        = "power"
	signalTraffic      = "traffic_shift"
)

// ClassifyFailure inspects which named features triggered on each side and
// maps the signal combination to a failure type through a fixed decision
// table. Default is unknown_anomaly.
func ClassifyFailure(corr *schema.CorrelatedEvent) string {
	signals := make(map[string]bool)
	for _, ev := range corr.Events() {
		for _, feature := range ev.AffectedFeatures {
			if s := featureSignal(feature); s != "" {
				signals[s] = true
			}
		}
	}

	switch {
	case signals[signalThermal] || signals[signalPower]:
		return FailureHardware
	case signals[signalLinkDegraded] && signals[signalWithdrawal]:
		return FailureLink
	case signals[signalWithdrawal] && signals[signalChurn]:
		return FailureRouteLeak
	case signals[signalLinkDegraded] && signals[signalTraffic]:
		return FailureCongestion
	case signals[signalWithdrawal]:
		return FailureLink
	case signals[signalChurn]:
		return FailureRouteLeak
	default:
		return FailureUnknown
	}
}

// featureSignal maps one named feature to its failure signal.
func featureSignal(feature string) string {
	f := strings.ToLower(feature)
	switch {
	case strings.Contains(f, "wdr"):
		return signalWithdrawal
	case strings.Contains(f, "churn"):
		return signalChurn
	case strings.Contains(f, "temperature") || strings.Contains(f, "thermal"):
		return signalThermal
	case strings.Contains(f, "power") || strings.Contains(f, "psu"):
		return signalPower
	case strings.Contains(f, "error") || strings.Contains(f, "discard") || strings.Contains(f, "crc"):
		return signalLinkDegraded
	case strings.Contains(f, "octets") || strings.Contains(f, "util"):
		return signalTraffic
	default:
		return ""
	}
}
