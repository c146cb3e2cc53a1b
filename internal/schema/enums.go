package schema

import "strings"

// Severity represents alert display severity, derived from the triage score.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// IsValid checks if the severity is a valid value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityError, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// ParseSeverity maps a string to a Severity, defaulting to info.
func ParseSeverity(s string) Severity {
	sev := Severity(strings.ToLower(s))
	if sev.IsValid() {
		return sev
	}
	return SeverityInfo
}

// SeverityFromScore derives a Severity from a 0-10 criticality score.
// Cut points are fixed: 8.0 critical, 5.0 error, 3.0 warning.
func SeverityFromScore(score float64) Severity {
	switch {
	case score >= 8.0:
		return SeverityCritical
	case score >= 5.0:
		return SeverityError
	case score >= 3.0:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Priority represents operational escalation priority.
type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// IsValid checks if the priority is a valid value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityP1, PriorityP2, PriorityP3:
		return true
	}
	return false
}

// PriorityFromScore derives a Priority from a 0-10 criticality score.
// Cut points are fixed: 8.0 P1, 5.0 P2, else P3.
func PriorityFromScore(score float64) Priority {
	switch {
	case score >= 8.0:
		return PriorityP1
	case score >= 5.0:
		return PriorityP2
	default:
		return PriorityP3
	}
}
