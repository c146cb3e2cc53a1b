package schema

import (
	"testing"
	"time"
)

func TestSeverityFromScore(t *testing.T) {
	tests := []struct {
		score float64
		want  Severity
	}{
		{10, SeverityCritical},
		{8.0, SeverityCritical},
		{7.99, SeverityError},
		{5.0, SeverityError},
		{4.99, SeverityWarning},
		{3.0, SeverityWarning},
		{2.99, SeverityInfo},
		{0, SeverityInfo},
	}
	for _, tt := range tests {
		if got := SeverityFromScore(tt.score); got != tt.want {
			t.Errorf("SeverityFromScore(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input string
		want  Severity
	}{
		{"critical", SeverityCritical},
		{"WARNING", SeverityWarning},
		{"bogus", SeverityInfo},
		{"", SeverityInfo},
	}
	for _, tt := range tests {
		if got := ParseSeverity(tt.input); got != tt.want {
			t.Errorf("ParseSeverity(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPriority_IsValid(t *testing.T) {
	if !PriorityP1.IsValid() || !PriorityP2.IsValid() || !PriorityP3.IsValid() {
		t.Error("builtin priorities must be valid")
	}
	if Priority("P4").IsValid() {
		t.Error("P4 must not be valid")
	}
}

func TestValidDeviceName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"spine-01", true},
		{"tor-3.dc1", true},
		{"192.0.2.1", true},
		{"2001:db8::1", true},
		{"_leading-underscore", false},
		{"", false},
		{"device name", false},
	}
	for _, tt := range tests {
		if got := ValidDeviceName(tt.name); got != tt.valid {
			t.Errorf("ValidDeviceName(%q) = %v, want %v", tt.name, got, tt.valid)
		}
	}
}

func TestValidator_ValidateBGP(t *testing.T) {
	v := NewValidator()
	now := float64(time.Now().Unix())

	tests := []struct {
		name    string
		update  *BGPUpdate
		wantErr bool
	}{
		{
			name: "valid announce",
			update: &BGPUpdate{
				Timestamp: now, Peer: "192.0.2.1",
				Announce: []string{"10.0.0.0/24"},
			},
			wantErr: false,
		},
		{
			name: "valid withdraw",
			update: &BGPUpdate{
				Timestamp: now, Peer: "peer-1",
				Withdraw: []string{"10.0.0.0/24"},
			},
			wantErr: false,
		},
		{
			name:    "missing peer",
			update:  &BGPUpdate{Timestamp: now, Announce: []string{"10.0.0.0/24"}},
			wantErr: true,
		},
		{
			name:    "missing timestamp",
			update:  &BGPUpdate{Peer: "peer-1", Announce: []string{"10.0.0.0/24"}},
			wantErr: true,
		},
		{
			name:    "empty update",
			update:  &BGPUpdate{Timestamp: now, Peer: "peer-1"},
			wantErr: true,
		},
		{
			name: "stale timestamp",
			update: &BGPUpdate{
				Timestamp: now - 2*24*3600, Peer: "peer-1",
				Announce: []string{"10.0.0.0/24"},
			},
			wantErr: true,
		},
		{
			name: "future timestamp",
			update: &BGPUpdate{
				Timestamp: now + 3600, Peer: "peer-1",
				Announce: []string{"10.0.0.0/24"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateBGP(tt.update)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBGP() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidator_ValidateSNMP(t *testing.T) {
	v := NewValidator()
	now := float64(time.Now().Unix())

	tests := []struct {
		name    string
		metrics *SNMPMetrics
		wantErr bool
	}{
		{
			name: "valid",
			metrics: &SNMPMetrics{
				Timestamp: now, Device: "tor-01",
				Metrics: map[string]float64{"if_in_errors": 3},
			},
			wantErr: false,
		},
		{
			name: "empty metrics map",
			metrics: &SNMPMetrics{
				Timestamp: now, Device: "tor-01",
				Metrics: map[string]float64{},
			},
			wantErr: true,
		},
		{
			name: "bad device name",
			metrics: &SNMPMetrics{
				Timestamp: now, Device: "-leading-dash",
				Metrics: map[string]float64{"x": 1},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateSNMP(tt.metrics)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSNMP() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCorrelatedEvent_Devices(t *testing.T) {
	corr := &CorrelatedEvent{
		BGPEvent:  &AnomalyEvent{Source: SourceBGP, Device: "spine-01"},
		SNMPEvent: &AnomalyEvent{Source: SourceSNMP, Device: "spine-01"},
	}
	if got := corr.Devices(); len(got) != 1 || got[0] != "spine-01" {
		t.Errorf("Devices() = %v, want deduplicated [spine-01]", got)
	}

	corr.SNMPEvent.Device = "tor-01"
	if got := corr.Devices(); len(got) != 2 {
		t.Errorf("Devices() = %v, want two distinct devices", got)
	}
}
