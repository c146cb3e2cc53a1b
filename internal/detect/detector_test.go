package detect

import (
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		wantErr bool
	}{
		{name: "default method", method: "", wantErr: false},
		{name: "zscore", method: "zscore", wantErr: false},
		{name: "unknown method", method: "prophet", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Config{Method: tt.method})
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestZScore_Update(t *testing.T) {
	flat := []float64{10, 10, 10, 10, 10, 10, 10}

	tests := []struct {
		name        string
		series      []float64
		wantAnomaly bool
	}{
		{
			name:        "too few points",
			series:      []float64{1, 100},
			wantAnomaly: false,
		},
		{
			name:        "steady series",
			series:      append(append([]float64{}, flat...), 10),
			wantAnomaly: false,
		},
		{
			name:        "flat history with jump",
			series:      append(append([]float64{}, flat...), 500),
			wantAnomaly: true,
		},
		{
			name:        "noisy history large spike",
			series:      []float64{10, 12, 9, 11, 10, 12, 9, 11, 10, 200},
			wantAnomaly: true,
		},
		{
			name:        "noisy history in-range value",
			series:      []float64{10, 12, 9, 11, 10, 12, 9, 11, 10, 11},
			wantAnomaly: false,
		},
	}

	z := NewZScore(3.0, 5)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := z.Update(tt.series)
			if result.IsAnomaly != tt.wantAnomaly {
				t.Errorf("Update() IsAnomaly = %v, want %v (score %v)",
					result.IsAnomaly, tt.wantAnomaly, result.Score)
			}
			if result.IsAnomaly && (result.Confidence <= 0 || result.Confidence > 0.99) {
				t.Errorf("anomaly confidence = %v, want in (0, 0.99]", result.Confidence)
			}
		})
	}
}

func TestZScore_FlatJumpConfidence(t *testing.T) {
	z := NewZScore(3.0, 5)
	result := z.Update([]float64{5, 5, 5, 5, 5, 42})

	if !result.IsAnomaly {
		t.Fatal("flat history with a jump must be anomalous")
	}
	if result.Confidence != 0.95 {
		t.Errorf("Confidence = %v, want 0.95", result.Confidence)
	}
	if result.Score != 6.0 {
		t.Errorf("Score = %v, want 6.0 (2x threshold)", result.Score)
	}
}
