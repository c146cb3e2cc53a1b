// Package detect defines the anomaly detector interface consumed by the
// pipeline and one concrete z-score implementation. Heavier scorers
// (matrix profile, isolation forest) plug in behind the same interface;
// the pipeline treats them as stateless-per-call collaborators.
package detect

import (
	"fmt"
	"math"
)

// Result is one detector verdict for one named series.
type Result struct {
	Score      float64
	IsAnomaly  bool
	Confidence float64
}

// Detector scores the latest point of a numeric series. The series is the
// rolling history with the newest value last; implementations must not
// retain or mutate the slice.
type Detector interface {
	Update(series []float64) Result
}

// Config selects and tunes a detector implementation.
type Config struct {
	Method    string  `yaml:"method"`    // "zscore"
	Threshold float64 `yaml:"threshold"` // score above which a point is anomalous
	MinPoints int     `yaml:"min_points"`
}

// DefaultConfig returns the default detector configuration.
func DefaultConfig() Config {
	return Config{
		Method:    "zscore",
		Threshold: 3.0,
		MinPoints: 8,
	}
}

// New constructs the configured detector. Selection is explicit: an unknown
// method is an error, never a silent fallback.
func New(cfg Config) (Detector, error) {
	switch cfg.Method {
	case "", "zscore":
		return NewZScore(cfg.Threshold, cfg.MinPoints), nil
	default:
		return nil, fmt.Errorf("detect: unknown method %q", cfg.Method)
	}
}

// ZScore flags the newest point of a series when it deviates from the
// series mean by more than threshold standard deviations.
type ZScore struct {
	threshold float64
	minPoints int
}

// NewZScore creates a z-score detector.
func NewZScore(threshold float64, minPoints int) *ZScore {
	if threshold <= 0 {
		threshold = 3.0
	}
	if minPoints < 3 {
		minPoints = 3
	}
	return &ZScore{threshold: threshold, minPoints: minPoints}
}

// Update scores the last value of the series against the history before it.
func (z *ZScore) Update(series []float64) Result {
	if len(series) < z.minPoints {
		return Result{}
	}

	history := series[:len(series)-1]
	latest := series[len(series)-1]

	mean, stddev := meanStddev(history)
	if stddev == 0 {
		if latest == mean {
			return Result{}
		}
		// Flat history with a jump: maximally surprising.
		return Result{Score: z.threshold * 2, IsAnomaly: true, Confidence: 0.95}
	}

	score := math.Abs(latest-mean) / stddev
	if score < z.threshold {
		return Result{Score: score}
	}

	// Confidence grows with how far past the threshold the score lands,
	// capped at 0.99.
	confidence := math.Min(0.99, 0.5+0.5*(score-z.threshold)/z.threshold)
	return Result{Score: score, IsAnomaly: true, Confidence: confidence}
}

func meanStddev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
