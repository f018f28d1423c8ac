// Package calibrate turns raw classifier probabilities into calibrated
// probabilities and confidence scores. Everything here is pure and
// deterministic so predictions are reproducible bit for bit.
package calibrate

import "math"

// Defaults used when the model bundle does not carry its own constants.
const (
	DefaultSteepness = 8.0
	DefaultFloor     = 0.05
	DefaultCeil      = 0.95
)

// Calibrator re-spreads probabilities clustered around the decision boundary
// and clamps the result away from overconfident extremes.
type Calibrator struct {
	Steepness float64
	Floor     float64
	Ceil      float64
}

// New returns a calibrator with defaults applied to zero fields.
func New(steepness, floor, ceil float64) Calibrator {
	if steepness <= 0 {
		steepness = DefaultSteepness
	}
	if floor <= 0 {
		floor = DefaultFloor
	}
	if ceil <= 0 || ceil <= floor {
		ceil = DefaultCeil
	}
	return Calibrator{Steepness: steepness, Floor: floor, Ceil: ceil}
}

// Calibrate maps a raw probability to a calibrated probability and a
// confidence score. The sigmoid is centered on 0.5, so 0.5 is a fixed point
// before clamping. Confidence is the distance of the raw maximum class
// probability from the boundary, rescaled to [0,1]; a crude proxy for model
// uncertainty, kept as documented behavior.
func (c Calibrator) Calibrate(raw float64) (prob, confidence float64) {
	raw = clamp(raw, 0, 1)

	spread := 1.0 / (1.0 + math.Exp(-c.Steepness*(raw-0.5)))
	prob = clamp(spread, c.Floor, c.Ceil)

	maxClass := math.Max(raw, 1-raw)
	confidence = clamp((maxClass-0.5)*2, 0, 1)
	return prob, confidence
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
