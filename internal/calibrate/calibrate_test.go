package calibrate

import (
	"math"
	"testing"
)

func TestCalibrateMidpointFixedPoint(t *testing.T) {
	c := New(0, 0, 0)
	prob, confidence := c.Calibrate(0.5)
	if math.Abs(prob-0.5) > 1e-12 {
		t.Fatalf("0.5 must be a fixed point of the spread, got %v", prob)
	}
	if confidence != 0 {
		t.Fatalf("confidence at the decision boundary must be 0, got %v", confidence)
	}
}

func TestCalibrateBounds(t *testing.T) {
	c := New(8.0, 0.05, 0.95)
	for raw := -0.5; raw <= 1.5; raw += 0.01 {
		prob, confidence := c.Calibrate(raw)
		if prob < c.Floor || prob > c.Ceil {
			t.Fatalf("probability %v outside clamp [%v,%v] for raw=%v", prob, c.Floor, c.Ceil, raw)
		}
		if confidence < 0 || confidence > 1 {
			t.Fatalf("confidence %v outside [0,1] for raw=%v", confidence, raw)
		}
	}
}

func TestCalibrateMonotonic(t *testing.T) {
	c := New(8.0, 0.05, 0.95)
	prev := -1.0
	for raw := 0.0; raw <= 1.0; raw += 0.001 {
		prob, _ := c.Calibrate(raw)
		if prob < prev {
			t.Fatalf("calibration not monotonic at raw=%v: %v < %v", raw, prob, prev)
		}
		prev = prob
	}
}

func TestCalibrateSpreadsAwayFromCenter(t *testing.T) {
	c := New(8.0, 0.05, 0.95)
	lo, _ := c.Calibrate(0.4)
	hi, _ := c.Calibrate(0.6)
	if !(lo < 0.4 && hi > 0.6) {
		t.Fatalf("expected spread away from 0.5, got %v and %v", lo, hi)
	}
}

func TestCalibrateDeterministic(t *testing.T) {
	c := New(8.0, 0.05, 0.95)
	for _, raw := range []float64{0.01, 0.25, 0.5, 0.77, 0.99} {
		p1, c1 := c.Calibrate(raw)
		p2, c2 := c.Calibrate(raw)
		if p1 != p2 || c1 != c2 {
			t.Fatalf("calibration not deterministic for raw=%v", raw)
		}
	}
}

func TestCalibrateConfidenceSymmetric(t *testing.T) {
	c := New(8.0, 0.05, 0.95)
	_, cLow := c.Calibrate(0.1)
	_, cHigh := c.Calibrate(0.9)
	if math.Abs(cLow-cHigh) > 1e-12 {
		t.Fatalf("confidence should be symmetric around 0.5: %v vs %v", cLow, cHigh)
	}
	if math.Abs(cLow-0.8) > 1e-12 {
		t.Fatalf("expected confidence 0.8 at raw=0.1, got %v", cLow)
	}
}
