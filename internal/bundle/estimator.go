package bundle

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Estimator is a fitted binary classifier over a selected, scaled column
// vector. PredictProba must be deterministic for a given input.
type Estimator interface {
	// PredictProba returns the positive-class probability in [0,1].
	PredictProba(cols []float64) (float64, error)
	Close() error
}

// LogisticEstimator evaluates serialized logistic-regression parameters.
// This is the default artifact format: training exports coefficients to
// model.json and serving reproduces the decision function exactly.
type LogisticEstimator struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

// loadLogistic reads model.json and checks its shape against the schema.
func loadLogistic(path string, featureCount int) (*LogisticEstimator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read estimator: %w", err)
	}
	var est LogisticEstimator
	if err := json.Unmarshal(data, &est); err != nil {
		return nil, fmt.Errorf("decode estimator: %w", err)
	}
	if len(est.Coefficients) != featureCount {
		return nil, fmt.Errorf("estimator has %d coefficients for %d features", len(est.Coefficients), featureCount)
	}
	return &est, nil
}

// PredictProba computes sigmoid(w.x + b).
func (e *LogisticEstimator) PredictProba(cols []float64) (float64, error) {
	if len(cols) != len(e.Coefficients) {
		return 0, fmt.Errorf("estimator expects %d columns, got %d", len(e.Coefficients), len(cols))
	}
	z := e.Intercept
	for i, c := range e.Coefficients {
		z += c * cols[i]
	}
	return 1.0 / (1.0 + math.Exp(-z)), nil
}

func (e *LogisticEstimator) Close() error { return nil }
