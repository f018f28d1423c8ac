package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/enrollhq/leadscore/internal/features"
)

// Scaler holds the fitted standardization parameters for the selected
// feature columns, aligned index-for-index with the schema feature names.
type Scaler struct {
	Mean  []float64 `yaml:"mean"`
	Scale []float64 `yaml:"scale"`
}

// Apply standardizes a column vector in place.
func (s *Scaler) Apply(cols []float64) error {
	if len(cols) != len(s.Mean) || len(cols) != len(s.Scale) {
		return fmt.Errorf("scaler expects %d columns, got %d", len(s.Mean), len(cols))
	}
	for i := range cols {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		cols[i] = (cols[i] - s.Mean[i]) / scale
	}
	return nil
}

// CalibrationParams are the bundle-trained calibration constants.
type CalibrationParams struct {
	Steepness float64 `yaml:"steepness"`
	Floor     float64 `yaml:"floor"`
	Ceil      float64 `yaml:"ceil"`
}

// EstimatorSpec names the trained estimator artifact inside the bundle.
type EstimatorSpec struct {
	Type   string `yaml:"type"`   // logistic | onnx
	File   string `yaml:"file"`   // path relative to the bundle dir
	Input  string `yaml:"input"`  // onnx input name
	Output string `yaml:"output"` // onnx output name
}

// Schema is the serving-side description of the trained pipeline: which
// engineered features the model consumes, in what order, and every fitted
// transform needed to reproduce training-time preprocessing exactly.
type Schema struct {
	FeatureNames   []string                `yaml:"feature_names"`
	Scaler         Scaler                  `yaml:"scaler"`
	Encodings      features.Encodings      `yaml:"encodings"`
	ReferenceStats features.ReferenceStats `yaml:"reference_stats"`
	Calibration    CalibrationParams       `yaml:"calibration"`
	Polynomial     bool                    `yaml:"polynomial"`
	Estimator      EstimatorSpec           `yaml:"estimator"`
}

const schemaName = "schema.yaml"

// loadSchema reads and validates schema.yaml. Shape mismatches between the
// feature list and the fitted transforms are rejected here, at load time,
// rather than surfacing as garbage at inference time.
func loadSchema(dir string) (*Schema, error) {
	data, err := os.ReadFile(filepath.Join(dir, schemaName))
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	s.ReferenceStats.Normalize()
	return &s, nil
}

func (s *Schema) validate() error {
	if len(s.FeatureNames) == 0 {
		return fmt.Errorf("schema has no feature_names")
	}
	seen := make(map[string]struct{}, len(s.FeatureNames))
	for _, name := range s.FeatureNames {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("schema has an empty feature name")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("schema feature %q listed twice", name)
		}
		seen[name] = struct{}{}
	}
	if len(s.Scaler.Mean) != len(s.FeatureNames) || len(s.Scaler.Scale) != len(s.FeatureNames) {
		return fmt.Errorf("scaler shape %d/%d does not match %d feature names",
			len(s.Scaler.Mean), len(s.Scaler.Scale), len(s.FeatureNames))
	}
	switch s.Estimator.Type {
	case "logistic", "onnx":
	case "":
		return fmt.Errorf("schema estimator type missing")
	default:
		return fmt.Errorf("unsupported estimator type %q", s.Estimator.Type)
	}
	if strings.TrimSpace(s.Estimator.File) == "" {
		return fmt.Errorf("schema estimator file missing")
	}
	return nil
}
