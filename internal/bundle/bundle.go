// Package bundle loads, verifies and serves the versioned model artifact:
// the trained estimator plus every fitted transform (scaler, feature list,
// categorical encodings, reference stats) needed to score a lead the same
// way training did.
package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Metadata carries training-time performance stats shipped in metrics.json.
type Metadata struct {
	TrainedAt          time.Time          `json:"trained_at"`
	Samples            int                `json:"samples"`
	AUC                float64            `json:"auc"`
	Accuracy           float64            `json:"accuracy"`
	FeatureImportances map[string]float64 `json:"feature_importances"`
}

// ModelBundle is the immutable, checksum-verified artifact a prediction
// runs against. It is shared read-only across concurrent requests and
// replaced atomically on reload, never mutated in place.
type ModelBundle struct {
	Version   string
	Checksum  string
	CreatedAt time.Time
	Schema    *Schema
	Estimator Estimator
	Metadata  Metadata
	LoadedAt  time.Time

	// refs counts the registry plus every in-flight batch still scoring
	// against this bundle. The estimator is closed when the count reaches
	// zero, never while a batch holds a reference.
	refs atomic.Int64
}

// FeatureNames is the ordered list of engineered features the model consumes.
func (b *ModelBundle) FeatureNames() []string { return b.Schema.FeatureNames }

// acquire takes an extra reference. It fails only when the bundle has
// already been fully released.
func (b *ModelBundle) acquire() bool {
	for {
		n := b.refs.Load()
		if n <= 0 {
			return false
		}
		if b.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release returns a reference obtained from Load or a registry lookup.
// The last release closes the estimator.
func (b *ModelBundle) Release() {
	if b == nil {
		return
	}
	if b.refs.Add(-1) == 0 {
		_ = b.Estimator.Close()
	}
}

// Load verifies and loads one bundle directory. Any integrity or shape
// problem rejects the whole bundle; nothing half-loaded ever escapes.
func Load(dir string) (*ModelBundle, error) {
	manifest, checksum, err := Verify(dir)
	if err != nil {
		return nil, err
	}

	schema, err := loadSchema(dir)
	if err != nil {
		return nil, fmt.Errorf("bundle %s: %w", manifest.Version, err)
	}

	estPath, err := resolvePath(dir, filepath.FromSlash(schema.Estimator.File))
	if err != nil {
		return nil, fmt.Errorf("bundle %s: %w", manifest.Version, err)
	}

	var est Estimator
	switch schema.Estimator.Type {
	case "logistic":
		est, err = loadLogistic(estPath, len(schema.FeatureNames))
	case "onnx":
		est, err = loadONNX(estPath, schema.Estimator, len(schema.FeatureNames))
	default:
		err = fmt.Errorf("unsupported estimator type %q", schema.Estimator.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("bundle %s: %w", manifest.Version, err)
	}

	meta, err := loadMetadata(dir)
	if err != nil {
		est.Close()
		return nil, fmt.Errorf("bundle %s: %w", manifest.Version, err)
	}

	b := &ModelBundle{
		Version:   manifest.Version,
		Checksum:  checksum,
		CreatedAt: manifest.CreatedAt,
		Schema:    schema,
		Estimator: est,
		Metadata:  meta,
		LoadedAt:  time.Now(),
	}
	b.refs.Store(1)
	return b, nil
}

// loadMetadata reads metrics.json; a missing file is not an error, the
// bundle just carries empty training metadata.
func loadMetadata(dir string) (Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, "metrics.json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Metadata{}, nil
		}
		return Metadata{}, fmt.Errorf("read metrics: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("decode metrics: %w", err)
	}
	return m, nil
}
