package bundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXEstimator runs a trained classifier exported to ONNX. The session's
// tensors are reused across calls, so inference is serialized with a mutex.
type ONNXEstimator struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	width   int

	mu sync.Mutex
}

// loadONNX initializes the runtime (once per process) and builds a session
// with a 1xN input and a 1x2 probability output.
func loadONNX(path string, spec EstimatorSpec, featureCount int) (*ONNXEstimator, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", path, err)
	}

	libPath := resolveSharedLibraryPath(filepath.Dir(path))
	if libPath == "" {
		return nil, errors.New("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
	}
	ort.SetSharedLibraryPath(libPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	inputName := spec.Input
	if inputName == "" {
		inputName = "float_input"
	}
	outputName := spec.Output
	if outputName == "" {
		outputName = "probabilities"
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(featureCount)))
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 2))
	if err != nil {
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		path,
		[]string{inputName},
		[]string{outputName},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNXEstimator{
		session: session,
		input:   input,
		output:  output,
		width:   featureCount,
	}, nil
}

// PredictProba copies the columns into the session input and returns the
// positive-class probability.
func (e *ONNXEstimator) PredictProba(cols []float64) (float64, error) {
	if e == nil || e.session == nil {
		return 0, errors.New("onnx estimator not initialized")
	}
	if len(cols) != e.width {
		return 0, fmt.Errorf("estimator expects %d columns, got %d", e.width, len(cols))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	in := e.input.GetData()
	for i, v := range cols {
		in[i] = float32(v)
	}
	if err := e.session.Run(); err != nil {
		return 0, fmt.Errorf("onnx run: %w", err)
	}

	out := e.output.GetData()
	if len(out) < 2 {
		return 0, fmt.Errorf("onnx output has %d values, expected class probabilities", len(out))
	}
	return float64(out[1]), nil
}

// Close destroys the session and its tensors.
func (e *ONNXEstimator) Close() error {
	if e == nil || e.session == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Destroy()
	e.input.Destroy()
	e.output.Destroy()
	e.session = nil
	return nil
}

// resolveSharedLibraryPath locates a platform onnxruntime shared library.
// The env override wins; otherwise common names and locations are probed.
func resolveSharedLibraryPath(bundleDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"libonnxruntime.so",
		"onnxruntime.so",
		"onnxruntime.dll",
	}
	dirs := []string{
		bundleDir,
		filepath.Join(bundleDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}

	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
