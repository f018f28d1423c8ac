package predict

// FailureKind classifies why one lead in a batch could not be scored.
type FailureKind string

const (
	FailureLeadNotFound     FailureKind = "lead_not_found"
	FailureStoreUnavailable FailureKind = "store_unavailable"
	FailureFeatureBuild     FailureKind = "feature_build_failed"
	FailureInference        FailureKind = "inference_failed"
	FailureLowCoverage      FailureKind = "low_feature_coverage"
)

// Result is the per-lead prediction output.
type Result struct {
	LeadID          string  `json:"lead_id"`
	Prediction      bool    `json:"prediction"`
	Probability     float64 `json:"probability"`
	Confidence      float64 `json:"confidence"`
	ModelVersion    string  `json:"model_version"`
	FeatureCoverage float64 `json:"feature_coverage"`
}

// Failure records one lead that could not be scored.
type Failure struct {
	LeadID string      `json:"lead_id"`
	Kind   FailureKind `json:"error_kind"`
	Detail string      `json:"detail,omitempty"`
}

// BatchResult is the complete outcome of one prediction batch. Successful
// predictions are never discarded because other leads failed, and
// Successful + len(Failures) always equals TotalProcessed.
type BatchResult struct {
	Predictions []Result  `json:"predictions"`
	Failures    []Failure `json:"failures,omitempty"`
	ModelUsed   string    `json:"model_used"`
	Total       int       `json:"total_processed"`
	Successful  int       `json:"successful_predictions"`
}
