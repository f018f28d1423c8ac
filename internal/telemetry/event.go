package telemetry

import "time"

// Event is the per-batch telemetry record emitted after every prediction
// request. It is observational only; nothing on the response path depends
// on its delivery.
type Event struct {
	EventID      string         `json:"event_id"`
	Timestamp    time.Time      `json:"timestamp"`
	RequestID    string         `json:"request_id,omitempty"`
	ModelVersion string         `json:"model_version"`
	BatchSize    int            `json:"batch_size"`
	Successful   int            `json:"successful"`
	Failed       int            `json:"failed"`
	FailureKinds map[string]int `json:"failure_kinds,omitempty"`
	CacheHit     bool           `json:"cache_hit"`
	LatencyMS    float64        `json:"latency_ms"`
	CoverageMean float64        `json:"coverage_mean"`
	CoverageMin  float64        `json:"coverage_min"`
}
