package features

import "sort"

// ReferenceStats holds training-time score distributions used for percentile
// ranking at serving time. Samples ship inside the model bundle sidecar so
// training and serving rank against the same population.
type ReferenceStats struct {
	LeadScores       []float64 `yaml:"lead_scores" json:"lead_scores"`
	EngagementScores []float64 `yaml:"engagement_scores" json:"engagement_scores"`
}

// Normalize sorts the sample slices in place. Call once after loading.
func (s *ReferenceStats) Normalize() {
	sort.Float64s(s.LeadScores)
	sort.Float64s(s.EngagementScores)
}

// LeadScorePercentile ranks v against the training lead-score distribution.
func (s *ReferenceStats) LeadScorePercentile(v float64) float64 {
	return percentileRank(s.LeadScores, v)
}

// EngagementPercentile ranks v against the training engagement distribution.
func (s *ReferenceStats) EngagementPercentile(v float64) float64 {
	return percentileRank(s.EngagementScores, v)
}

// percentileRank returns the fraction of sorted samples <= v, in [0,1].
// An empty sample set ranks everything at 0.5 so the feature stays neutral.
func percentileRank(sorted []float64, v float64) float64 {
	if len(sorted) == 0 {
		return 0.5
	}
	n := sort.SearchFloat64s(sorted, v)
	// Count equal samples as covered.
	for n < len(sorted) && sorted[n] == v {
		n++
	}
	return float64(n) / float64(len(sorted))
}
