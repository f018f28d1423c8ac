package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/enrollhq/leadscore/internal/bundle"
	"github.com/enrollhq/leadscore/internal/calibrate"
	"github.com/enrollhq/leadscore/internal/features"
	"github.com/enrollhq/leadscore/internal/leads"
)

func main() {
	dir := flag.String("bundle", "", "path to a model bundle directory (required)")
	n := flag.Int("n", 1000, "number of iterations")
	flag.Parse()

	if *dir == "" {
		log.Fatalf("bundle flag is required")
	}

	b, err := bundle.Load(*dir)
	if err != nil {
		log.Fatalf("load bundle: %v", err)
	}
	defer b.Release()

	engineer := &features.Engineer{
		Stats:      &b.Schema.ReferenceStats,
		Encodings:  &b.Schema.Encodings,
		Polynomial: b.Schema.Polynomial,
	}
	calibrator := calibrate.New(b.Schema.Calibration.Steepness, b.Schema.Calibration.Floor, b.Schema.Calibration.Ceil)

	lead := &leads.LeadRecord{
		ID:              "bench-lead",
		LeadScore:       72,
		EngagementScore: 64,
		TouchpointCount: 9,
		CreatedAt:       time.Now().AddDate(0, 0, -14),
		LifecycleState:  "enquiry",
		Status:          "active",
		EngagementLevel: "high",
	}
	now := time.Now()

	score := func() error {
		v, err := engineer.Build(lead, now)
		if err != nil {
			return err
		}
		sel, err := v.Select(b.Schema.FeatureNames)
		if err != nil {
			return err
		}
		if err := b.Schema.Scaler.Apply(sel.Values); err != nil {
			return err
		}
		raw, err := b.Estimator.PredictProba(sel.Values)
		if err != nil {
			return err
		}
		calibrator.Calibrate(raw)
		return nil
	}

	// Warmup
	for i := 0; i < 5; i++ {
		if err := score(); err != nil {
			log.Fatalf("warmup score failed: %v", err)
		}
	}

	if *n <= 0 {
		*n = 1
	}

	durations := make([]time.Duration, 0, *n)
	for i := 0; i < *n; i++ {
		start := time.Now()
		if err := score(); err != nil {
			log.Fatalf("score failed: %v", err)
		}
		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var total time.Duration
	for _, d := range durations {
		total += d
	}

	avg := float64(total.Microseconds()) / 1000.0 / float64(len(durations))
	p50 := float64(durations[len(durations)/2].Microseconds()) / 1000.0
	p95 := float64(durations[int(float64(len(durations))*0.95)].Microseconds()) / 1000.0

	fmt.Printf("bundle %s (%d features, estimator %s)\n",
		b.Version, len(b.Schema.FeatureNames), b.Schema.Estimator.Type)
	fmt.Printf("iterations: %d\n", len(durations))
	fmt.Printf("avg: %.3f ms  p50: %.3f ms  p95: %.3f ms\n", avg, p50, p95)
}
