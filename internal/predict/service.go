// Package predict orchestrates batch lead scoring: record fetch, feature
// engineering, selection and scaling, inference and calibration, with
// per-lead failure isolation so one malformed lead never sinks a batch.
package predict

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/enrollhq/leadscore/internal/bundle"
	"github.com/enrollhq/leadscore/internal/calibrate"
	"github.com/enrollhq/leadscore/internal/features"
	"github.com/enrollhq/leadscore/internal/leads"
	"github.com/enrollhq/leadscore/internal/telemetry"
)

// Request-level errors. Everything else is isolated per lead.
var (
	ErrEmptyBatch      = errors.New("batch has no lead ids")
	ErrPayloadTooLarge = errors.New("batch exceeds maximum size")
)

// BundleSource provides the active model bundle. The second result reports
// whether the lookup hit the registry cache. The service releases the
// bundle once the batch completes.
type BundleSource interface {
	Active(ctx context.Context) (*bundle.ModelBundle, bool, error)
}

// Config bounds batch processing.
type Config struct {
	MaxBatchSize int
	MinCoverage  float64
	Workers      int
}

func (c Config) withDefaults() Config {
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 2000
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	return c
}

// Service scores batches of leads against the active model bundle.
type Service struct {
	store   leads.Store
	bundles BundleSource
	emitter *telemetry.Emitter
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires the prediction pipeline. emitter may be nil.
func NewService(store leads.Store, bundles BundleSource, emitter *telemetry.Emitter, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		bundles: bundles,
		emitter: emitter,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		now:     time.Now,
	}
}

// PredictBatch scores the given leads. The predictions slice preserves the
// input order of the leads that succeeded; failed leads appear in Failures,
// also in input order. A missing model fails the whole batch fast; nothing
// else does.
func (s *Service) PredictBatch(ctx context.Context, leadIDs []string) (*BatchResult, error) {
	return s.PredictBatchWithRequestID(ctx, leadIDs, "")
}

// PredictBatchWithRequestID is PredictBatch with a caller-supplied
// correlation id carried into telemetry.
func (s *Service) PredictBatchWithRequestID(ctx context.Context, leadIDs []string, requestID string) (*BatchResult, error) {
	if len(leadIDs) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(leadIDs) > s.cfg.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(leadIDs), s.cfg.MaxBatchSize)
	}

	start := s.now()

	b, cacheHit, err := s.bundles.Active(ctx)
	if err != nil {
		return nil, err
	}
	// Hold the bundle for the whole batch; a registry swap mid-batch must
	// not close the estimator under us.
	defer b.Release()

	engineer := &features.Engineer{
		Stats:      &b.Schema.ReferenceStats,
		Encodings:  &b.Schema.Encodings,
		Polynomial: b.Schema.Polynomial,
	}
	calibrator := calibrate.New(b.Schema.Calibration.Steepness, b.Schema.Calibration.Floor, b.Schema.Calibration.Ceil)

	// Feature engineering is anchored to one clock reading so every lead in
	// the batch, and every retry of the batch, sees the same temporal
	// features for the same snapshot.
	asOf := start

	type outcome struct {
		result  *Result
		failure *Failure
	}
	outcomes := make([]outcome, len(leadIDs))

	workers := s.cfg.Workers
	if workers > len(leadIDs) {
		workers = len(leadIDs)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if ctx.Err() != nil {
					return
				}
				res, fail := s.scoreLead(ctx, b, engineer, calibrator, leadIDs[i], asOf)
				outcomes[i] = outcome{result: res, failure: fail}
			}
		}()
	}

dispatch:
	for i := range leadIDs {
		select {
		case indexes <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(indexes)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := &BatchResult{
		ModelUsed: b.Version,
		Total:     len(leadIDs),
	}
	coverageSum := 0.0
	coverageMin := 1.0
	failureKinds := make(map[string]int)
	for _, o := range outcomes {
		switch {
		case o.result != nil:
			batch.Predictions = append(batch.Predictions, *o.result)
			batch.Successful++
			coverageSum += o.result.FeatureCoverage
			if o.result.FeatureCoverage < coverageMin {
				coverageMin = o.result.FeatureCoverage
			}
		case o.failure != nil:
			batch.Failures = append(batch.Failures, *o.failure)
			failureKinds[string(o.failure.Kind)]++
		}
	}

	s.emit(requestID, b.Version, batch, cacheHit, coverageSum, coverageMin, failureKinds, s.now().Sub(start))
	return batch, nil
}

// scoreLead runs the full pipeline for one lead. Panics are contained here;
// a prediction batch is a collection of independent computations and one
// bad lead must not take down its neighbors.
func (s *Service) scoreLead(ctx context.Context, b *bundle.ModelBundle, engineer *features.Engineer, calibrator calibrate.Calibrator, leadID string, asOf time.Time) (res *Result, fail *Failure) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("prediction pipeline panic",
				zap.String("lead_id", leadID), zap.Any("panic", r))
			res = nil
			fail = &Failure{LeadID: leadID, Kind: FailureInference, Detail: fmt.Sprintf("panic: %v", r)}
		}
	}()

	lead, err := s.store.Get(ctx, leadID)
	if err != nil {
		switch {
		case errors.Is(err, leads.ErrLeadNotFound):
			return nil, &Failure{LeadID: leadID, Kind: FailureLeadNotFound}
		case errors.Is(err, leads.ErrStoreUnavailable):
			return nil, &Failure{LeadID: leadID, Kind: FailureStoreUnavailable}
		default:
			return nil, &Failure{LeadID: leadID, Kind: FailureStoreUnavailable, Detail: err.Error()}
		}
	}

	vector, err := engineer.Build(lead, asOf)
	if err != nil {
		return nil, &Failure{LeadID: leadID, Kind: FailureFeatureBuild, Detail: err.Error()}
	}

	sel, err := vector.Select(b.Schema.FeatureNames)
	if err != nil {
		return nil, &Failure{LeadID: leadID, Kind: FailureFeatureBuild, Detail: err.Error()}
	}

	coverage := sel.Coverage()
	if s.cfg.MinCoverage > 0 && coverage < s.cfg.MinCoverage {
		return nil, &Failure{
			LeadID: leadID,
			Kind:   FailureLowCoverage,
			Detail: fmt.Sprintf("coverage %.2f below minimum %.2f", coverage, s.cfg.MinCoverage),
		}
	}

	if err := b.Schema.Scaler.Apply(sel.Values); err != nil {
		return nil, &Failure{LeadID: leadID, Kind: FailureFeatureBuild, Detail: err.Error()}
	}

	raw, err := b.Estimator.PredictProba(sel.Values)
	if err != nil {
		return nil, &Failure{LeadID: leadID, Kind: FailureInference, Detail: err.Error()}
	}

	prob, confidence := calibrator.Calibrate(raw)

	return &Result{
		LeadID:          leadID,
		Prediction:      prob >= 0.5,
		Probability:     prob,
		Confidence:      confidence,
		ModelVersion:    b.Version,
		FeatureCoverage: coverage,
	}, nil
}

func (s *Service) emit(requestID, version string, batch *BatchResult, cacheHit bool, coverageSum, coverageMin float64, failureKinds map[string]int, elapsed time.Duration) {
	if s.emitter == nil {
		return
	}
	coverageMean := 0.0
	if batch.Successful > 0 {
		coverageMean = coverageSum / float64(batch.Successful)
	} else {
		coverageMin = 0
	}
	s.emitter.Emit(&telemetry.Event{
		EventID:      uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		RequestID:    requestID,
		ModelVersion: version,
		BatchSize:    batch.Total,
		Successful:   batch.Successful,
		Failed:       len(batch.Failures),
		FailureKinds: failureKinds,
		CacheHit:     cacheHit,
		LatencyMS:    float64(elapsed.Microseconds()) / 1000,
		CoverageMean: coverageMean,
		CoverageMin:  coverageMin,
	})
}
