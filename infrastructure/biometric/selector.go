package biometric

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	"biolock.io/infrastructure/biometric/types"
	"biolock.io/infrastructure/logger"
)

// ExtractorSelector holds the extractor kinds probed at process startup and decides
// which one serves a given extraction. The neural path, when present, is preferred
// until it exceeds its latency budget; after a timeout the selector serves the
// classical path on subsequent attempts. That demotion is the only mutable state and
// it is a single atomic flag, so concurrent runs need no locking.
type ExtractorSelector struct {
	classical FeatureExtractor
	neural    FeatureExtractor
	budget    time.Duration
	demoted   atomic.Bool
}

// NewExtractorSelector probes capability once: neural may be nil when no model is
// deployed. budget only applies to the neural path.
func NewExtractorSelector(classical FeatureExtractor, neural FeatureExtractor, budget time.Duration) *ExtractorSelector {
	if budget <= 0 {
		budget = 5 * time.Second
	}
	selector := &ExtractorSelector{
		classical: classical,
		neural:    neural,
		budget:    budget,
	}
	logger.Info("feature extractor selected", logger.LoggerOptions{
		Key:  "extractor",
		Data: selector.Active().Name(),
	}, logger.LoggerOptions{
		Key:  "dimensionality",
		Data: selector.Active().Dimensionality(),
	})
	return selector
}

// Active reports the extractor the next call will use.
func (s *ExtractorSelector) Active() FeatureExtractor {
	if s.neural != nil && !s.demoted.Load() {
		return s.neural
	}
	return s.classical
}

// Extract runs the active extractor. A neural call that outlives its budget returns
// ExtractionTimeoutError and demotes the neural path; retrying with a fresh sample is
// the caller's decision, never the core's.
func (s *ExtractorSelector) Extract(ctx context.Context, region *image.Gray, modality types.Modality) (types.FeatureVector, error) {
	active := s.Active()
	if active != s.neural {
		return active.Extract(ctx, region, modality)
	}

	type result struct {
		vector types.FeatureVector
		err    error
	}
	done := make(chan result, 1)
	go func() {
		vector, err := s.neural.Extract(ctx, region, modality)
		done <- result{vector, err}
	}()

	timer := time.NewTimer(s.budget)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.vector, r.err
	case <-ctx.Done():
		return types.FeatureVector{}, ErrCancelled
	case <-timer.C:
		s.demoted.Store(true)
		logger.Warning("neural extraction exceeded budget, demoting to classical path", logger.LoggerOptions{
			Key:  "budget",
			Data: s.budget.String(),
		})
		return types.FeatureVector{}, &ExtractionTimeoutError{Budget: s.budget.String()}
	}
}
