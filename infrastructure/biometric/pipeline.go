package biometric

import (
	"context"
	"errors"
	"fmt"
	"time"

	"biolock.io/infrastructure/biometric/types"
	"biolock.io/infrastructure/logger"
)

// Pipeline runs self-contained enrollment and verification passes over single
// samples. A pipeline is stateless between runs; the only shared pieces are the
// extractor's read-only model and the store boundary, so concurrent runs need no
// coordination here.
type Pipeline struct {
	cfg      Config
	selector *ExtractorSelector
	store    TemplateStore
	sink     JournalSink
}

// NewPipeline wires the pipeline. sink may be nil when no diagnostics collaborator
// is attached.
func NewPipeline(cfg Config, selector *ExtractorSelector, store TemplateStore, sink JournalSink) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if selector == nil {
		return nil, fmt.Errorf("biometric: pipeline needs an extractor selector")
	}
	if store == nil {
		return nil, fmt.Errorf("biometric: pipeline needs a template store")
	}
	return &Pipeline{cfg: cfg, selector: selector, store: store, sink: sink}, nil
}

// Enroll runs CAPTURED → PREPROCESSED → REGION_LOCATED → FEATURES_EXTRACTED →
// QUALITY_EVALUATED → {PERSISTED | REJECTED} for one sample and persists the
// resulting template through the store's atomic swap. The run is never resumed or
// retried; callers retry with a fresh sample if they want to.
func (p *Pipeline) Enroll(ctx context.Context, subjectID string, modality types.Modality, sampleBytes []byte) (types.Template, error) {
	mc, err := p.modalityConfig(subjectID, modality)
	if err != nil {
		return types.Template{}, err
	}

	journal := newJournal(types.RunEnrollment, subjectID, modality)
	defer p.submit(journal)

	sample := types.Sample{Bytes: sampleBytes, Modality: modality, CapturedAt: time.Now()}

	vector, quality, err := p.analyze(ctx, sample, mc, journal)
	if err != nil {
		return types.Template{}, err
	}

	start := time.Now()
	if !quality.Accepted {
		journal.record(types.StageQualityAssess, start, types.StepRejected, map[string]any{
			"aggregate": quality.Aggregate,
			"floor":     mc.QualityFloor,
		})
		return types.Template{}, &InsufficientQualityError{Report: quality, Floor: mc.QualityFloor}
	}
	journal.record(types.StageQualityAssess, start, types.StepOK, map[string]any{
		"aggregate": quality.Aggregate,
		"floor":     mc.QualityFloor,
	})

	if err := checkCancel(ctx); err != nil {
		return types.Template{}, err
	}

	start = time.Now()
	tpl, err := newTemplate(subjectID, vector, quality)
	if err != nil {
		journal.record(types.StagePersist, start, types.StepFailed, map[string]any{"error": err.Error()})
		return types.Template{}, err
	}
	if err := p.store.ReplaceActiveTemplate(ctx, subjectID, modality, tpl); err != nil {
		journal.record(types.StagePersist, start, types.StepFailed, map[string]any{"error": err.Error()})
		return types.Template{}, fmt.Errorf("persist template: %w", err)
	}
	journal.record(types.StagePersist, start, types.StepOK, map[string]any{
		"template_id": tpl.ID,
		"digest":      tpl.Digest,
	})

	logger.Info("template enrolled", logger.LoggerOptions{
		Key:  "subject_id",
		Data: subjectID,
	}, logger.LoggerOptions{
		Key:  "modality",
		Data: string(modality),
	}, logger.LoggerOptions{
		Key:  "template_id",
		Data: tpl.ID,
	})
	return tpl, nil
}

// Verify evaluates each presented attempt independently and returns the first
// accept. The decision across modalities is OR: the product policy is "password plus
// any one enrolled biometric", not all-factors-must-pass. A NoTemplateError or bad
// sample in one attempt does not abort the others.
func (p *Pipeline) Verify(ctx context.Context, subjectID string, attempts []types.VerificationAttempt) (types.MatchResult, error) {
	if len(attempts) == 0 {
		return types.MatchResult{}, fmt.Errorf("biometric: no verification attempts presented")
	}

	var bestReject *types.MatchResult
	var firstErr error

	for _, attempt := range attempts {
		result, err := p.verifyAttempt(ctx, subjectID, attempt)
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				return types.MatchResult{}, err
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if result.Accepted {
			return result, nil
		}
		if bestReject == nil || result.Similarity > bestReject.Similarity {
			bestReject = &result
		}
	}

	if bestReject != nil {
		return *bestReject, nil
	}
	return types.MatchResult{}, firstErr
}

func (p *Pipeline) verifyAttempt(ctx context.Context, subjectID string, attempt types.VerificationAttempt) (types.MatchResult, error) {
	mc, err := p.modalityConfig(subjectID, attempt.Modality)
	if err != nil {
		return types.MatchResult{}, err
	}

	journal := newJournal(types.RunVerification, subjectID, attempt.Modality)
	defer p.submit(journal)

	sample := types.Sample{Bytes: attempt.Bytes, Modality: attempt.Modality, CapturedAt: time.Now()}

	vector, quality, err := p.analyze(ctx, sample, mc, journal)
	if err != nil {
		return types.MatchResult{}, err
	}

	// verification is permissive on quality: the sample is compared regardless, the
	// matcher just widens its margin for a low-quality capture
	start := time.Now()
	journal.record(types.StageQualityAssess, start, types.StepOK, map[string]any{
		"aggregate": quality.Aggregate,
		"accepted":  quality.Accepted,
	})

	if err := checkCancel(ctx); err != nil {
		return types.MatchResult{}, err
	}

	start = time.Now()
	tpl, err := p.store.GetActiveTemplate(ctx, subjectID, attempt.Modality)
	if err != nil {
		journal.record(types.StageMatch, start, types.StepFailed, map[string]any{"error": err.Error()})
		return types.MatchResult{}, fmt.Errorf("load active template: %w", err)
	}
	if tpl == nil {
		noTpl := &NoTemplateError{SubjectID: subjectID, Modality: attempt.Modality}
		journal.record(types.StageMatch, start, types.StepFailed, map[string]any{"error": noTpl.Error()})
		return types.MatchResult{}, noTpl
	}

	result, err := matchAgainst(vector, *tpl, mc, quality)
	if err != nil {
		journal.record(types.StageMatch, start, types.StepFailed, map[string]any{"error": err.Error()})
		return types.MatchResult{}, err
	}
	outcome := types.StepRejected
	if result.Accepted {
		outcome = types.StepOK
	}
	journal.record(types.StageMatch, start, outcome, map[string]any{
		"similarity":  result.Similarity,
		"threshold":   mc.MatchThreshold,
		"template_id": tpl.ID,
	})
	return result, nil
}

// analyze is the shared front half of both state machines: preprocess, locate,
// extract. The cancellation flag is checked between stages so a withdrawn run exits
// cleanly without a partial write.
func (p *Pipeline) analyze(ctx context.Context, sample types.Sample, mc ModalityConfig, journal *Journal) (types.FeatureVector, types.QualityReport, error) {
	if err := checkCancel(ctx); err != nil {
		return types.FeatureVector{}, types.QualityReport{}, err
	}

	start := time.Now()
	frame, diagnostics, err := preprocessSample(sample, mc)
	if err != nil {
		journal.record(types.StagePreprocess, start, types.StepFailed, diagnostics)
		return types.FeatureVector{}, types.QualityReport{}, err
	}
	journal.record(types.StagePreprocess, start, types.StepOK, diagnostics)

	if err := checkCancel(ctx); err != nil {
		return types.FeatureVector{}, types.QualityReport{}, err
	}

	start = time.Now()
	region, diagnostics := locateRegion(frame, mc)
	outcome := types.StepOK
	if region.Kind == types.RegionFallbackCenterCrop {
		outcome = types.StepFallback
	}
	journal.record(types.StageRegionLocate, start, outcome, diagnostics)

	if err := checkCancel(ctx); err != nil {
		return types.FeatureVector{}, types.QualityReport{}, err
	}

	start = time.Now()
	vector, err := p.selector.Extract(ctx, region.Frame, sample.Modality)
	if err != nil {
		journal.record(types.StageFeatureExtract, start, types.StepFailed, map[string]any{"error": err.Error()})
		return types.FeatureVector{}, types.QualityReport{}, err
	}
	if vector.Dimensionality() != mc.FeatureDimensionality {
		mismatch := &DimensionMismatchError{QueryDim: vector.Dimensionality(), TemplateDim: mc.FeatureDimensionality}
		journal.record(types.StageFeatureExtract, start, types.StepFailed, map[string]any{"error": mismatch.Error()})
		logger.Error("extractor output does not honor the configured contract", logger.LoggerOptions{
			Key:  "extractor",
			Data: vector.Extractor,
		}, logger.LoggerOptions{
			Key:  "configured_dim",
			Data: mc.FeatureDimensionality,
		})
		return types.FeatureVector{}, types.QualityReport{}, mismatch
	}
	journal.record(types.StageFeatureExtract, start, types.StepOK, map[string]any{
		"extractor":      vector.Extractor,
		"dimensionality": vector.Dimensionality(),
	})

	if err := checkCancel(ctx); err != nil {
		return types.FeatureVector{}, types.QualityReport{}, err
	}

	quality, _ := assessQuality(frame, region.Confidence, mc)
	return vector, quality, nil
}

func (p *Pipeline) modalityConfig(subjectID string, modality types.Modality) (ModalityConfig, error) {
	if subjectID == "" {
		return ModalityConfig{}, fmt.Errorf("biometric: subject id is required")
	}
	mc, ok := p.cfg.Modality(modality)
	if !ok {
		return ModalityConfig{}, fmt.Errorf("biometric: modality %q is not configured", modality)
	}
	return mc, nil
}

func (p *Pipeline) submit(journal *Journal) {
	if p.sink != nil {
		p.sink.Submit(journal.Snapshot())
	}
}

func checkCancel(ctx context.Context) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}
	return nil
}
