package biometric

import (
	"context"
	"fmt"
	"image"
	"testing"

	"biolock.io/infrastructure/biometric/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollRoundTrip(t *testing.T) {
	pipeline, store, sink := newTestPipeline(t)
	ctx := context.Background()
	sample := subjectSample(t, 7, 300)

	tpl, err := pipeline.Enroll(ctx, "alice", types.ModalityFingerprint, sample)
	require.NoError(t, err)
	require.NotEmpty(t, tpl.ID)
	assert.Equal(t, "alice", tpl.SubjectID)
	assert.Equal(t, types.ModalityFingerprint, tpl.Modality)
	assert.Equal(t, ClassicalDimensionality, tpl.Vector.Dimensionality())
	assert.True(t, tpl.Quality.Accepted)
	assert.Equal(t, 1, store.ActiveCount("alice", types.ModalityFingerprint))

	run := sink.last()
	require.NotNil(t, run)
	assert.Equal(t, types.RunEnrollment, run.Kind)
	assert.Equal(t, []types.StageName{
		types.StagePreprocess,
		types.StageRegionLocate,
		types.StageFeatureExtract,
		types.StageQualityAssess,
		types.StagePersist,
	}, stageNames(run.Steps))
	for _, step := range run.Steps {
		assert.NotEqual(t, types.StepFailed, step.Outcome, "stage %s failed", step.Stage)
	}

	// the same capture presented for verification matches its own template
	result, err := pipeline.Verify(ctx, "alice", []types.VerificationAttempt{
		{Modality: types.ModalityFingerprint, Bytes: sample},
	})
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, tpl.ID, result.TemplateID)
	assert.InDelta(t, 1.0, result.Similarity, 1e-9)
}

func TestVerifyRejectsDifferentSubject(t *testing.T) {
	pipeline, _, sink := newTestPipeline(t)
	ctx := context.Background()

	_, err := pipeline.Enroll(ctx, "alice", types.ModalityFingerprint, subjectSample(t, 7, 300))
	require.NoError(t, err)

	result, err := pipeline.Verify(ctx, "alice", []types.VerificationAttempt{
		{Modality: types.ModalityFingerprint, Bytes: subjectSample(t, 10, 300)},
	})
	require.NoError(t, err)
	assert.False(t, result.Accepted, "impostor similarity %f", result.Similarity)
	assert.Less(t, result.Similarity, 0.85)

	run := sink.last()
	require.NotNil(t, run)
	assert.Equal(t, types.RunVerification, run.Kind)
	last := run.Steps[len(run.Steps)-1]
	assert.Equal(t, types.StageMatch, last.Stage)
	assert.Equal(t, types.StepRejected, last.Outcome)
}

func TestEnrollRejectsUndecodableSample(t *testing.T) {
	pipeline, store, sink := newTestPipeline(t)

	_, err := pipeline.Enroll(context.Background(), "alice", types.ModalityFace, []byte("not an image"))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, 0, store.ActiveCount("alice", types.ModalityFace))

	// the run still journals: one failed preprocess step and nothing after it
	run := sink.last()
	require.NotNil(t, run)
	require.Len(t, run.Steps, 1)
	assert.Equal(t, types.StagePreprocess, run.Steps[0].Stage)
	assert.Equal(t, types.StepFailed, run.Steps[0].Outcome)
}

func TestEnrollRejectsLowQualitySample(t *testing.T) {
	pipeline, store, sink := newTestPipeline(t)
	flat := encodePNG(t, makeFlatImage(127, 200))

	_, err := pipeline.Enroll(context.Background(), "alice", types.ModalityFace, flat)
	var quality *InsufficientQualityError
	require.ErrorAs(t, err, &quality)
	assert.Less(t, quality.Report.Aggregate, quality.Floor)
	assert.Equal(t, 0, store.ActiveCount("alice", types.ModalityFace))

	run := sink.last()
	require.NotNil(t, run)
	require.Len(t, run.Steps, 4)
	assert.Equal(t, []types.StageName{
		types.StagePreprocess,
		types.StageRegionLocate,
		types.StageFeatureExtract,
		types.StageQualityAssess,
	}, stageNames(run.Steps))
	// a featureless frame takes the deterministic center-crop fallback
	assert.Equal(t, types.StepFallback, run.Steps[1].Outcome)
	assert.Equal(t, types.StepRejected, run.Steps[3].Outcome)
}

func TestVerifyWithoutEnrollment(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)

	_, err := pipeline.Verify(context.Background(), "bob", []types.VerificationAttempt{
		{Modality: types.ModalityFace, Bytes: subjectSample(t, 4, 200)},
	})
	var noTpl *NoTemplateError
	require.ErrorAs(t, err, &noTpl)
	assert.Equal(t, "bob", noTpl.SubjectID)
	assert.Equal(t, types.ModalityFace, noTpl.Modality)
}

func TestReEnrollSwapsActiveTemplate(t *testing.T) {
	pipeline, store, _ := newTestPipeline(t)
	ctx := context.Background()
	sample := subjectSample(t, 7, 300)

	first, err := pipeline.Enroll(ctx, "alice", types.ModalityFingerprint, sample)
	require.NoError(t, err)
	second, err := pipeline.Enroll(ctx, "alice", types.ModalityFingerprint, sample)
	require.NoError(t, err)

	assert.Equal(t, 1, store.ActiveCount("alice", types.ModalityFingerprint))
	active, err := store.GetActiveTemplate(ctx, "alice", types.ModalityFingerprint)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)

	history := store.History("alice", types.ModalityFingerprint)
	require.Len(t, history, 1)
	assert.Equal(t, first.ID, history[0].ID)
	assert.False(t, history[0].Active)

	// byte-identical captures pin the same digest under different ids
	assert.Equal(t, first.Digest, second.Digest)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEnrollHonorsCancellation(t *testing.T) {
	pipeline, store, _ := newTestPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.Enroll(ctx, "alice", types.ModalityFingerprint, subjectSample(t, 7, 300))
	require.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 0, store.ActiveCount("alice", types.ModalityFingerprint))
}

func TestVerifyAcceptsAnyEnrolledModality(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)
	ctx := context.Background()
	fingerprint := subjectSample(t, 7, 300)

	_, err := pipeline.Enroll(ctx, "alice", types.ModalityFingerprint, fingerprint)
	require.NoError(t, err)

	// face is not enrolled; the fingerprint attempt alone decides the outcome
	result, err := pipeline.Verify(ctx, "alice", []types.VerificationAttempt{
		{Modality: types.ModalityFace, Bytes: subjectSample(t, 4, 200)},
		{Modality: types.ModalityFingerprint, Bytes: fingerprint},
	})
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, types.ModalityFingerprint, result.Modality)
}

func TestVerifySurfacesErrorWhenNoAttemptComparable(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)
	ctx := context.Background()

	_, err := pipeline.Verify(ctx, "alice", nil)
	require.Error(t, err)

	_, err = pipeline.Verify(ctx, "alice", []types.VerificationAttempt{
		{Modality: types.ModalityFace, Bytes: []byte("junk")},
	})
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestPipelineRejectsUnknownInputs(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)
	ctx := context.Background()

	_, err := pipeline.Enroll(ctx, "", types.ModalityFace, subjectSample(t, 1, 200))
	require.Error(t, err)

	_, err = pipeline.Enroll(ctx, "alice", types.Modality("iris"), subjectSample(t, 1, 200))
	require.Error(t, err)
}

// TestVerificationSeparationAcrossCorpus measures genuine and impostor outcomes
// statistically over a fixed corpus: six subjects, one enrollment capture and one
// fresh verification capture each. Every genuine pair must accept, no impostor pair
// may accept, and the score distributions must not overlap.
func TestVerificationSeparationAcrossCorpus(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)
	ctx := context.Background()

	const subjects = 6
	subjectID := func(c int) string { return fmt.Sprintf("subject-%d", c) }
	// seed c and seed c+6 are two captures of the same subject
	for c := 0; c < subjects; c++ {
		_, err := pipeline.Enroll(ctx, subjectID(c), types.ModalityFingerprint, subjectSample(t, c, 192))
		require.NoError(t, err, "enroll subject %d", c)
	}

	minGenuine := 1.0
	for c := 0; c < subjects; c++ {
		result, err := pipeline.Verify(ctx, subjectID(c), []types.VerificationAttempt{
			{Modality: types.ModalityFingerprint, Bytes: subjectSample(t, c+6, 192)},
		})
		require.NoError(t, err, "genuine verify subject %d", c)
		assert.True(t, result.Accepted, "genuine capture of subject %d rejected at %.4f", c, result.Similarity)
		if result.Similarity < minGenuine {
			minGenuine = result.Similarity
		}
	}

	maxImpostor := 0.0
	falseAccepts := 0
	for a := 0; a < subjects; a++ {
		for b := 0; b < subjects; b++ {
			if a == b {
				continue
			}
			result, err := pipeline.Verify(ctx, subjectID(a), []types.VerificationAttempt{
				{Modality: types.ModalityFingerprint, Bytes: subjectSample(t, b+6, 192)},
			})
			require.NoError(t, err, "impostor verify %d against %d", b, a)
			if result.Accepted {
				falseAccepts++
				t.Errorf("subject %d accepted as subject %d at %.4f", b, a, result.Similarity)
			}
			if result.Similarity > maxImpostor {
				maxImpostor = result.Similarity
			}
		}
	}

	assert.Zero(t, falseAccepts)
	assert.Less(t, maxImpostor, minGenuine,
		"impostor and genuine score ranges overlap: max impostor %.4f, min genuine %.4f", maxImpostor, minGenuine)
}

// interruptedExtractor reports cancellation the way a wrapped downstream error would.
type interruptedExtractor struct{}

func (interruptedExtractor) Name() string        { return "classical" }
func (interruptedExtractor) Dimensionality() int { return ClassicalDimensionality }

func (interruptedExtractor) Extract(context.Context, *image.Gray, types.Modality) (types.FeatureVector, error) {
	return types.FeatureVector{}, fmt.Errorf("embedding interrupted: %w", ErrCancelled)
}

func TestVerifyAbortsOnWrappedCancellation(t *testing.T) {
	store := NewMemoryTemplateStore()
	sink := &recordingSink{}
	selector := NewExtractorSelector(interruptedExtractor{}, nil, 0)
	pipeline, err := NewPipeline(DefaultConfig(), selector, store, sink)
	require.NoError(t, err)

	// cancellation aborts the whole verification, the second attempt never runs
	_, err = pipeline.Verify(context.Background(), "alice", []types.VerificationAttempt{
		{Modality: types.ModalityFingerprint, Bytes: subjectSample(t, 1, 64)},
		{Modality: types.ModalityFace, Bytes: subjectSample(t, 2, 64)},
	})
	require.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 1, sink.count())
}

func TestEnrollDeterministic(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)
	ctx := context.Background()
	sample := subjectSample(t, 9, 240)

	first, err := pipeline.Enroll(ctx, "alice", types.ModalityPalmprint, sample)
	require.NoError(t, err)
	second, err := pipeline.Enroll(ctx, "alice", types.ModalityPalmprint, sample)
	require.NoError(t, err)

	require.Equal(t, len(first.Vector.Values), len(second.Vector.Values))
	for i := range first.Vector.Values {
		require.Equal(t, first.Vector.Values[i], second.Vector.Values[i], "component %d diverged", i)
	}
}
