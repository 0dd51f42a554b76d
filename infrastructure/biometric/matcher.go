package biometric

import (
	"math"
	"time"

	"biolock.io/infrastructure/biometric/types"
	"biolock.io/infrastructure/logger"
)

// qualityUncertaintyMargin widens the acceptance bar when the verification sample
// itself scored below the modality quality floor. The sample is still compared, it
// just has to clear a slightly higher similarity to compensate for its noise.
const qualityUncertaintyMargin = 0.03

// matchAgainst compares a query vector with one stored template. Length mismatch
// means the vectors were produced under different extractor contracts; that is a
// deployment fault and the one condition worth alerting operators about.
func matchAgainst(query types.FeatureVector, tpl types.Template, mc ModalityConfig, sampleQuality types.QualityReport) (types.MatchResult, error) {
	start := time.Now()

	if query.Dimensionality() != tpl.Vector.Dimensionality() {
		err := &DimensionMismatchError{
			QueryDim:    query.Dimensionality(),
			TemplateDim: tpl.Vector.Dimensionality(),
		}
		logger.Error("feature vector contract mismatch, deployment is inconsistent", logger.LoggerOptions{
			Key:  "query_dim",
			Data: query.Dimensionality(),
		}, logger.LoggerOptions{
			Key:  "template_dim",
			Data: tpl.Vector.Dimensionality(),
		}, logger.LoggerOptions{
			Key:  "template_id",
			Data: tpl.ID,
		})
		return types.MatchResult{}, err
	}

	similarity := cosineSimilarity(query.Values, tpl.Vector.Values)

	threshold := mc.MatchThreshold
	if !sampleQuality.Accepted {
		threshold += qualityUncertaintyMargin
	}

	// no partial credit: a borderline score below the bar is a reject
	return types.MatchResult{
		Similarity: similarity,
		Accepted:   similarity >= threshold,
		Modality:   tpl.Modality,
		TemplateID: tpl.ID,
		Latency:    time.Since(start),
	}, nil
}

// cosineSimilarity returns the cosine of the angle between a and b, clamped to
// [0,1]. Negative cosines carry no meaning for non-negative descriptor histograms
// and map to zero.
func cosineSimilarity(a, b []float64) float64 {
	dot := 0.0
	normA := 0.0
	normB := 0.0
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return clamp01(similarity)
}
