package biometric

import (
	"image"
	"math"

	"biolock.io/infrastructure/biometric/types"
)

// Fixed aggregation weights. Sharpness dominates because focus failures are the most
// common capture defect across all three modalities.
const (
	qualityWeightSharpness = 0.40
	qualityWeightContrast  = 0.30
	qualityWeightRegion    = 0.30
)

// assessQuality scores the canonical frame. Sharpness is the normalized variance of
// a Laplacian high-pass response, contrast the normalized intensity spread, and the
// region confidence is carried in from the locator. The accept flag reflects the
// enrollment floor; verification callers ignore it and let the matcher widen its
// uncertainty band instead.
func assessQuality(frame *types.CanonicalFrame, regionConfidence float64, mc ModalityConfig) (types.QualityReport, map[string]any) {
	sharpness := sharpnessScore(frame.Gray)
	contrast := contrastScore(frame.Gray)

	aggregate := qualityWeightSharpness*sharpness +
		qualityWeightContrast*contrast +
		qualityWeightRegion*regionConfidence

	report := types.QualityReport{
		Sharpness:        sharpness,
		Contrast:         contrast,
		RegionConfidence: regionConfidence,
		Aggregate:        clamp01(aggregate),
		Accepted:         aggregate >= mc.QualityFloor,
	}
	diagnostics := map[string]any{
		"sharpness": sharpness,
		"contrast":  contrast,
		"region":    regionConfidence,
		"aggregate": report.Aggregate,
		"floor":     mc.QualityFloor,
	}
	return report, diagnostics
}

// sharpnessScore is the variance of the 4-neighbor Laplacian, squashed into [0,1].
// Blurred captures suppress the high-pass response toward zero.
func sharpnessScore(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	if bounds.Dx() < 3 || bounds.Dy() < 3 {
		return 0
	}

	responses := make([]float64, 0, (bounds.Dx()-2)*(bounds.Dy()-2))
	mean := 0.0
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			lap := float64(gray.GrayAt(x-1, y).Y) + float64(gray.GrayAt(x+1, y).Y) +
				float64(gray.GrayAt(x, y-1).Y) + float64(gray.GrayAt(x, y+1).Y) - 4*center
			responses = append(responses, lap)
			mean += lap
		}
	}
	mean /= float64(len(responses))

	variance := 0.0
	for _, r := range responses {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(responses))

	return variance / (variance + 400)
}

// contrastScore is the intensity standard deviation scaled so a well-exposed capture
// saturates near 1.
func contrastScore(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return 0
	}

	mean := 0.0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			mean += float64(gray.GrayAt(x, y).Y)
		}
	}
	mean /= float64(total)

	variance := 0.0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			d := float64(gray.GrayAt(x, y).Y) - mean
			variance += d * d
		}
	}
	variance /= float64(total)

	return clamp01(math.Sqrt(variance) / 64.0)
}
