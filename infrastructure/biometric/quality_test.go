package biometric

import (
	"image"
	"math"
	"testing"

	"biolock.io/infrastructure/biometric/types"
)

func grayFrame(img *image.Gray, modality types.Modality) *types.CanonicalFrame {
	return &types.CanonicalFrame{
		Gray:         img,
		Modality:     modality,
		SourceWidth:  img.Bounds().Dx(),
		SourceHeight: img.Bounds().Dy(),
	}
}

func TestAssessQualityFlatFrameRejected(t *testing.T) {
	mc := DefaultConfig().Modalities[types.ModalityFace]
	frame := grayFrame(makeFlatImage(127, 160), types.ModalityFace)

	report, diagnostics := assessQuality(frame, types.FallbackRegionConfidence, mc)

	if report.Sharpness > 0.01 {
		t.Fatalf("flat frame sharpness %f, want ~0", report.Sharpness)
	}
	if report.Contrast > 0.01 {
		t.Fatalf("flat frame contrast %f, want ~0", report.Contrast)
	}
	if report.Accepted {
		t.Fatalf("flat frame accepted with aggregate %f against floor %f", report.Aggregate, mc.QualityFloor)
	}
	if diagnostics["floor"] != mc.QualityFloor {
		t.Fatalf("diagnostics carry floor %v", diagnostics["floor"])
	}
}

func TestAssessQualityStructuredFrameAccepted(t *testing.T) {
	mc := DefaultConfig().Modalities[types.ModalityFingerprint]
	frame := grayFrame(makeSubjectImage(1, 192), types.ModalityFingerprint)

	report, _ := assessQuality(frame, 0.9, mc)

	if !report.Accepted {
		t.Fatalf("structured frame rejected: sharpness %f contrast %f aggregate %f floor %f",
			report.Sharpness, report.Contrast, report.Aggregate, mc.QualityFloor)
	}
	if report.RegionConfidence != 0.9 {
		t.Fatalf("region confidence not carried through: %f", report.RegionConfidence)
	}
}

func TestAssessQualityAggregateWeights(t *testing.T) {
	mc := DefaultConfig().Modalities[types.ModalityFace]
	frame := grayFrame(makeSubjectImage(3, 160), types.ModalityFace)

	report, _ := assessQuality(frame, 0.7, mc)

	want := clamp01(0.40*report.Sharpness + 0.30*report.Contrast + 0.30*0.7)
	if math.Abs(report.Aggregate-want) > 1e-9 {
		t.Fatalf("aggregate %f, want weighted sum %f", report.Aggregate, want)
	}
}

func TestQualityScoresStayInUnitInterval(t *testing.T) {
	frames := []*image.Gray{
		makeFlatImage(0, 64),
		makeFlatImage(255, 64),
		makeSubjectImage(0, 64),
		makeSubjectImage(5, 192),
	}
	for i, img := range frames {
		sharp := sharpnessScore(img)
		contrast := contrastScore(img)
		if sharp < 0 || sharp > 1 || contrast < 0 || contrast > 1 {
			t.Fatalf("frame %d out of range: sharpness %f contrast %f", i, sharp, contrast)
		}
	}
}
