package biometric

import (
	"image"
	"math"

	"biolock.io/infrastructure/biometric/types"
)

// centerCropFraction is the fixed fraction of the frame kept by the deterministic
// fallback crop when detection finds nothing usable.
const centerCropFraction = 0.7

// locateRegion finds the biometric-relevant sub-frame for the modality. It never
// fails the run: below the configured confidence floor it falls back to a center
// crop and records the fixed low confidence so quality scoring can penalize it.
// Rejection is deferred to the quality assessor, which has full context.
func locateRegion(frame *types.CanonicalFrame, mc ModalityConfig) (types.Region, map[string]any) {
	var bounds image.Rectangle
	var confidence float64

	switch frame.Modality {
	case types.ModalityFingerprint:
		bounds, confidence = locateRidgeDensity(frame.Gray)
	case types.ModalityFace:
		bounds, confidence = locateFaceBox(frame.Gray)
	case types.ModalityPalmprint:
		bounds, confidence = locateBrightBlob(frame.Gray)
	default:
		confidence = 0
	}

	kind := types.RegionDetected
	if confidence < mc.RegionConfidenceFloor {
		bounds = centerCrop(frame.Gray.Bounds(), centerCropFraction)
		confidence = types.FallbackRegionConfidence
		kind = types.RegionFallbackCenterCrop
	}

	region := types.Region{
		Frame:      cropGray(frame.Gray, bounds),
		Kind:       kind,
		Confidence: confidence,
		Bounds:     bounds,
	}
	diagnostics := map[string]any{
		"kind":       string(kind),
		"confidence": confidence,
		"bounds":     bounds.String(),
	}
	return region, diagnostics
}

// locateRidgeDensity slides a half-frame window and keeps the one with the highest
// mean gradient magnitude. Fingerprint ridges are dense small-scale gradients, so
// the densest window is the print area.
func locateRidgeDensity(gray *image.Gray) (image.Rectangle, float64) {
	return bestWindow(gray, func(g *image.Gray, r image.Rectangle) float64 {
		sum := 0.0
		count := 0
		for y := r.Min.Y + 1; y < r.Max.Y-1; y++ {
			for x := r.Min.X + 1; x < r.Max.X-1; x++ {
				gx := float64(g.GrayAt(x+1, y).Y) - float64(g.GrayAt(x-1, y).Y)
				gy := float64(g.GrayAt(x, y+1).Y) - float64(g.GrayAt(x, y-1).Y)
				sum += math.Sqrt(gx*gx + gy*gy)
				count++
			}
		}
		if count == 0 {
			return 0
		}
		// mean gradient magnitude, scaled so a well-inked print saturates near 1
		return clamp01(sum / float64(count) / 48.0)
	})
}

// locateFaceBox keeps the half-frame window with the highest intensity variance,
// weighted toward the frame center. Structured face regions carry far more variance
// than background walls; the center weight breaks ties toward framed captures.
func locateFaceBox(gray *image.Gray) (image.Rectangle, float64) {
	frameBounds := gray.Bounds()
	cx := float64(frameBounds.Min.X+frameBounds.Max.X) / 2
	cy := float64(frameBounds.Min.Y+frameBounds.Max.Y) / 2
	maxDist := math.Hypot(float64(frameBounds.Dx())/2, float64(frameBounds.Dy())/2)

	return bestWindow(gray, func(g *image.Gray, r image.Rectangle) float64 {
		mean := 0.0
		count := 0
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				mean += float64(g.GrayAt(x, y).Y)
				count++
			}
		}
		if count == 0 {
			return 0
		}
		mean /= float64(count)
		variance := 0.0
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				d := float64(g.GrayAt(x, y).Y) - mean
				variance += d * d
			}
		}
		variance /= float64(count)

		wcx := float64(r.Min.X+r.Max.X) / 2
		wcy := float64(r.Min.Y+r.Max.Y) / 2
		centerWeight := 1.0 - 0.5*math.Hypot(wcx-cx, wcy-cy)/maxDist

		return clamp01(math.Sqrt(variance)/64.0) * centerWeight
	})
}

// locateBrightBlob bounds the largest bright area, the palm heuristic: palm sensors
// illuminate skin well above background. Confidence is the fill ratio of bright
// pixels inside the box.
func locateBrightBlob(gray *image.Gray) (image.Rectangle, float64) {
	bounds := gray.Bounds()
	mean := 0.0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			mean += float64(gray.GrayAt(x, y).Y)
		}
	}
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return bounds, 0
	}
	mean /= float64(total)
	threshold := uint8(math.Min(mean+24, 250))

	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X, bounds.Min.Y
	bright := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if gray.GrayAt(x, y).Y > threshold {
				bright++
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}
	if bright == 0 || maxX <= minX || maxY <= minY {
		return bounds, 0
	}
	blob := image.Rect(minX, minY, maxX+1, maxY+1)
	fill := float64(bright) / float64(blob.Dx()*blob.Dy())
	// tiny blobs are noise, not a palm
	area := float64(blob.Dx()*blob.Dy()) / float64(total)
	if area < 0.05 {
		return bounds, 0
	}
	return blob, clamp01(fill)
}

// bestWindow scans half-frame windows on an eighth-frame stride and returns the
// highest scoring one.
func bestWindow(gray *image.Gray, score func(*image.Gray, image.Rectangle) float64) (image.Rectangle, float64) {
	bounds := gray.Bounds()
	winW := bounds.Dx() / 2
	winH := bounds.Dy() / 2
	if winW < 8 || winH < 8 {
		return bounds, 0
	}
	strideX := maxInt(bounds.Dx()/8, 1)
	strideY := maxInt(bounds.Dy()/8, 1)

	best := bounds
	bestScore := -1.0
	for y := bounds.Min.Y; y+winH <= bounds.Max.Y; y += strideY {
		for x := bounds.Min.X; x+winW <= bounds.Max.X; x += strideX {
			r := image.Rect(x, y, x+winW, y+winH)
			if s := score(gray, r); s > bestScore {
				bestScore = s
				best = r
			}
		}
	}
	return best, bestScore
}

func centerCrop(bounds image.Rectangle, fraction float64) image.Rectangle {
	w := int(float64(bounds.Dx()) * fraction)
	h := int(float64(bounds.Dy()) * fraction)
	x0 := bounds.Min.X + (bounds.Dx()-w)/2
	y0 := bounds.Min.Y + (bounds.Dy()-h)/2
	return image.Rect(x0, y0, x0+w, y0+h)
}

func cropGray(src *image.Gray, r image.Rectangle) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			dst.SetGray(x, y, src.GrayAt(r.Min.X+x, r.Min.Y+y))
		}
	}
	return dst
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
