package biometric

import (
	"context"
	"image"
	"math"

	"biolock.io/infrastructure/biometric/types"
)

// FeatureExtractor is the capability interface every call site depends on. The
// concrete kind (classical or neural) is selected once at process startup; the
// underlying filter bank or model is loaded then and read-only afterwards, so
// concurrent runs share it without locking.
type FeatureExtractor interface {
	Name() string
	Dimensionality() int
	Extract(ctx context.Context, region *image.Gray, modality types.Modality) (types.FeatureVector, error)
}

const (
	lbpBins        = 256
	hogGridSize    = 4
	hogOrientBins  = 6
	gaborOrients   = 8
	gaborWaves     = 4
	gaborKernelLen = 9
)

// ClassicalExtractor is the composite descriptor path: local binary pattern
// histogram + oriented-gradient histogram + Gabor filter energies, concatenated and
// L2-normalized. It is fully deterministic and never fails on a well-formed frame;
// near-uniform images degrade to a low-information but still well-formed vector.
type ClassicalExtractor struct {
	bank []gaborKernel
}

type gaborKernel struct {
	weights [gaborKernelLen][gaborKernelLen]float64
}

// NewClassicalExtractor builds the Gabor filter bank once. The returned extractor is
// read-only and safe for concurrent use.
func NewClassicalExtractor() *ClassicalExtractor {
	bank := make([]gaborKernel, 0, gaborOrients*gaborWaves)
	wavelengths := [gaborWaves]float64{4, 6, 8, 12}
	for o := 0; o < gaborOrients; o++ {
		theta := float64(o) * math.Pi / gaborOrients
		for _, lambda := range wavelengths {
			bank = append(bank, newGaborKernel(theta, lambda))
		}
	}
	return &ClassicalExtractor{bank: bank}
}

func newGaborKernel(theta, lambda float64) gaborKernel {
	var k gaborKernel
	sigma := 0.56 * lambda
	half := gaborKernelLen / 2
	sum := 0.0
	for y := -half; y <= half; y++ {
		for x := -half; x <= half; x++ {
			xr := float64(x)*math.Cos(theta) + float64(y)*math.Sin(theta)
			yr := -float64(x)*math.Sin(theta) + float64(y)*math.Cos(theta)
			envelope := math.Exp(-(xr*xr + yr*yr) / (2 * sigma * sigma))
			carrier := math.Cos(2 * math.Pi * xr / lambda)
			k.weights[y+half][x+half] = envelope * carrier
			sum += k.weights[y+half][x+half]
		}
	}
	// remove the DC component so flat regions produce zero response
	mean := sum / float64(gaborKernelLen*gaborKernelLen)
	for y := 0; y < gaborKernelLen; y++ {
		for x := 0; x < gaborKernelLen; x++ {
			k.weights[y][x] -= mean
		}
	}
	return k
}

func (ce *ClassicalExtractor) Name() string { return "classical" }

func (ce *ClassicalExtractor) Dimensionality() int { return ClassicalDimensionality }

func (ce *ClassicalExtractor) Extract(ctx context.Context, region *image.Gray, modality types.Modality) (types.FeatureVector, error) {
	if err := ctx.Err(); err != nil {
		return types.FeatureVector{}, ErrCancelled
	}

	values := make([]float64, 0, ClassicalDimensionality)
	values = append(values, lbpHistogram(region)...)
	values = append(values, orientedGradientHistogram(region)...)
	values = append(values, ce.gaborEnergies(region)...)
	l2Normalize(values)

	// a degenerate all-zero vector is still a valid contract member
	if isZeroVector(values) {
		values[0] = 1
	}

	return types.FeatureVector{
		Values:    values,
		Modality:  modality,
		Extractor: ce.Name(),
	}, nil
}

// lbpHistogram computes the 256-bin local binary pattern histogram. Each interior
// pixel is encoded by comparing its 8 neighbors against it clockwise from the
// top-left.
func lbpHistogram(gray *image.Gray) []float64 {
	bounds := gray.Bounds()
	hist := make([]float64, lbpBins)
	offsets := [8][2]int{{-1, -1}, {0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}}

	count := 0
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			center := gray.GrayAt(x, y).Y
			pattern := 0
			for bit, off := range offsets {
				if gray.GrayAt(x+off[0], y+off[1]).Y >= center {
					pattern |= 1 << uint(bit)
				}
			}
			hist[pattern]++
			count++
		}
	}
	if count > 0 {
		for i := range hist {
			hist[i] /= float64(count)
		}
	}
	return hist
}

// orientedGradientHistogram bins gradient orientations into a 4x4 cell grid with 6
// unsigned orientation bins per cell, magnitude weighted.
func orientedGradientHistogram(gray *image.Gray) []float64 {
	bounds := gray.Bounds()
	hist := make([]float64, hogGridSize*hogGridSize*hogOrientBins)
	w := bounds.Dx()
	h := bounds.Dy()
	if w < 3 || h < 3 {
		return hist
	}

	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			gx := float64(gray.GrayAt(x+1, y).Y) - float64(gray.GrayAt(x-1, y).Y)
			gy := float64(gray.GrayAt(x, y+1).Y) - float64(gray.GrayAt(x, y-1).Y)
			magnitude := math.Sqrt(gx*gx + gy*gy)
			if magnitude == 0 {
				continue
			}
			// unsigned orientation in [0, pi)
			orientation := math.Atan2(gy, gx)
			if orientation < 0 {
				orientation += math.Pi
			}
			bin := int(orientation / math.Pi * hogOrientBins)
			if bin >= hogOrientBins {
				bin = hogOrientBins - 1
			}

			cellX := (x - bounds.Min.X) * hogGridSize / w
			cellY := (y - bounds.Min.Y) * hogGridSize / h
			if cellX >= hogGridSize {
				cellX = hogGridSize - 1
			}
			if cellY >= hogGridSize {
				cellY = hogGridSize - 1
			}
			hist[(cellY*hogGridSize+cellX)*hogOrientBins+bin] += magnitude
		}
	}
	l2Normalize(hist)
	return hist
}

// gaborEnergies records the mean absolute filter response of each bank kernel,
// sampled on a fixed stride over the region interior.
func (ce *ClassicalExtractor) gaborEnergies(gray *image.Gray) []float64 {
	bounds := gray.Bounds()
	energies := make([]float64, len(ce.bank))
	half := gaborKernelLen / 2
	stride := maxInt(minInt(bounds.Dx(), bounds.Dy())/24, 1)

	for ki, kernel := range ce.bank {
		sum := 0.0
		count := 0
		for y := bounds.Min.Y + half; y < bounds.Max.Y-half; y += stride {
			for x := bounds.Min.X + half; x < bounds.Max.X-half; x += stride {
				response := 0.0
				for ky := 0; ky < gaborKernelLen; ky++ {
					for kx := 0; kx < gaborKernelLen; kx++ {
						response += kernel.weights[ky][kx] * float64(gray.GrayAt(x+kx-half, y+ky-half).Y)
					}
				}
				sum += math.Abs(response)
				count++
			}
		}
		if count > 0 {
			energies[ki] = sum / float64(count)
		}
	}
	l2Normalize(energies)
	return energies
}

func l2Normalize(values []float64) {
	norm := 0.0
	for _, v := range values {
		norm += v * v
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range values {
		values[i] /= norm
	}
}

func isZeroVector(values []float64) bool {
	for _, v := range values {
		if v != 0 {
			return false
		}
	}
	return true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
