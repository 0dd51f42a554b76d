package biometric

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"biolock.io/infrastructure/biometric/types"
)

// Encodings the pipeline recognizes but refuses. Decoders for these are not
// registered, so without sniffing they would be indistinguishable from garbage.
var disallowedMagic = map[string][]byte{
	"bmp":  {'B', 'M'},
	"tiff": {'I', 'I', 0x2A, 0x00},
	"webp": {'R', 'I', 'F', 'F'},
}

// preprocessSample turns raw capture bytes into the canonical analysis frame for the
// modality: decode, grayscale, resize to the configured target. Resizing is
// area-averaging on the way down and bilinear on the way up so extraction stays
// deterministic across heterogeneous capture resolutions.
func preprocessSample(sample types.Sample, mc ModalityConfig) (*types.CanonicalFrame, map[string]any, error) {
	for format, magic := range disallowedMagic {
		if len(sample.Bytes) >= len(magic) && bytes.Equal(sample.Bytes[:len(magic)], magic) {
			return nil, map[string]any{"format": format}, &UnsupportedFormatError{Format: format}
		}
	}

	img, format, err := image.Decode(bytes.NewReader(sample.Bytes))
	if err != nil {
		return nil, map[string]any{"bytes": len(sample.Bytes)}, &DecodeError{Err: err}
	}

	gray := toGray(img)
	bounds := gray.Bounds()
	frame := &types.CanonicalFrame{
		Gray:         resizeGray(gray, mc.TargetWidth, mc.TargetHeight),
		Modality:     sample.Modality,
		SourceWidth:  bounds.Dx(),
		SourceHeight: bounds.Dy(),
	}

	diagnostics := map[string]any{
		"format":        format,
		"source_width":  bounds.Dx(),
		"source_height": bounds.Dy(),
		"target_width":  mc.TargetWidth,
		"target_height": mc.TargetHeight,
	}
	return frame, diagnostics, nil
}

func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x-bounds.Min.X, y-bounds.Min.Y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// resizeGray applies the fixed interpolation policy: area averaging when shrinking,
// bilinear when growing. The choice is made on total pixel count.
func resizeGray(src *image.Gray, width, height int) *image.Gray {
	srcBounds := src.Bounds()
	if srcBounds.Dx() == width && srcBounds.Dy() == height {
		return src
	}
	if width*height <= srcBounds.Dx()*srcBounds.Dy() {
		return downsampleArea(src, width, height)
	}
	return upsampleBilinear(src, width, height)
}

func downsampleArea(src *image.Gray, width, height int) *image.Gray {
	srcW := src.Bounds().Dx()
	srcH := src.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, width, height))

	for dy := 0; dy < height; dy++ {
		y0 := dy * srcH / height
		y1 := (dy + 1) * srcH / height
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for dx := 0; dx < width; dx++ {
			x0 := dx * srcW / width
			x1 := (dx + 1) * srcW / width
			if x1 <= x0 {
				x1 = x0 + 1
			}
			sum := 0
			for sy := y0; sy < y1; sy++ {
				for sx := x0; sx < x1; sx++ {
					sum += int(src.GrayAt(sx, sy).Y)
				}
			}
			count := (y1 - y0) * (x1 - x0)
			dst.SetGray(dx, dy, color.Gray{Y: uint8(sum / count)})
		}
	}
	return dst
}

func upsampleBilinear(src *image.Gray, width, height int) *image.Gray {
	srcW := src.Bounds().Dx()
	srcH := src.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, width, height))

	for dy := 0; dy < height; dy++ {
		fy := (float64(dy) + 0.5) * float64(srcH) / float64(height)
		y0 := int(fy - 0.5)
		if y0 < 0 {
			y0 = 0
		}
		y1 := y0 + 1
		if y1 >= srcH {
			y1 = srcH - 1
		}
		wy := fy - 0.5 - float64(y0)
		if wy < 0 {
			wy = 0
		}
		for dx := 0; dx < width; dx++ {
			fx := (float64(dx) + 0.5) * float64(srcW) / float64(width)
			x0 := int(fx - 0.5)
			if x0 < 0 {
				x0 = 0
			}
			x1 := x0 + 1
			if x1 >= srcW {
				x1 = srcW - 1
			}
			wx := fx - 0.5 - float64(x0)
			if wx < 0 {
				wx = 0
			}

			top := float64(src.GrayAt(x0, y0).Y)*(1-wx) + float64(src.GrayAt(x1, y0).Y)*wx
			bottom := float64(src.GrayAt(x0, y1).Y)*(1-wx) + float64(src.GrayAt(x1, y1).Y)*wx
			dst.SetGray(dx, dy, color.Gray{Y: uint8(top*(1-wy) + bottom*wy + 0.5)})
		}
	}
	return dst
}
