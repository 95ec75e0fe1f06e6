package forgery

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"github.com/ppiankov/legalscan/internal/model"
)

// Repeated-region search parameters on the downscaled page
const (
	corrBlock  = 32
	corrStride = 16
	corrMinStd = 12.0 // Flat blocks (blank paper) are ignored

	// Mean absolute gradient each axis must reach. Ruled lines and
	// table borders vary along one axis only and fall below it.
	corrMinGrad = 2.0
)

// Manipulation runs error-level analysis and a repeated-region search
func (d *Detector) Manipulation(ctx context.Context, img image.Image) ([]model.Alert, error) {
	var alerts []model.Alert

	level, err := d.errorLevel(ctx, img)
	if err != nil {
		return nil, err
	}
	if level > d.th.ELAMeanDiff {
		alerts = append(alerts, alert(model.AlertManipulation, model.RiskHigh, msgELA))
	}

	repeats, err := d.repeatedRegions(ctx, toGray(img))
	if err != nil {
		return nil, err
	}
	if repeats > d.th.RepeatedMatches {
		alerts = append(alerts, alert(model.AlertManipulation, model.RiskHigh, msgRepeated))
	}
	return alerts, nil
}

// errorLevel re-encodes img as JPEG and returns the mean absolute RGB difference (0-255)
func (d *Detector) errorLevel(ctx context.Context, img image.Image) (float64, error) {
	src := toRGBA(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: d.th.ELAQuality}); err != nil {
		return 0, fmt.Errorf("encode jpeg: %w", err)
	}
	decoded, err := jpeg.Decode(&buf)
	if err != nil {
		return 0, fmt.Errorf("decode jpeg: %w", err)
	}
	re := toRGBA(decoded)

	w, h := src.Rect.Dx(), src.Rect.Dy()
	if w == 0 || h == 0 {
		return 0, nil
	}

	var sum float64
	for y := 0; y < h; y++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		a := src.Pix[y*src.Stride : y*src.Stride+4*w]
		b := re.Pix[y*re.Stride : y*re.Stride+4*w]
		for i := 0; i < len(a); i += 4 {
			sum += absDiff(a[i], b[i]) + absDiff(a[i+1], b[i+1]) + absDiff(a[i+2], b[i+2])
		}
	}
	return sum / float64(w*h*3), nil
}

// block is a zero-mean, unit-norm patch so the dot product of two blocks is their correlation
type block struct {
	at  image.Point
	vec []float32
}

// repeatedRegions counts distinct locations whose patch correlates with another, non-overlapping patch
// Matches closer than CorrelationRadius to an earlier match count once.
func (d *Detector) repeatedRegions(ctx context.Context, gray *image.Gray) (int, error) {
	small := downscale(gray, d.cfg.CorrelationDim)
	blocks := textured(small)

	var matches []image.Point
	for i := 0; i < len(blocks); i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		for j := i + 1; j < len(blocks); j++ {
			p, q := blocks[i].at, blocks[j].at
			if abs(p.X-q.X) < corrBlock && abs(p.Y-q.Y) < corrBlock {
				continue
			}
			if dot(blocks[i].vec, blocks[j].vec) < float32(d.th.CorrelationMin) {
				continue
			}
			if near(matches, q, d.th.CorrelationRadius) {
				continue
			}
			matches = append(matches, q)
			if len(matches) > d.th.RepeatedMatches {
				return len(matches), nil
			}
		}
	}
	return len(matches), nil
}

// textured cuts img into overlapping blocks and keeps those with visible content
func textured(img *image.Gray) []block {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	n := float64(corrBlock * corrBlock)

	var out []block
	for y := 0; y+corrBlock <= h; y += corrStride {
		for x := 0; x+corrBlock <= w; x += corrStride {
			var sum, sq float64
			for dy := 0; dy < corrBlock; dy++ {
				off := (y+dy)*img.Stride + x
				for _, v := range img.Pix[off : off+corrBlock] {
					f := float64(v)
					sum += f
					sq += f * f
				}
			}
			mean := sum / n
			variance := sq/n - mean*mean
			if variance < corrMinStd*corrMinStd {
				continue
			}
			if gx, gy := gradients(img, x, y); math.Min(gx, gy) < corrMinGrad {
				continue
			}
			norm := math.Sqrt(variance * n)

			vec := make([]float32, 0, corrBlock*corrBlock)
			for dy := 0; dy < corrBlock; dy++ {
				off := (y+dy)*img.Stride + x
				for _, v := range img.Pix[off : off+corrBlock] {
					vec = append(vec, float32((float64(v)-mean)/norm))
				}
			}
			out = append(out, block{at: image.Pt(x, y), vec: vec})
		}
	}
	return out
}

// gradients returns the mean absolute horizontal and vertical differences inside the block at (x, y)
func gradients(img *image.Gray, x, y int) (gx, gy float64) {
	for dy := 0; dy < corrBlock; dy++ {
		row := img.Pix[(y+dy)*img.Stride+x:]
		for dx := 0; dx < corrBlock; dx++ {
			if dx+1 < corrBlock {
				gx += absDiff(row[dx+1], row[dx])
			}
			if dy+1 < corrBlock {
				gy += absDiff(row[img.Stride+dx], row[dx])
			}
		}
	}
	pairs := float64(corrBlock * (corrBlock - 1))
	return gx / pairs, gy / pairs
}

func near(points []image.Point, p image.Point, radius int) bool {
	for _, q := range points {
		if abs(p.X-q.X) < radius && abs(p.Y-q.Y) < radius {
			return true
		}
	}
	return false
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func absDiff(a, b uint8) float64 {
	if a > b {
		return float64(a - b)
	}
	return float64(b - a)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
