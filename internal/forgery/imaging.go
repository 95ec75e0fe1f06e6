package forgery

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Adaptive threshold parameters: an 11px Gaussian neighbourhood, offset 2
const (
	adaptiveBlock = 11
	adaptiveC     = 2.0
)

// loadImage decodes the image at path after checking its size against maxPixels
func loadImage(path string, maxPixels int) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if maxPixels > 0 && cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d %s", ErrImageTooLarge, cfg.Width, cfg.Height, format)
	}

	if _, err := f.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("rewind image: %w", err)
	}
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// toGray converts img to an 8-bit grayscale image anchored at the origin
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// toRGBA converts img to RGBA anchored at the origin
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// resizeGray scales src to w x h with bilinear interpolation
func resizeGray(src *image.Gray, w, h int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// downscale shrinks src so its longest side is at most dim
func downscale(src *image.Gray, dim int) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	longest := max(w, h)
	if longest <= dim {
		return src
	}
	scale := float64(dim) / float64(longest)
	nw := max(1, int(float64(w)*scale))
	nh := max(1, int(float64(h)*scale))
	dst := image.NewGray(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// gaussianKernel returns a normalized 1-D kernel of the given odd size
// Sigma follows the usual size-derived default: 0.3*((size-1)/2 - 1) + 0.8
func gaussianKernel(size int) []float32 {
	sigma := 0.3*(float64(size-1)*0.5-1) + 0.8
	r := size / 2
	k := make([]float32, size)
	var sum float64
	for i := range k {
		d := float64(i - r)
		v := math.Exp(-(d * d) / (2 * sigma * sigma))
		k[i] = float32(v)
		sum += v
	}
	for i := range k {
		k[i] /= float32(sum)
	}
	return k
}

// adaptiveThreshold marks dark pixels as foreground (255)
// A pixel is foreground when it is no brighter than its Gaussian-weighted
// neighbourhood mean minus c. Edges replicate the border pixel.
func adaptiveThreshold(ctx context.Context, gray *image.Gray, block int, c float32) (*image.Gray, error) {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	k := gaussianKernel(block)
	r := block / 2

	clampIdx := func(i, n int) int {
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	}

	horiz := make([]float32, w*h)
	for y := 0; y < h; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for x := 0; x < w; x++ {
			var acc float32
			for i, kv := range k {
				acc += kv * float32(row[clampIdx(x+i-r, w)])
			}
			horiz[y*w+x] = acc
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < w; x++ {
			var mean float32
			for i, kv := range k {
				mean += kv * horiz[clampIdx(y+i-r, h)*w+x]
			}
			if float32(gray.Pix[y*gray.Stride+x]) <= mean-c {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out, nil
}

// components returns the bounding boxes of 8-connected foreground regions
func components(ctx context.Context, mask *image.Gray) ([]image.Rectangle, error) {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	seen := make([]bool, w*h)
	var rects []image.Rectangle
	var stack []int

	for y := 0; y < h; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < w; x++ {
			idx := y*w + x
			if seen[idx] || mask.Pix[y*mask.Stride+x] == 0 {
				continue
			}

			rect := image.Rect(x, y, x+1, y+1)
			seen[idx] = true
			stack = append(stack[:0], idx)
			for len(stack) > 0 {
				cur := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				cx, cy := cur%w, cur/w
				rect = rect.Union(image.Rect(cx, cy, cx+1, cy+1))

				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := cx+dx, cy+dy
						if nx < 0 || ny < 0 || nx >= w || ny >= h {
							continue
						}
						n := ny*w + nx
						if seen[n] || mask.Pix[ny*mask.Stride+nx] == 0 {
							continue
						}
						seen[n] = true
						stack = append(stack, n)
					}
				}
			}
			rects = append(rects, rect)
		}
	}
	return rects, nil
}

// foreground counts non-zero pixels in img
func foreground(img *image.Gray) int {
	b := img.Bounds()
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		for _, v := range img.Pix[off : off+b.Dx()] {
			if v != 0 {
				n++
			}
		}
	}
	return n
}
