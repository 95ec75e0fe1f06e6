package forgery

import (
	"context"
	"image"

	"github.com/ppiankov/legalscan/internal/model"
)

// Canvas that signature candidates are scaled to before comparison
const (
	compareWidth  = 100
	compareHeight = 50
)

// Signatures looks for signature-shaped ink regions and inspects them
// cueText is searched for signing language when no candidate is found.
func (d *Detector) Signatures(ctx context.Context, img image.Image, cueText string) ([]model.Alert, error) {
	gray := toGray(img)
	mask, err := adaptiveThreshold(ctx, gray, adaptiveBlock, adaptiveC)
	if err != nil {
		return nil, err
	}
	rects, err := components(ctx, mask)
	if err != nil {
		return nil, err
	}

	candidates := d.signatureCandidates(mask, rects)

	var alerts []model.Alert
	if len(candidates) == 0 {
		if d.lib.SignatureCue.MatchString(cueText) {
			alerts = append(alerts, alert(model.AlertSignature, model.RiskMedium, msgMissingSignature))
		}
		return alerts, nil
	}

	// At most one irregularity alert across all candidates
	for _, roi := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if edgeDensity(roi) > d.th.EdgeDensity {
			alerts = append(alerts, alert(model.AlertSignature, model.RiskHigh, msgPixelation))
			break
		}
		if emptyTop(roi, d.th.BorderRows) {
			alerts = append(alerts, alert(model.AlertSignature, model.RiskMedium, msgUniformBorder))
			break
		}
	}

	if len(candidates) > 1 {
		dup, err := d.duplicateSignatures(ctx, candidates)
		if err != nil {
			return nil, err
		}
		if dup {
			alerts = append(alerts, alert(model.AlertSignature, model.RiskHigh, msgDuplicateSignature))
		}
	}
	return alerts, nil
}

// signatureCandidates keeps regions with signature-like size, aspect and ink density
// The returned images share pixels with mask.
func (d *Detector) signatureCandidates(mask *image.Gray, rects []image.Rectangle) []*image.Gray {
	var out []*image.Gray
	for _, r := range rects {
		w, h := r.Dx(), r.Dy()
		if w <= d.th.SignatureMinWidth || w >= d.th.SignatureMaxWidth ||
			h <= d.th.SignatureMinHeight || h >= d.th.SignatureMaxHeight {
			continue
		}
		aspect := float64(w) / float64(h)
		if aspect <= d.th.SignatureMinAspect || aspect >= d.th.SignatureMaxAspect {
			continue
		}

		roi := mask.SubImage(r).(*image.Gray)
		density := float64(foreground(roi)) / float64(w*h)
		if density <= d.th.SignatureMinDensity || density >= d.th.SignatureMaxDensity {
			continue
		}
		out = append(out, roi)
	}
	return out
}

// duplicateSignatures reports whether any two candidates are nearly pixel-identical at a common size
func (d *Detector) duplicateSignatures(ctx context.Context, candidates []*image.Gray) (bool, error) {
	scaled := make([]*image.Gray, len(candidates))
	for i, c := range candidates {
		scaled[i] = resizeGray(c, compareWidth, compareHeight)
	}

	for i := 0; i < len(scaled); i++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		for j := i + 1; j < len(scaled); j++ {
			if similarity(scaled[i], scaled[j]) > d.th.DuplicateSimilarity {
				return true, nil
			}
		}
	}
	return false, nil
}

// similarity is the fraction of equal pixels between two same-sized images
func similarity(a, b *image.Gray) float64 {
	same := 0
	for i := range a.Pix {
		if a.Pix[i] == b.Pix[i] {
			same++
		}
	}
	return float64(same) / float64(len(a.Pix))
}

// edgeDensity counts interior pixels that differ from any 4-neighbour, over the region area
func edgeDensity(roi *image.Gray) float64 {
	b := roi.Bounds()
	w, h := b.Dx(), b.Dy()
	at := func(x, y int) uint8 {
		return roi.Pix[roi.PixOffset(b.Min.X+x, b.Min.Y+y)]
	}

	edges := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			v := at(x, y)
			if v != at(x+1, y) || v != at(x-1, y) || v != at(x, y+1) || v != at(x, y-1) {
				edges++
			}
		}
	}
	return float64(edges) / float64(w*h)
}

// emptyTop reports whether the first rows of the region hold no foreground
func emptyTop(roi *image.Gray, rows int) bool {
	b := roi.Bounds()
	n := min(rows, b.Dy()-1)
	for y := 0; y < n; y++ {
		off := roi.PixOffset(b.Min.X, b.Min.Y+y)
		for _, v := range roi.Pix[off : off+b.Dx()] {
			if v != 0 {
				return false
			}
		}
	}
	return true
}
