package forgery

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/legalscan/internal/model"
	"github.com/ppiankov/legalscan/internal/patterns"
)

func newDetector(t *testing.T) *Detector {
	t.Helper()
	return NewDetector(patterns.MustDefault(), model.DefaultThresholds(), model.DefaultConfig().Forgery)
}

func blankPage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

// drawSignature paints a 300x45 connected sine stroke with its top-left corner at (x0, y0)
func drawSignature(img *image.Gray, x0, y0 int) {
	for x := 0; x < 300; x++ {
		cy := y0 + 22 + int(math.Round(20*math.Sin(float64(x)/20)))
		for dy := -2; dy <= 2; dy++ {
			img.SetGray(x0+x, cy+dy, color.Gray{Y: 0})
		}
	}
}

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func descriptions(alerts []model.Alert) []string {
	out := make([]string, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Description)
	}
	return out
}

func TestTextStyle(t *testing.T) {
	d := newDetector(t)

	var lines []string
	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			lines = append(lines, "ABCDEFGHIJ")
		} else {
			lines = append(lines, "abcdefghij")
		}
	}
	res := d.TextStyle(strings.Join(lines, "\n"))
	assert.Equal(t, []string{msgFontStyle}, descriptions(res.Alerts))

	res = d.TextStyle(strings.Repeat("an ordinary line of text\n", 10))
	assert.Empty(t, res.Alerts)

	res = d.TextStyle(strings.Repeat("Name:    value\n", 6))
	assert.Equal(t, []string{msgSpacing}, descriptions(res.Alerts))
}

func TestStyleOf(t *testing.T) {
	assert.Equal(t, lineStyle{0.5, 0.25, 0.25}, styleOf("AB1."))
	assert.Equal(t, lineStyle{}, styleOf(""))
	assert.InDelta(t, 1.0, styleOf("AAAA").distance(styleOf("aaaa")), 1e-9)
}

func TestMetadata(t *testing.T) {
	d := newDetector(t)

	tests := []struct {
		name string
		meta model.PDFMetadata
		want []string
	}{
		{
			name: "modified before created",
			meta: model.PDFMetadata{CreationDate: "D:20230601120000Z", ModDate: "D:20230101120000Z"},
			want: []string{msgModBeforeCreation},
		},
		{
			name: "large year gap",
			meta: model.PDFMetadata{CreationDate: "D:20100101000000", ModDate: "D:20200101000000+02'00'"},
			want: []string{"Document was created in 2010 but modified in 2020, suggesting possible updates to original content."},
		},
		{
			name: "consistent",
			meta: model.PDFMetadata{CreationDate: "D:20230101000000", ModDate: "D:20230102000000"},
		},
		{
			name: "unparseable dates",
			meta: model.PDFMetadata{CreationDate: "yesterday", ModDate: "D:2023"},
		},
		{
			name: "many fonts",
			meta: model.PDFMetadata{Fonts: []string{"F1", "F2", "F3", "F4", "F5", "F6", "F1"}},
			want: []string{"Document uses 6 different font types, suggesting possible cut-and-paste from multiple sources."},
		},
		{
			name: "five fonts allowed",
			meta: model.PDFMetadata{Fonts: []string{"F1", "F2", "F3", "F4", "F5"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Metadata(tt.meta)
			assert.NoError(t, res.Err)
			assert.Equal(t, tt.want, nilIfEmpty(descriptions(res.Alerts)))
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestSignatures_DuplicateRegions(t *testing.T) {
	d := newDetector(t)
	page := blankPage(800, 400)
	drawSignature(page, 100, 60)
	drawSignature(page, 100, 260)

	alerts, err := d.Signatures(context.Background(), page, "")
	require.NoError(t, err)
	assert.Equal(t, []string{msgDuplicateSignature}, descriptions(alerts))
}

func TestSignatures_SingleCleanSignature(t *testing.T) {
	d := newDetector(t)
	page := blankPage(800, 400)
	drawSignature(page, 100, 60)

	alerts, err := d.Signatures(context.Background(), page, "Signature")
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestSignatures_Pixelated(t *testing.T) {
	d := newDetector(t)
	page := blankPage(600, 200)
	for y := 50; y < 90; y++ {
		for x := 100; x < 400; x++ {
			if y == 50 || (x+y)%4 == 0 {
				page.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}

	alerts, err := d.Signatures(context.Background(), page, "")
	require.NoError(t, err)
	assert.Equal(t, []string{msgPixelation}, descriptions(alerts))
}

func TestSignatures_MissingSignature(t *testing.T) {
	d := newDetector(t)

	alerts, err := d.Signatures(context.Background(), blankPage(400, 300), "Tenant signature: ________")
	require.NoError(t, err)
	assert.Equal(t, []string{msgMissingSignature}, descriptions(alerts))

	alerts, err = d.Signatures(context.Background(), blankPage(400, 300), "no cue words")
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestErrorLevel(t *testing.T) {
	d := newDetector(t)

	flat := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for i := range flat.Pix {
		flat.Pix[i] = 200
		if i%4 == 3 {
			flat.Pix[i] = 255
		}
	}
	level, err := d.errorLevel(context.Background(), flat)
	require.NoError(t, err)
	assert.Less(t, level, 2.0)

	rng := rand.New(rand.NewSource(1))
	noise := image.NewRGBA(image.Rect(0, 0, 128, 128))
	for i := range noise.Pix {
		noise.Pix[i] = uint8(rng.Intn(256))
		if i%4 == 3 {
			noise.Pix[i] = 255
		}
	}
	level, err = d.errorLevel(context.Background(), noise)
	require.NoError(t, err)
	assert.Greater(t, level, 10.0)
}

func TestRepeatedRegions(t *testing.T) {
	d := newDetector(t)
	rng := rand.New(rand.NewSource(7))

	page := image.NewGray(image.Rect(0, 0, 512, 512))
	for i := range page.Pix {
		page.Pix[i] = uint8(rng.Intn(256))
	}

	count, err := d.repeatedRegions(context.Background(), page)
	require.NoError(t, err)
	assert.LessOrEqual(t, count, 5)

	patch := make([]uint8, 48*48)
	for i := range patch {
		patch[i] = uint8(rng.Intn(256))
	}
	for _, at := range []image.Point{{32, 32}, {160, 32}, {288, 32}, {416, 32}, {32, 160}, {160, 160}, {288, 160}, {416, 160}} {
		for y := 0; y < 48; y++ {
			copy(page.Pix[(at.Y+y)*page.Stride+at.X:], patch[y*48:(y+1)*48])
		}
	}

	count, err = d.repeatedRegions(context.Background(), page)
	require.NoError(t, err)
	assert.Greater(t, count, 5)
}

func TestRepeatedRegions_RuledForm(t *testing.T) {
	d := newDetector(t)
	page := blankPage(1240, 1754)
	for y := 150; y <= 1650; y += 60 {
		for dy := 0; dy < 2; dy++ {
			for x := 100; x < 1140; x++ {
				page.SetGray(x, y+dy, color.Gray{Y: 0})
			}
		}
	}

	count, err := d.repeatedRegions(context.Background(), page)
	require.NoError(t, err)
	assert.Zero(t, count)

	alerts, err := d.Manipulation(context.Background(), page)
	require.NoError(t, err)
	assert.NotContains(t, descriptions(alerts), msgRepeated)
}

func TestDetect_ImageDuplicateSignatures(t *testing.T) {
	d := newDetector(t)
	page := blankPage(800, 400)
	drawSignature(page, 100, 60)
	drawSignature(page, 100, 260)

	res := d.Detect(context.Background(), model.AnalysisInput{
		Text:      "Lease agreement signed by both parties.",
		ImagePath: writePNG(t, page),
		Kind:      model.SourceImage,
	})

	assert.Contains(t, res.Messages, msgDuplicateSignature)
	assert.GreaterOrEqual(t, res.RiskScore, 0.2)
	assert.LessOrEqual(t, res.RiskScore, 1.0)
}

func TestDetect_UnreadableImage(t *testing.T) {
	d := newDetector(t)
	path := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	res := d.Detect(context.Background(), model.AnalysisInput{Text: "short", ImagePath: path, Kind: model.SourceImage})

	assert.Equal(t, []string{msgSignatureLoad, msgManipulationLoad}, res.Messages)
	assert.InDelta(t, 0.4, res.RiskScore, 1e-9)
	var failures int
	for _, s := range res.Signals {
		if s.Type == model.SignalCheckFailure {
			failures++
		}
	}
	assert.Equal(t, 2, failures)
}

func TestDetect_PixelBudget(t *testing.T) {
	cfg := model.DefaultConfig().Forgery
	cfg.MaxImagePixels = 100
	d := NewDetector(patterns.MustDefault(), model.DefaultThresholds(), cfg)

	res := d.Detect(context.Background(), model.AnalysisInput{ImagePath: writePNG(t, blankPage(50, 50)), Kind: model.SourceImage})
	assert.Equal(t, []string{msgSignatureLoad, msgManipulationLoad}, res.Messages)

	_, err := loadImage(writePNG(t, blankPage(50, 50)), 100)
	assert.True(t, errors.Is(err, ErrImageTooLarge))
}

func TestDetect_Timeout(t *testing.T) {
	cfg := model.DefaultConfig().Forgery
	cfg.ImageTimeout = time.Nanosecond
	d := NewDetector(patterns.MustDefault(), model.DefaultThresholds(), cfg)

	res := d.Detect(context.Background(), model.AnalysisInput{ImagePath: writePNG(t, blankPage(1000, 1000)), Kind: model.SourcePDF})
	assert.Equal(t, []string{msgSignatureError, msgManipulationError}, res.Messages)
}

func TestDetect_RenderError(t *testing.T) {
	d := newDetector(t)
	res := d.Detect(context.Background(), model.AnalysisInput{
		Text:     "text",
		Kind:     model.SourcePDF,
		ImageErr: errors.New("pdftoppm: not found"),
		Metadata: &model.PDFMetadata{CreationDate: "D:20230601120000", ModDate: "D:20220101120000"},
	})

	assert.Equal(t, []string{msgRenderError, msgModBeforeCreation}, res.Messages)
	assert.InDelta(t, 0.4, res.RiskScore, 1e-9)
}

func TestDetect_DOCXSkipsImageChecks(t *testing.T) {
	d := newDetector(t)
	res := d.Detect(context.Background(), model.AnalysisInput{
		Text:      "plain text",
		ImagePath: "/does/not/exist.png",
		Kind:      model.SourceDOCX,
		Metadata:  &model.PDFMetadata{CreationDate: "D:20230601120000", ModDate: "D:20220101120000"},
	})
	assert.Empty(t, res.Alerts)
	assert.Equal(t, 0.0, res.RiskScore)
}

func TestDetect_WordingFallback(t *testing.T) {
	d := newDetector(t)
	text := strings.Repeat("lorem ", 120) + "Pay by bitcoin or bank transfer."

	res := d.Detect(context.Background(), model.AnalysisInput{Text: text, Kind: model.SourceText})
	assert.Equal(t, []string{msgWording}, res.Messages)
	assert.InDelta(t, 0.4, res.RiskScore, 1e-9)

	short := "Pay by bitcoin or bank transfer."
	res = d.Detect(context.Background(), model.AnalysisInput{Text: short, Kind: model.SourceText})
	assert.Empty(t, res.Messages)
	assert.Equal(t, 0.0, res.RiskScore)
}
