package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/legalscan/internal/model"
)

// Tesseract runs the tesseract CLI and reads its stdout
type Tesseract struct {
	path     string
	language string
	timeout  time.Duration
}

// NewTesseract creates an OCR backend from configuration
func NewTesseract(cfg model.ExtractConfig) *Tesseract {
	path := cfg.TesseractPath
	if path == "" {
		path = "tesseract"
	}
	lang := cfg.OCRLanguage
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{path: path, language: lang, timeout: cfg.Timeout}
}

// Recognize returns the text tesseract reads from the image
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	out, err := run(ctx, t.timeout, t.path, imagePath, "stdout", "-l", t.language)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil
}

// Pdftoppm renders PDF pages to PNG with poppler's pdftoppm
type Pdftoppm struct {
	path    string
	dpi     int
	timeout time.Duration
}

// NewPdftoppm creates a page renderer from configuration
func NewPdftoppm(cfg model.ExtractConfig) *Pdftoppm {
	path := cfg.PdftoppmPath
	if path == "" {
		path = "pdftoppm"
	}
	dpi := cfg.RenderDPI
	if dpi <= 0 {
		dpi = 150
	}
	return &Pdftoppm{path: path, dpi: dpi, timeout: cfg.Timeout}
}

// RenderPage writes page (1-based) of pdfPath to dir as page-N.png
func (p *Pdftoppm) RenderPage(ctx context.Context, pdfPath string, page int, dir string) (string, error) {
	n := strconv.Itoa(page)
	prefix := filepath.Join(dir, "page-"+n)
	if _, err := run(ctx, p.timeout, p.path, "-png", "-singlefile", "-r", strconv.Itoa(p.dpi), "-f", n, "-l", n, pdfPath, prefix); err != nil {
		return "", fmt.Errorf("pdftoppm: %w", err)
	}

	out := prefix + ".png"
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("pdftoppm produced no image: %w", err)
	}
	return out, nil
}

// run executes a tool under an optional timeout and returns its stdout
func run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
