package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/legalscan/internal/model"
)

var (
	// ErrUnsupportedInput is returned for file types no extractor handles
	ErrUnsupportedInput = errors.New("unsupported input")

	// ErrNoText is returned when a document yields no usable text
	ErrNoText = errors.New("no text could be extracted")
)

// OCR turns an image file into text
type OCR interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// PageRenderer rasterizes a single PDF page into dir and returns the image path
type PageRenderer interface {
	RenderPage(ctx context.Context, pdfPath string, page int, dir string) (string, error)
}

// Result is everything the analyzers need from one source file
type Result struct {
	Text      string
	Kind      model.SourceKind
	ImagePath string // Rendered first page (PDF) or the image itself
	ImageErr  error  // Why no page image is available, for kinds that should have one
	OCRText   string
	Metadata  *model.PDFMetadata
	Pages     int

	workDir string
}

// Input converts the result into the analyzers' immutable input
func (r *Result) Input() model.AnalysisInput {
	return model.AnalysisInput{
		Text:      r.Text,
		ImagePath: r.ImagePath,
		ImageErr:  r.ImageErr,
		OCRText:   r.OCRText,
		Kind:      r.Kind,
		Metadata:  r.Metadata,
	}
}

// Close removes rendered pages and other temporary files
func (r *Result) Close() error {
	if r == nil || r.workDir == "" {
		return nil
	}
	dir := r.workDir
	r.workDir = ""
	return os.RemoveAll(dir)
}

// Extractor pulls text, page imagery and metadata out of document containers
type Extractor struct {
	cfg      model.ExtractConfig
	ocr      OCR
	renderer PageRenderer
}

// New creates an extractor backed by the tesseract and pdftoppm command line tools
func New(cfg model.ExtractConfig) *Extractor {
	return NewWithTools(cfg, NewTesseract(cfg), NewPdftoppm(cfg))
}

// NewWithTools creates an extractor with explicit OCR and rendering backends
func NewWithTools(cfg model.ExtractConfig, ocr OCR, renderer PageRenderer) *Extractor {
	return &Extractor{cfg: cfg, ocr: ocr, renderer: renderer}
}

// KindFromPath maps a file extension to a source kind
func KindFromPath(path string) (model.SourceKind, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "pdf":
		return model.SourcePDF, nil
	case "docx":
		return model.SourceDOCX, nil
	case "jpg", "jpeg", "png", "gif", "bmp", "tif", "tiff", "webp":
		return model.SourceImage, nil
	case "html", "htm", "xhtml":
		return model.SourceHTML, nil
	case "txt", "text", "md":
		return model.SourceText, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedInput, filepath.Ext(path))
	}
}

// Extract reads the document at path
// The caller must Close the result once the analyzers are done with it.
func (e *Extractor) Extract(ctx context.Context, path string) (*Result, error) {
	kind, err := KindFromPath(path)
	if err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp("", "legalscan-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	res := &Result{Kind: kind, workDir: workDir}

	switch kind {
	case model.SourcePDF:
		err = e.extractPDF(ctx, path, res)
	case model.SourceDOCX:
		res.Text, err = readDOCX(path)
	case model.SourceImage:
		err = e.extractImage(ctx, path, res)
	case model.SourceHTML:
		res.Text, err = readHTMLFile(path)
	case model.SourceText:
		var data []byte
		data, err = os.ReadFile(path)
		res.Text = string(data)
	}
	if err != nil {
		_ = res.Close()
		return nil, fmt.Errorf("extract %s: %w", kind, err)
	}

	if strings.TrimSpace(res.Text) == "" {
		_ = res.Close()
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoText)
	}
	return res, nil
}

func (e *Extractor) extractPDF(ctx context.Context, path string, res *Result) error {
	doc, err := readPDF(path)
	if err != nil {
		return err
	}
	res.Metadata = &doc.Metadata
	res.Pages = len(doc.Pages)

	// 1. Text layer, OCR for pages that have none
	var b strings.Builder
	ocrUsed := false
	for i, text := range doc.Pages {
		if strings.TrimSpace(text) == "" && e.cfg.OCRFallback {
			ocrUsed = true
			slog.Info("page has no text layer, using OCR", slog.String("file", filepath.Base(path)), slog.Int("page", i+1))
			ocrText, err := e.ocrPage(ctx, path, i+1, res.workDir)
			if err != nil {
				slog.Warn("page OCR failed", slog.Int("page", i+1), slog.Any("error", err))
			}
			text = ocrText
			if i == 0 {
				res.OCRText = ocrText
			}
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	res.Text = b.String()

	// 2. A document with no text at all is a scan; OCR every page
	if strings.TrimSpace(res.Text) == "" && !ocrUsed && len(doc.Pages) > 0 {
		slog.Info("document has no text layer, running OCR on all pages", slog.String("file", filepath.Base(path)))
		text, err := e.ocrDocument(ctx, path, len(doc.Pages), res.workDir)
		if err != nil {
			return fmt.Errorf("document ocr: %w", err)
		}
		res.Text = text
		res.OCRText = text
	}

	// 3. First page image for the forgery checks
	img, err := e.renderer.RenderPage(ctx, path, 1, res.workDir)
	if err != nil {
		slog.Warn("render first page failed", slog.String("file", filepath.Base(path)), slog.Any("error", err))
		res.ImageErr = err
	} else {
		res.ImagePath = img
	}
	return nil
}

func (e *Extractor) ocrPage(ctx context.Context, path string, page int, dir string) (string, error) {
	img, err := e.renderer.RenderPage(ctx, path, page, dir)
	if err != nil {
		return "", err
	}
	return e.ocr.Recognize(ctx, img)
}

// ocrDocument recognizes pages 1..pages in order and joins their text
func (e *Extractor) ocrDocument(ctx context.Context, path string, pages int, dir string) (string, error) {
	var b strings.Builder
	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := e.ocrPage(ctx, path, page, dir)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (e *Extractor) extractImage(ctx context.Context, path string, res *Result) error {
	res.ImagePath = path
	text, err := e.ocr.Recognize(ctx, path)
	if err != nil {
		return fmt.Errorf("ocr: %w", err)
	}
	res.Text = text
	res.OCRText = text
	return nil
}
