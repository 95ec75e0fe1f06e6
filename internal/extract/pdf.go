package extract

import (
	"fmt"
	"sort"

	"github.com/ledongthuc/pdf"

	"github.com/ppiankov/legalscan/internal/model"
)

// pdfDocument is the text layer and container metadata of a PDF
type pdfDocument struct {
	Pages    []string // Plain text per page, empty when the page has no text layer
	Metadata model.PDFMetadata
}

// readPDF opens the PDF at path and reads every page's text plus the document info
func readPDF(path string) (doc *pdfDocument, err error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	// The parser panics on some malformed streams
	defer func() {
		if p := recover(); p != nil {
			doc, err = nil, fmt.Errorf("parse pdf: %v", p)
		}
	}()

	doc = &pdfDocument{}
	info := r.Trailer().Key("Info")
	doc.Metadata.CreationDate = info.Key("CreationDate").Text()
	doc.Metadata.ModDate = info.Key("ModDate").Text()

	fonts := make(map[string]struct{})
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			doc.Pages = append(doc.Pages, "")
			continue
		}
		for _, name := range page.Fonts() {
			fonts[name] = struct{}{}
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			text = ""
		}
		doc.Pages = append(doc.Pages, text)
	}

	for name := range fonts {
		doc.Metadata.Fonts = append(doc.Metadata.Fonts, name)
	}
	sort.Strings(doc.Metadata.Fonts)
	return doc, nil
}
