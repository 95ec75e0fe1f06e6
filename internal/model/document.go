package model

// SourceKind identifies the container a document's text was extracted from
type SourceKind string

const (
	SourcePDF   SourceKind = "pdf"
	SourceDOCX  SourceKind = "docx"
	SourceImage SourceKind = "image"
	SourceHTML  SourceKind = "html"
	SourceText  SourceKind = "text"
)

// HasPageImage reports whether documents of this kind can supply a rendered page
func (k SourceKind) HasPageImage() bool {
	return k == SourcePDF || k == SourceImage
}

// PDFMetadata carries container metadata read from a PDF trailer and page resources
type PDFMetadata struct {
	CreationDate string   `json:"creation_date,omitempty"` // Raw /CreationDate value, e.g. "D:20200101120000Z"
	ModDate      string   `json:"mod_date,omitempty"`      // Raw /ModDate value
	Fonts        []string `json:"fonts,omitempty"`         // Distinct font resource names across pages
}

// AnalysisInput is the immutable input to the three analyzers
type AnalysisInput struct {
	Text      string       // Fully extracted plain text
	ImagePath string       // Rendered first page (PDF) or the image itself; empty for DOCX
	ImageErr  error        // Set when the collaborator failed to render a page image
	OCRText   string       // OCR of the page image, if the collaborator produced one
	Kind      SourceKind   // Source container kind
	Metadata  *PDFMetadata // PDF container metadata, nil for other kinds
}
