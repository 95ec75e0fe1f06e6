// Package analyze extracts parties, dates, key clauses and payment and
// termination terms from plain document text and builds a short summary.
//
// The analyzer holds no per-request state. Entity recognition runs once per
// document in Parse; every Extract method reads the resulting Document.
package analyze

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/legalscan/internal/model"
	"github.com/ppiankov/legalscan/internal/nlp"
	"github.com/ppiankov/legalscan/internal/patterns"
)

// DefaultMaxChars bounds the text handed to entity recognition
const DefaultMaxChars = 100000

var (
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
)

// Analyzer runs the text extraction steps against a pattern library
type Analyzer struct {
	lib      *patterns.Library
	ner      nlp.Recognizer
	th       model.TextThresholds
	maxChars int
}

// Document is cleaned text together with its recognized entities
type Document struct {
	Text  string
	Spans []nlp.Span
}

// New creates an analyzer
// maxChars <= 0 uses DefaultMaxChars
func New(lib *patterns.Library, ner nlp.Recognizer, th model.TextThresholds, maxChars int) *Analyzer {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Analyzer{
		lib:      lib,
		ner:      ner,
		th:       th,
		maxChars: maxChars,
	}
}

// CleanText collapses whitespace inside paragraphs and trims the result
// Blank-line paragraph boundaries survive as a single "\n\n"
func CleanText(text string) string {
	parts := paragraphBreak.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(whitespaceRun.ReplaceAllString(p, " "))
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

// Parse cleans text, caps its length and runs entity recognition
func (a *Analyzer) Parse(text string) *Document {
	cleaned := CleanText(text)
	if utf8.RuneCountInString(cleaned) > a.maxChars {
		cleaned = string([]rune(cleaned)[:a.maxChars])
	}

	var spans []nlp.Span
	if a.ner != nil {
		spans = a.ner.Recognize(cleaned)
	}
	return &Document{Text: cleaned, Spans: spans}
}

// Analyze runs every extraction step and assembles the result
// A panic in any step degrades the result to document type and word count
func (a *Analyzer) Analyze(text string) (res model.TextAnalysis) {
	slog.Debug("starting document analysis", slog.Int("chars", len(text)))

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("document analysis failed", slog.Any("panic", rec))
			res = a.minimal(text)
		}
	}()

	doc := a.Parse(text)

	// 1. Entities and patterns
	dates := a.ExtractDates(doc)
	parties := a.ExtractParties(doc)
	clauses := a.ExtractKeyClauses(doc)
	payment := a.ExtractPaymentTerms(doc)
	termination := a.ExtractTerminationClauses(doc)

	// 2. Summary
	docType := a.ClassifyDocument(doc)
	wordCount := len(strings.Fields(doc.Text))
	summary := a.Summarize(docType, wordCount, parties, dates, payment, termination)

	// 3. Key terms for display
	keyTerms := make([]model.KeyTerm, 0, len(clauses))
	for _, c := range clauses {
		keyTerms = append(keyTerms, model.KeyTerm{
			Title:   c.Title,
			Content: ellipsize(c.Content, a.th.KeyTermContentChars),
		})
	}

	slog.Debug("document analysis completed",
		slog.String("type", docType),
		slog.Int("parties", len(parties)),
		slog.Int("key_clauses", len(clauses)))

	return model.TextAnalysis{
		Summary:            summary,
		DocumentType:       docType,
		Parties:            parties,
		Dates:              dates,
		KeyClauses:         clauses,
		PaymentTerms:       payment,
		TerminationClauses: termination,
		KeyTerms:           keyTerms,
		WordCount:          wordCount,
	}
}

// minimal builds the degraded result without entity recognition
func (a *Analyzer) minimal(text string) model.TextAnalysis {
	doc := &Document{Text: CleanText(text)}
	docType := a.ClassifyDocument(doc)
	wordCount := len(strings.Fields(doc.Text))
	return model.TextAnalysis{
		Summary:      a.Summarize(docType, wordCount, nil, nil, nil, nil),
		DocumentType: docType,
		WordCount:    wordCount,
	}
}

// ClassifyDocument names the document type by keyword priority
func (a *Analyzer) ClassifyDocument(doc *Document) string {
	lowered := strings.ToLower(doc.Text)
	for _, dt := range a.lib.DocumentTypes {
		if dt.Matches(lowered) {
			return dt.Name
		}
	}
	return a.lib.DefaultDocumentType
}

// Summarize renders the human-readable summary lines
// Lines whose source list is empty are omitted
func (a *Analyzer) Summarize(docType string, wordCount int, parties []model.Entity, dates, payment, termination []string) []string {
	summary := []string{fmt.Sprintf("Document Type: %s", docType)}

	if len(parties) > 0 {
		names := make([]string, 0, a.th.SummaryParties)
		for i, p := range parties {
			if i >= a.th.SummaryParties {
				break
			}
			names = append(names, p.Text)
		}
		summary = append(summary, "Parties Involved: "+strings.Join(names, ", "))
	}

	if len(dates) > 0 {
		summary = append(summary, "Key Dates: "+strings.Join(head(dates, a.th.SummaryDates), ", "))
	}

	if len(payment) > 0 {
		summary = append(summary, "Payment Terms: "+clip(payment[0], a.th.SummaryExcerptChars)+"...")
	}

	if len(termination) > 0 {
		summary = append(summary, "Termination: "+clip(termination[0], a.th.SummaryExcerptChars)+"...")
	}

	summary = append(summary, fmt.Sprintf("Document Length: Approximately %d words", wordCount))
	return summary
}

// clip returns at most n runes of s
func clip(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// ellipsize appends "..." to the first n runes when s is longer than n
func ellipsize(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return clip(s, n) + "..."
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
