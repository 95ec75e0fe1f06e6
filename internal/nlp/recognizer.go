// Package nlp provides the named-entity recognition context used by the text analyzer.
//
// A Recognizer is constructed once at startup and passed to the analyzer.
// NewProseRecognizer loads the statistical model; NewRuleRecognizer is the
// explicit fallback when that model is unavailable or unwanted.
package nlp

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/jdkato/prose/v2"
)

// Entity labels produced by recognizers
const (
	LabelPerson = "PERSON"
	LabelOrg    = "ORG"
	LabelDate   = "DATE"
)

// Span is a recognized entity
type Span struct {
	Text  string
	Label string
}

// Recognizer extracts named entities from plain text
// Implementations must be safe for concurrent use
type Recognizer interface {
	Name() string
	Recognize(text string) []Span
}

// New builds the recognizer named by kind ("prose" or "rules")
func New(kind string) (Recognizer, error) {
	switch strings.ToLower(kind) {
	case "", "prose":
		return NewProseRecognizer(), nil
	case "rules", "rule", "fallback":
		return NewRuleRecognizer(), nil
	default:
		return nil, fmt.Errorf("unknown nlp recognizer: %s (supported: prose, rules)", kind)
	}
}

// ProseRecognizer wraps the prose statistical entity model
type ProseRecognizer struct{}

// NewProseRecognizer creates a recognizer backed by prose
func NewProseRecognizer() *ProseRecognizer {
	return &ProseRecognizer{}
}

// Name returns the recognizer name
func (r *ProseRecognizer) Name() string {
	return "prose"
}

// Recognize runs tokenization, tagging and entity extraction over text
func (r *ProseRecognizer) Recognize(text string) (spans []Span) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("entity recognition failed", slog.String("recognizer", "prose"), slog.Any("panic", rec))
			spans = nil
		}
	}()

	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		slog.Warn("entity recognition failed", slog.String("recognizer", "prose"), slog.Any("error", err))
		return nil
	}

	for _, ent := range doc.Entities() {
		label := mapProseLabel(ent.Label)
		if label == "" {
			continue
		}
		spans = append(spans, Span{Text: strings.TrimSpace(ent.Text), Label: label})
	}
	return spans
}

// mapProseLabel keeps the labels the analyzer consumes
func mapProseLabel(label string) string {
	switch strings.ToUpper(label) {
	case "PERSON":
		return LabelPerson
	case "ORG", "ORGANIZATION":
		return LabelOrg
	case "DATE":
		return LabelDate
	default:
		return ""
	}
}

var (
	ruleOrg    = regexp.MustCompile(`\b(?:[A-Z][A-Za-z&]*\s+)+(?:LLC|Inc|Ltd|Corporation|Corp|Company|GmbH|PLC|LLP)\b\.?`)
	rulePerson = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Miss|Dr|Prof)\.?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?`)
	ruleDate   = regexp.MustCompile(`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)[a-z]*\.?\s+\d{4}\b`)
)

// RuleRecognizer finds entities with capitalization and honorific rules
type RuleRecognizer struct{}

// NewRuleRecognizer creates the fallback recognizer
func NewRuleRecognizer() *RuleRecognizer {
	return &RuleRecognizer{}
}

// Name returns the recognizer name
func (r *RuleRecognizer) Name() string {
	return "rules"
}

// Recognize returns spans in document order
func (r *RuleRecognizer) Recognize(text string) []Span {
	type hit struct {
		start int
		span  Span
	}
	var hits []hit
	collect := func(re *regexp.Regexp, label string) {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			hits = append(hits, hit{start: loc[0], span: Span{Text: strings.TrimSpace(text[loc[0]:loc[1]]), Label: label}})
		}
	}
	collect(rulePerson, LabelPerson)
	collect(ruleOrg, LabelOrg)
	collect(ruleDate, LabelDate)

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	spans := make([]Span, 0, len(hits))
	for _, h := range hits {
		spans = append(spans, h.span)
	}
	return spans
}
