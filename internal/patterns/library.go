// Package patterns holds the static regex and keyword tables shared by the analyzers.
//
// The tables live in an embedded YAML document so they can be versioned,
// reviewed and replaced without touching matching logic.
package patterns

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/legalscan/internal/model"
)

//go:embed patterns.yaml
var embedded []byte

// Term is a legal vocabulary entry matched as a whole word
type Term struct {
	Word    string
	Pattern *regexp.Regexp
}

// DocumentType classifies a document by keyword presence
type DocumentType struct {
	Name string
	Any  []string
	All  []string
}

// Matches reports whether lowered text satisfies the keyword rules
func (d DocumentType) Matches(lowered string) bool {
	if len(d.All) > 0 {
		for _, kw := range d.All {
			if !strings.Contains(lowered, kw) {
				return false
			}
		}
		if len(d.Any) == 0 {
			return true
		}
	}
	for _, kw := range d.Any {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// ClauseCategory groups the patterns that identify one kind of suspicious clause
type ClauseCategory struct {
	Name        string
	Description string
	Level       model.RiskLevel
	Patterns    []*regexp.Regexp
}

// Rule pairs a pattern with the description of what it indicates
type Rule struct {
	Pattern     *regexp.Regexp
	Description string
}

// ConflictPair is a claim and the statement that contradicts it
type ConflictPair struct {
	Claim         *regexp.Regexp
	Contradiction *regexp.Regexp
	Description   string
}

// Library is the compiled, read-only pattern set
type Library struct {
	Version             int
	LegalTerms          []Term
	DatePatterns        []*regexp.Regexp
	PartyPatterns       []*regexp.Regexp
	PaymentPatterns     []*regexp.Regexp
	TerminationPatterns []*regexp.Regexp
	DocumentTypes       []DocumentType
	DefaultDocumentType string
	SuspiciousClauses   []ClauseCategory
	ScamKeywords        []string
	ScamStructures      []Rule
	UnusualRequests     []Rule
	Inconsistencies     []ConflictPair
	CompanyName         *regexp.Regexp
	ForgeryWording      []*regexp.Regexp
	SignatureCue        *regexp.Regexp
}

// document mirrors patterns.yaml
type document struct {
	Version             int      `yaml:"version"`
	LegalTerms          []string `yaml:"legal_terms"`
	DatePatterns        []string `yaml:"date_patterns"`
	PartyPatterns       []string `yaml:"party_patterns"`
	PaymentPatterns     []string `yaml:"payment_patterns"`
	TerminationPatterns []string `yaml:"termination_patterns"`
	DocumentTypes       []struct {
		Name string   `yaml:"name"`
		Any  []string `yaml:"any"`
		All  []string `yaml:"all"`
	} `yaml:"document_types"`
	DefaultDocumentType string `yaml:"default_document_type"`
	SuspiciousClauses   []struct {
		Category    string   `yaml:"category"`
		Description string   `yaml:"description"`
		RiskLevel   string   `yaml:"risk_level"`
		Patterns    []string `yaml:"patterns"`
	} `yaml:"suspicious_clauses"`
	ScamKeywords    []string   `yaml:"scam_keywords"`
	ScamStructures  []ruleSpec `yaml:"scam_structures"`
	UnusualRequests []ruleSpec `yaml:"unusual_requests"`
	Inconsistencies []struct {
		Claim         string `yaml:"claim"`
		Contradiction string `yaml:"contradiction"`
		Description   string `yaml:"description"`
	} `yaml:"inconsistencies"`
	CompanyName    string   `yaml:"company_name"`
	ForgeryWording []string `yaml:"forgery_wording"`
	SignatureCue   string   `yaml:"signature_cue"`
}

type ruleSpec struct {
	Pattern     string `yaml:"pattern"`
	Description string `yaml:"description"`
}

var (
	defaultOnce sync.Once
	defaultLib  *Library
	defaultErr  error
)

// Default returns the embedded library, compiled once per process
func Default() (*Library, error) {
	defaultOnce.Do(func() {
		defaultLib, defaultErr = Parse(embedded)
	})
	return defaultLib, defaultErr
}

// MustDefault is Default for callers that cannot proceed without patterns
func MustDefault() *Library {
	lib, err := Default()
	if err != nil {
		panic(fmt.Sprintf("embedded pattern library: %v", err))
	}
	return lib
}

// Load returns the library at path, or the embedded one when path is empty
func Load(path string) (*Library, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patterns file: %w", err)
	}
	lib, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("patterns file %s: %w", path, err)
	}
	return lib, nil
}

// Parse compiles a YAML pattern document
func Parse(data []byte) (*Library, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode patterns: %w", err)
	}
	if doc.Version <= 0 {
		return nil, fmt.Errorf("patterns document has no version")
	}

	c := &compiler{}
	lib := &Library{
		Version:             doc.Version,
		DatePatterns:        c.all("date_patterns", doc.DatePatterns, false),
		PartyPatterns:       c.all("party_patterns", doc.PartyPatterns, false),
		PaymentPatterns:     c.all("payment_patterns", doc.PaymentPatterns, false),
		TerminationPatterns: c.all("termination_patterns", doc.TerminationPatterns, false),
		DefaultDocumentType: doc.DefaultDocumentType,
		CompanyName:         c.one("company_name", doc.CompanyName, false),
		ForgeryWording:      c.all("forgery_wording", doc.ForgeryWording, true),
		SignatureCue:        c.one("signature_cue", doc.SignatureCue, true),
	}

	for _, term := range doc.LegalTerms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		lib.LegalTerms = append(lib.LegalTerms, Term{
			Word:    term,
			Pattern: c.one("legal_terms", `\b`+regexp.QuoteMeta(term)+`\b`, true),
		})
	}

	for _, dt := range doc.DocumentTypes {
		lib.DocumentTypes = append(lib.DocumentTypes, DocumentType{
			Name: dt.Name,
			Any:  lowerAll(dt.Any),
			All:  lowerAll(dt.All),
		})
	}
	if lib.DefaultDocumentType == "" {
		lib.DefaultDocumentType = "Legal Document"
	}

	for _, sc := range doc.SuspiciousClauses {
		lib.SuspiciousClauses = append(lib.SuspiciousClauses, ClauseCategory{
			Name:        sc.Category,
			Description: sc.Description,
			Level:       model.RiskLevel(strings.ToLower(sc.RiskLevel)),
			Patterns:    c.all("suspicious_clauses."+sc.Category, sc.Patterns, true),
		})
	}

	lib.ScamKeywords = lowerAll(doc.ScamKeywords)
	lib.ScamStructures = c.rules("scam_structures", doc.ScamStructures)
	lib.UnusualRequests = c.rules("unusual_requests", doc.UnusualRequests)

	for i, pair := range doc.Inconsistencies {
		section := fmt.Sprintf("inconsistencies[%d]", i)
		lib.Inconsistencies = append(lib.Inconsistencies, ConflictPair{
			Claim:         c.one(section, pair.Claim, true),
			Contradiction: c.one(section, pair.Contradiction, true),
			Description:   pair.Description,
		})
	}

	if c.err != nil {
		return nil, c.err
	}
	return lib, nil
}

// compiler records the first compile error so Parse can report it once
type compiler struct {
	err error
}

func (c *compiler) one(section, expr string, fold bool) *regexp.Regexp {
	if expr == "" {
		if c.err == nil {
			c.err = fmt.Errorf("%s: empty pattern", section)
		}
		return regexp.MustCompile(`$^`)
	}
	if fold {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		if c.err == nil {
			c.err = fmt.Errorf("%s: %w", section, err)
		}
		return regexp.MustCompile(`$^`)
	}
	return re
}

func (c *compiler) all(section string, exprs []string, fold bool) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		out = append(out, c.one(section, expr, fold))
	}
	return out
}

func (c *compiler) rules(section string, specs []ruleSpec) []Rule {
	out := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		out = append(out, Rule{
			Pattern:     c.one(section, spec.Pattern, true),
			Description: spec.Description,
		})
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
