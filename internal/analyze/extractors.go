package analyze

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/legalscan/internal/model"
	"github.com/ppiankov/legalscan/internal/nlp"
)

// clauseTitle takes the first capitalized sentence, skipping a leading section number
var clauseTitle = regexp.MustCompile(`^(?:\d+\.?\s*)?([A-Z][^.!?]*)[.!?]`)

// ExtractDates returns recognized DATE spans followed by regex date matches
// Duplicates are removed, first occurrence wins
func (a *Analyzer) ExtractDates(doc *Document) []string {
	var dates []string
	for _, span := range doc.Spans {
		if span.Label == nlp.LabelDate {
			dates = append(dates, span.Text)
		}
	}
	for _, re := range a.lib.DatePatterns {
		dates = append(dates, re.FindAllString(doc.Text, -1)...)
	}
	return dedupe(dates)
}

// ExtractParties returns recognized people and organizations followed by
// role-phrase captures
// A "between X and Y" phrase yields both X and Y as separate parties, and
// each may also appear under its recognized label; the first label seen wins
func (a *Analyzer) ExtractParties(doc *Document) []model.Entity {
	var found []model.Entity
	for _, span := range doc.Spans {
		switch span.Label {
		case nlp.LabelPerson:
			found = append(found, model.Entity{Text: span.Text, Label: model.LabelPerson})
		case nlp.LabelOrg:
			found = append(found, model.Entity{Text: span.Text, Label: model.LabelOrg})
		}
	}

	for _, re := range a.lib.PartyPatterns {
		for _, m := range re.FindAllStringSubmatch(doc.Text, -1) {
			groups := m[1:]
			if len(groups) == 0 {
				groups = m[:1]
			}
			for _, g := range groups {
				found = append(found, model.Entity{Text: strings.TrimSpace(g), Label: model.LabelParty})
			}
		}
	}

	seen := make(map[string]bool, len(found))
	parties := make([]model.Entity, 0, len(found))
	for _, e := range found {
		if seen[e.Text] || utf8.RuneCountInString(e.Text) < 2 {
			continue
		}
		seen[e.Text] = true
		parties = append(parties, e)
	}
	return parties
}

// ExtractKeyClauses ranks paragraphs by the number of distinct legal terms they use
func (a *Analyzer) ExtractKeyClauses(doc *Document) []model.KeyClause {
	var clauses []model.KeyClause

	for _, paragraph := range paragraphBreak.Split(doc.Text, -1) {
		paragraph = strings.TrimSpace(paragraph)
		if utf8.RuneCountInString(paragraph) < a.th.MinParagraphChars {
			continue
		}

		score := 0
		for _, term := range a.lib.LegalTerms {
			if term.Pattern.MatchString(paragraph) {
				score++
			}
		}
		if score < a.th.MinImportance {
			continue
		}

		title := "Key Clause"
		if m := clauseTitle.FindStringSubmatch(paragraph); m != nil {
			title = strings.TrimSpace(m[1])
		}

		clauses = append(clauses, model.KeyClause{
			Title:      title,
			Content:    truncate(paragraph, a.th.ClauseContentChars),
			Importance: score,
		})
	}

	sort.SliceStable(clauses, func(i, j int) bool {
		return clauses[i].Importance > clauses[j].Importance
	})

	if len(clauses) > a.th.MaxKeyClauses {
		clauses = clauses[:a.th.MaxKeyClauses]
	}
	return clauses
}

// ExtractPaymentTerms returns sentences mentioning amounts, fees and deadlines
func (a *Analyzer) ExtractPaymentTerms(doc *Document) []string {
	return a.sentences(doc, a.lib.PaymentPatterns)
}

// ExtractTerminationClauses returns sentences about ending the agreement
func (a *Analyzer) ExtractTerminationClauses(doc *Document) []string {
	return a.sentences(doc, a.lib.TerminationPatterns)
}

func (a *Analyzer) sentences(doc *Document, res []*regexp.Regexp) []string {
	var out []string
	for _, re := range res {
		out = append(out, re.FindAllString(doc.Text, -1)...)
	}
	return dedupe(out)
}

// truncate shortens s to n runes including a trailing ellipsis
func truncate(s string, n int) string {
	if n <= 3 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return clip(s, n-3) + "..."
}

// dedupe removes repeated strings keeping first-seen order
func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
