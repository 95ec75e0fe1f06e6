package scam

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/legalscan/internal/model"
)

// SuspiciousClauses scans the clause library
// Only the first match of each pattern is reported, with its enclosing sentence
// as context. Alerts whose normalized context was already seen are dropped.
func (d *Detector) SuspiciousClauses(text string) []model.Alert {
	var found []model.Alert
	for _, category := range d.lib.SuspiciousClauses {
		for _, re := range category.Patterns {
			loc := re.FindStringIndex(text)
			if loc == nil {
				continue
			}
			found = append(found, model.Alert{
				Kind:        model.AlertSuspiciousClause,
				Category:    category.Name,
				Description: category.Description,
				Level:       category.Level,
				Context:     sentenceAround(text, loc[0], loc[1], d.th.ContextFallback),
			})
		}
	}

	seen := make(map[string]bool, len(found))
	unique := make([]model.Alert, 0, len(found))
	for _, a := range found {
		key := normalize(a.Context)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, a)
	}
	return unique
}

// ScamTemplates looks for known scam vocabulary and rhetorical structures
func (d *Detector) ScamTemplates(text string) []model.Alert {
	var alerts []model.Alert

	lowered := strings.ToLower(text)
	count := 0
	for _, kw := range d.lib.ScamKeywords {
		if strings.Contains(lowered, kw) {
			count++
		}
	}
	if count >= d.th.MinKeywords {
		alerts = append(alerts, model.Alert{
			Kind:        model.AlertScamTemplate,
			Description: fmt.Sprintf("Document contains multiple phrases commonly found in scam communications (%d suspicious terms detected)", count),
			Level:       model.RiskHigh,
			Context:     "Multiple suspicious terms detected throughout the document",
		})
	}

	for _, rule := range d.lib.ScamStructures {
		if rule.Pattern.MatchString(text) {
			alerts = append(alerts, model.Alert{
				Kind:        model.AlertScamStructure,
				Description: "Document contains language pattern common in scams: " + rule.Description,
				Level:       model.RiskHigh,
				Context:     "Suspicious language pattern detected",
			})
		}
	}
	return alerts
}

// UnusualRequests flags requests for money, codes or secrecy
func (d *Detector) UnusualRequests(text string) []model.Alert {
	var alerts []model.Alert
	for _, rule := range d.lib.UnusualRequests {
		loc := rule.Pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		alerts = append(alerts, model.Alert{
			Kind:        model.AlertUnusualRequest,
			Description: "Document contains suspicious request: " + rule.Description,
			Level:       model.RiskHigh,
			Context:     window(text, loc[0], loc[1], d.th.ContextWindow),
		})
	}
	return alerts
}

// Inconsistencies flags contradictory claims and documents naming several companies
func (d *Detector) Inconsistencies(text string) []model.Alert {
	var alerts []model.Alert
	for _, pair := range d.lib.Inconsistencies {
		if pair.Claim.MatchString(text) && pair.Contradiction.MatchString(text) {
			alerts = append(alerts, model.Alert{
				Kind:        model.AlertInconsistency,
				Description: pair.Description,
				Level:       model.RiskMedium,
				Context:     "Inconsistent terms detected in document",
			})
		}
	}

	names := d.lib.CompanyName.FindAllString(text, -1)
	if len(names) < d.th.CompanyMinCount {
		return alerts
	}

	counts := make(map[string]int, len(names))
	var order []string
	for _, name := range names {
		if counts[name] == 0 {
			order = append(order, name)
		}
		counts[name]++
	}

	var significant []string
	for _, name := range order {
		if counts[name] >= d.th.CompanyMinCount {
			significant = append(significant, name)
		}
	}
	if len(significant) >= d.th.CompanyMinNames {
		if len(significant) > 3 {
			significant = significant[:3]
		}
		alerts = append(alerts, model.Alert{
			Kind:        model.AlertInconsistency,
			Description: "Document references multiple different company names: " + strings.Join(significant, ", "),
			Level:       model.RiskMedium,
			Context:     "Multiple company names may indicate document has been altered",
		})
	}
	return alerts
}

// sentenceAround returns the sentence holding text[start:end]
// The sentence opens after the last period before the match (or the last
// newline when there is none) and closes before the next period. Without a
// closing period, fallback bytes after the match are taken.
func sentenceAround(text string, start, end, fallback int) string {
	from := strings.LastIndexByte(text[:start], '.') + 1
	if from == 0 {
		from = strings.LastIndexByte(text[:start], '\n') + 1
	}

	to := strings.IndexByte(text[end:], '.')
	if to >= 0 {
		to += end
	} else {
		to = floorRune(text, min(len(text), end+fallback))
	}
	return strings.TrimSpace(text[from:to])
}

// window returns the match with up to n bytes either side, cut at rune boundaries
func window(text string, start, end, n int) string {
	from := ceilRune(text, max(0, start-n))
	to := floorRune(text, min(len(text), end+n))
	return strings.TrimSpace(text[from:to])
}

func floorRune(text string, i int) int {
	for i > 0 && i < len(text) && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

func ceilRune(text string, i int) int {
	for i < len(text) && !utf8.RuneStart(text[i]) {
		i++
	}
	return i
}

// normalize folds case and collapses whitespace for context comparison
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
