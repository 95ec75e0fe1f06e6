package pipeline

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/russross/blackfriday/v2"

	"github.com/ppiankov/legalscan/internal/model"
)

const disclaimer = "Alerts are heuristic indicators, not legal advice. Have important documents reviewed by a qualified professional."

// Renderer writes reports as JSON, Markdown, HTML and a terminal summary
type Renderer struct {
	includeFooter bool
	out           io.Writer
}

// NewRenderer creates a renderer; the terminal summary goes to stderr
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter, out: os.Stderr}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the report as Markdown
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// RenderHTML writes the Markdown report converted to a standalone HTML page
func (r *Renderer) RenderHTML(report *model.Report, path string) error {
	return writeFile(path, r.HTML(report))
}

// RenderLLMMarkdown writes the separate narrative document
func (r *Renderer) RenderLLMMarkdown(markdown, path string) error {
	return writeFile(path, []byte(markdown))
}

// Markdown renders the report body
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Document Risk Report: %s\n\n", report.Filename)
	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Report ID | `%s` |\n", report.ID)
	fmt.Fprintf(&b, "| Source | %s |\n", report.Kind)
	fmt.Fprintf(&b, "| Analyzed | %s |\n", report.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "| Processing time | %.2fs |\n", report.ProcessingTime)
	fmt.Fprintf(&b, "| **Risk level** | **%s** |\n", report.RiskLevel)
	fmt.Fprintf(&b, "| Forgery risk | %.2f |\n", report.RiskScores.ForgeryRisk)
	fmt.Fprintf(&b, "| Scam risk | %.2f |\n", report.RiskScores.ScamRisk)
	if report.Tone != nil {
		fmt.Fprintf(&b, "| Tone | %s (%.2f) |\n", report.Tone.Label, report.Tone.Compound)
	}

	b.WriteString("\n## Summary\n\n")
	writeList(&b, report.Summary, "_No summary available._")

	b.WriteString("\n## Key Terms\n\n")
	if len(report.KeyTerms) == 0 {
		b.WriteString("_No key clauses identified._\n")
	}
	for _, term := range report.KeyTerms {
		fmt.Fprintf(&b, "### %s\n\n%s\n\n", term.Title, term.Content)
	}

	b.WriteString("\n## Forgery Alerts\n\n")
	writeList(&b, report.ForgeryAlerts, "_No forgery indicators found._")

	b.WriteString("\n## Clause and Scam Alerts\n\n")
	writeList(&b, report.ScamAlerts, "_No suspicious clauses found._")

	if report.Findings != nil && len(report.Findings.Signals) > 0 {
		b.WriteString("\n## Scoring Signals\n\n")
		b.WriteString("| Signal | Severity | Description |\n|---|---|---|\n")
		for _, s := range report.Findings.Signals {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", s.Type, s.Severity, s.Description)
		}
	}

	if report.LLM != nil && report.LLM.Enabled {
		b.WriteString("\n_An LLM narrative was generated separately and does not affect these scores._\n")
	}

	if r.includeFooter {
		fmt.Fprintf(&b, "\n---\n\n_%s_\n", disclaimer)
	}
	return b.String()
}

// HTML renders the Markdown report as a standalone page
func (r *Renderer) HTML(report *model.Report) []byte {
	body := blackfriday.Run([]byte(r.Markdown(report)))

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>Risk Report: %s</title>\n", html.EscapeString(report.Filename))
	b.WriteString("<style>body{font-family:sans-serif;max-width:50rem;margin:2rem auto;line-height:1.5}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.25rem .5rem}</style>\n")
	b.WriteString("</head>\n<body>\n")
	b.Write(body)
	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}

// RenderSummary prints a short human-readable summary
func (r *Renderer) RenderSummary(report *model.Report) {
	w := r.out
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  %s\n", report.Filename)
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Risk level:     %s\n", report.RiskLevel)
	fmt.Fprintf(w, "  Forgery risk:   %.2f (%d alerts)\n", report.RiskScores.ForgeryRisk, len(report.ForgeryAlerts))
	fmt.Fprintf(w, "  Scam risk:      %.2f (%d alerts)\n", report.RiskScores.ScamRisk, len(report.ScamAlerts))
	fmt.Fprintf(w, "  Report ID:      %s\n", report.ID)
	fmt.Fprintf(w, "\n")

	for _, line := range report.Summary {
		fmt.Fprintf(w, "  %s\n", line)
	}
	if len(report.Summary) > 0 {
		fmt.Fprintf(w, "\n")
	}

	for _, alert := range report.ForgeryAlerts {
		fmt.Fprintf(w, "  ⚠ %s\n", alert)
	}
	for _, alert := range report.ScamAlerts {
		// Only the headline; the context line is in the full report
		headline, _, _ := strings.Cut(alert, "\n")
		fmt.Fprintf(w, "  ⚠ %s\n", strings.TrimSpace(headline))
	}
	if len(report.ForgeryAlerts)+len(report.ScamAlerts) == 0 {
		fmt.Fprintf(w, "  ✓ No alerts\n")
	}
	fmt.Fprintf(w, "\n")
}

func writeList(b *strings.Builder, items []string, empty string) {
	if len(items) == 0 {
		b.WriteString(empty + "\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", strings.ReplaceAll(item, "\n", "  \n  "))
	}
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
