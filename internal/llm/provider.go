package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/legalscan/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize writes a plain-language narrative of a finished report
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// SummarizeRequest contains the input for LLM summarization
type SummarizeRequest struct {
	// Report is the finished analysis; its scores are final
	Report model.Report

	// AllowedURLs are the only URLs the narrative may mention (strict mode)
	AllowedURLs []string

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// SummarizeResponse contains the LLM's summary output
type SummarizeResponse struct {
	Summary    string
	CitedURLs  []string // URLs found in the summary, checked against AllowedURLs
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai" or "" (disabled)
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI or a compatible endpoint
	APIKey string

	// BaseURL for OpenAI-compatible endpoints
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// Strict rejects narratives that cite URLs absent from the report
	Strict bool

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30,
		Strict:    true,
		MaxTokens: 800,
	}
}

// Alerts beyond this many per detector are summarized as a count
const promptAlertLimit = 10

// BuildPrompt constructs the default narrative prompt for a report
func BuildPrompt(report model.Report, allowedURLs []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are explaining an automated legal-document risk report to a non-lawyer. The report was produced by heuristics; it is indicative, not legal advice.

RULES:
1. The risk level and scores below are final. Do not change, re-score or dispute them.
2. Only discuss alerts listed below. Do not invent clauses, parties or amounts.
3. You may only cite these URLs:
%s
4. Do not give legal advice. Suggest professional review when the risk level is Medium or High.

Report:
- File: %s
- Risk level: %s
- Forgery risk: %.2f
- Scam risk: %.2f
`, joinURLs(allowedURLs), report.Filename, report.RiskLevel, report.RiskScores.ForgeryRisk, report.RiskScores.ScamRisk)

	if len(report.Summary) > 0 {
		b.WriteString("\nDocument summary:\n")
		for _, line := range report.Summary {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}

	writeAlerts(&b, "Forgery alerts", report.ForgeryAlerts)
	writeAlerts(&b, "Clause and scam alerts", report.ScamAlerts)

	if len(report.KeyTerms) > 0 {
		b.WriteString("\nKey clauses:\n")
		for _, term := range report.KeyTerms {
			fmt.Fprintf(&b, "- %s\n", term.Title)
		}
	}

	b.WriteString("\nWrite 3-5 sentences in Markdown explaining what the alerts mean for the reader.")
	return b.String()
}

func writeAlerts(b *strings.Builder, heading string, alerts []string) {
	if len(alerts) == 0 {
		fmt.Fprintf(b, "\n%s: none\n", heading)
		return
	}
	fmt.Fprintf(b, "\n%s (%d):\n", heading, len(alerts))
	for i, alert := range alerts {
		if i >= promptAlertLimit {
			fmt.Fprintf(b, "- ... and %d more\n", len(alerts)-promptAlertLimit)
			break
		}
		// Rendered alerts carry a second "Context:" line
		fmt.Fprintf(b, "- %s\n", strings.ReplaceAll(alert, "\n", " "))
	}
}

// Helper functions

func joinURLs(urls []string) string {
	if len(urls) == 0 {
		return "(none - do not cite any URL)"
	}
	result := ""
	for i, url := range urls {
		if i >= 20 { // Limit to first 20 to avoid token bloat
			result += fmt.Sprintf("\n... and %d more URLs", len(urls)-20)
			break
		}
		result += fmt.Sprintf("\n- %s", url)
	}
	return result
}

var urlPattern = regexp.MustCompile(`https?://[^\s\)"]+`)

// extractURLs extracts all URLs from text, deduplicated in order of appearance
func extractURLs(text string) []string {
	seen := make(map[string]bool)
	var unique []string
	for _, url := range urlPattern.FindAllString(text, -1) {
		url = strings.TrimRight(url, ".,;:!?")
		if !seen[url] {
			seen[url] = true
			unique = append(unique, url)
		}
	}
	return unique
}

// ReportURLs lists the URLs that appear anywhere in the report's own text
func ReportURLs(report model.Report) []string {
	var parts []string
	parts = append(parts, report.Filename)
	parts = append(parts, report.Summary...)
	parts = append(parts, report.ForgeryAlerts...)
	parts = append(parts, report.ScamAlerts...)
	for _, term := range report.KeyTerms {
		parts = append(parts, term.Content)
	}
	return extractURLs(strings.Join(parts, "\n"))
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
