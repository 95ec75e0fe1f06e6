package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/legalscan/internal/model"
	"github.com/ppiankov/legalscan/internal/pipeline"
	"github.com/ppiankov/legalscan/internal/store"
	"github.com/ppiankov/legalscan/internal/worker"
)

// Flags shared by analyze and batch, mapped to their config keys
var analysisFlagKeys = map[string]string{
	"timeout":   "http.timeout",
	"ua":        "http.user_agent",
	"max-bytes": "http.max_body_bytes",
	"insecure":  "http.insecure_tls",
	"nlp":       "analysis.nlp",
	"patterns":  "analysis.patterns_file",
}

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|url>",
	Short: "Analyze a single document and generate a risk report",
	Long: `Analyze reads one document (PDF, DOCX, image, HTML or text, local or remote) to:
- Extract its text, key clauses, parties and dates
- Check layout, images and metadata for signs of forgery
- Flag clauses and wording common in scams or unfair contracts
- Combine both into a Low / Medium / High risk level

Example:
  legalscan analyze lease.pdf
  legalscan analyze contract.docx --json report.json --md report.md --html report.html
  legalscan analyze https://example.com/terms --llm --llm-model gpt-4o-mini`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Output flags
	analyzeCmd.Flags().String("json", "report.json", "output JSON path (empty to skip)")
	analyzeCmd.Flags().String("md", "", "output Markdown path (optional)")
	analyzeCmd.Flags().String("html", "", "output HTML path (optional)")
	analyzeCmd.Flags().Bool("no-footer", false, "disable footer in Markdown reports")
	analyzeCmd.Flags().Bool("no-save", false, "do not record the report in the history store")
	analyzeCmd.Flags().Duration("deadline", 5*time.Minute, "overall analysis timeout")

	addAnalysisFlags(analyzeCmd)
	addLLMFlags(analyzeCmd.Flags())
}

// addAnalysisFlags registers the fetch and analyzer flags
func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("timeout", 30*time.Second, "HTTP timeout for remote documents")
	cmd.Flags().String("ua", "", "HTTP User-Agent")
	cmd.Flags().Int64("max-bytes", 10<<20, "max response bytes to read from remote documents")
	cmd.Flags().Bool("insecure", false, "skip TLS certificate verification (use for self-signed certs)")
	cmd.Flags().String("nlp", "prose", "entity recognizer (prose, rules)")
	cmd.Flags().String("patterns", "", "YAML pattern library replacing the built-in one")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	source := args[0]

	cfg, err := commandConfig(cmd, analysisFlagKeys)
	if err != nil {
		return err
	}
	noFooter, _ := cmd.Flags().GetBool("no-footer")
	cfg.Output.IncludeFooter = cfg.Output.IncludeFooter && !noFooter

	deadline, _ := cmd.Flags().GetDuration("deadline")
	ctx, cancel := context.WithTimeout(cmd.Context(), deadline)
	defer cancel()

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Analyzing: %s\n", source)
		fmt.Fprintf(os.Stderr, "Recognizer: %s\n", cfg.Analysis.NLP)
		fmt.Fprintln(os.Stderr)
	}

	noSave, _ := cmd.Flags().GetBool("no-save")
	p, closeStore, err := newPipeline(cfg, !noSave)
	if err != nil {
		return err
	}
	defer closeStore()

	report, err := analyzeSource(ctx, p, source)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "✓ Found %d key clauses\n", len(report.KeyTerms))
		fmt.Fprintf(os.Stderr, "✓ Raised %d forgery and %d scam alerts\n", len(report.ForgeryAlerts), len(report.ScamAlerts))
		if report.LLM != nil && report.LLM.Enabled {
			fmt.Fprintf(os.Stderr, "✓ Generated LLM summary using %s/%s\n", report.LLM.Provider, report.LLM.Model)
		}
		fmt.Fprintln(os.Stderr)
	}

	jsonPath, _ := cmd.Flags().GetString("json")
	mdPath, _ := cmd.Flags().GetString("md")
	htmlPath, _ := cmd.Flags().GetString("html")
	if err := p.RenderReport(report, jsonPath, mdPath, htmlPath, cfg.Output.Verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	return nil
}

func analyzeSource(ctx context.Context, p *pipeline.Pipeline, source string) (*model.Report, error) {
	if worker.IsURL(source) {
		return p.AnalyzeURL(ctx, source)
	}
	return p.AnalyzeFile(ctx, source, source)
}

// newPipeline builds the pipeline, recording reports in the history store when save is set
// A store that cannot be opened only costs the history entry.
func newPipeline(cfg *model.Config, save bool) (*pipeline.Pipeline, func(), error) {
	var opts []pipeline.Option
	closeStore := func() {}

	if save {
		reports, err := store.Open(cfg.Store)
		if err != nil {
			slog.Warn("report history disabled", slog.Any("error", err))
		} else {
			opts = append(opts, pipeline.WithStore(reports))
			closeStore = func() {
				if err := reports.Close(); err != nil {
					slog.Warn("failed to close report store", slog.Any("error", err))
				}
			}
		}
	}

	p, err := pipeline.NewPipeline(cfg, opts...)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("create pipeline: %w", err)
	}
	return p, closeStore, nil
}
