package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/legalscan/internal/worker"
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Analyze multiple documents from a list file in parallel",
	Long: `Batch processes multiple documents concurrently:
- Read file paths and URLs from input file (one per line, # for comments)
- Analyze documents in parallel with configurable worker count
- Throttle remote documents per host
- Generate individual JSON and Markdown reports for each document

Example:
  legalscan batch contracts.txt
  legalscan batch contracts.txt --concurrency 8 --output-dir ./reports
  legalscan batch contracts.txt --concurrency 4 --deadline 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Concurrency flags
	batchCmd.Flags().Int("concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().String("output-dir", "./legalscan-reports", "output directory for reports")
	batchCmd.Flags().Duration("deadline", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().Bool("html", false, "also write an HTML report per document")
	batchCmd.Flags().Bool("no-footer", false, "disable footer in Markdown reports")
	batchCmd.Flags().Bool("no-save", false, "do not record reports in the history store")

	addAnalysisFlags(batchCmd)
	addLLMFlags(batchCmd.Flags())
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	keys := map[string]string{
		"concurrency": "concurrency.workers",
		"output-dir":  "output.dir",
	}
	for name, key := range analysisFlagKeys {
		keys[name] = key
	}
	cfg, err := commandConfig(cmd, keys)
	if err != nil {
		return err
	}
	noFooter, _ := cmd.Flags().GetBool("no-footer")
	cfg.Output.IncludeFooter = cfg.Output.IncludeFooter && !noFooter
	writeHTML, _ := cmd.Flags().GetBool("html")

	deadline, _ := cmd.Flags().GetDuration("deadline")
	ctx, cancel := context.WithTimeout(cmd.Context(), deadline)
	defer cancel()

	outputDir := cfg.Output.Dir
	workers := max(cfg.Concurrency.Workers, 1)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  legalscan Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Deadline:     %v\n", deadline)
	if cfg.LLM.Provider != "" {
		fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	fmt.Fprintf(os.Stderr, "\n")

	// Create output directory
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	noSave, _ := cmd.Flags().GetBool("no-save")
	p, closeStore, err := newPipeline(cfg, !noSave)
	if err != nil {
		return err
	}
	defer closeStore()

	processor := worker.NewBatchProcessor(p, workers, cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	fmt.Fprintf(os.Stderr, "⚙️  Reading sources from file...\n")
	sources, err := worker.ReadSourcesFromFile(file)
	if err != nil {
		return fmt.Errorf("read sources: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Loaded %d sources\n", len(sources))
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "⚙️  Analyzing with %d workers...\n", workers)
	fmt.Fprintf(os.Stderr, "\n")

	results := processor.ProcessSources(ctx, sources)

	successCount := 0
	failureCount := 0
	levels := make(map[string]int)
	renderer := p.Renderer()

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Source, result.Error)
			continue
		}

		report := result.Report
		base := filepath.Join(outputDir, fmt.Sprintf("%03d-%s", result.Index+1, sanitizeFilename(report.Filename)))

		if err := renderer.RenderJSON(report, base+".json"); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Source, err)
			continue
		}
		if err := renderer.RenderMarkdown(report, base+".md"); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.Source, err)
			continue
		}
		if writeHTML {
			if err := renderer.RenderHTML(report, base+".html"); err != nil {
				failureCount++
				fmt.Fprintf(os.Stderr, "✗ %s: failed to write HTML: %v\n", result.Source, err)
				continue
			}
		}

		successCount++
		levels[string(report.RiskLevel)]++
		fmt.Fprintf(os.Stderr, "✓ %s (risk: %s, forgery %.2f, scam %.2f)\n",
			result.Source, report.RiskLevel, report.RiskScores.ForgeryRisk, report.RiskScores.ScamRisk)
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d documents\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d (High %d, Medium %d, Low %d)\n",
		successCount, levels["High"], levels["Medium"], levels["Low"])
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 && successCount == 0 {
		return fmt.Errorf("all %d documents failed", failureCount)
	}
	return nil
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "-",
)

// sanitizeFilename turns a document name or URL into a safe file stem
func sanitizeFilename(s string) string {
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndexAny(s, "/\\"); i >= 0 && i < len(s)-1 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(s, filepath.Ext(s))
	s = filenameReplacer.Replace(s)
	s = strings.Trim(s, ".-_")
	if s == "" {
		s = "document"
	}

	// Limit length on a rune boundary
	if r := []rune(s); len(r) > 100 {
		s = string(r[:100])
	}
	return s
}
