// Package pipeline turns a document into a stored, rendered risk report.
//
// The text, forgery and scam analyzers run concurrently on the same immutable
// input and are merged into one model.Report. The optional LLM narrative is
// attached only after scoring.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/legalscan/internal/analyze"
	"github.com/ppiankov/legalscan/internal/extract"
	"github.com/ppiankov/legalscan/internal/forgery"
	"github.com/ppiankov/legalscan/internal/llm"
	"github.com/ppiankov/legalscan/internal/model"
	"github.com/ppiankov/legalscan/internal/nlp"
	"github.com/ppiankov/legalscan/internal/patterns"
	"github.com/ppiankov/legalscan/internal/scam"
	"github.com/ppiankov/legalscan/internal/score"
	"github.com/ppiankov/legalscan/internal/store"
	"github.com/ppiankov/legalscan/internal/tone"
	"github.com/ppiankov/legalscan/internal/util"
)

// ErrEmptyText is returned when a document has no text to analyze
var ErrEmptyText = fmt.Errorf("document is empty: %w", extract.ErrNoText)

// Pipeline orchestrates extraction, analysis, scoring and persistence
type Pipeline struct {
	extractor  *extract.Extractor
	fetcher    *Fetcher
	text       *analyze.Analyzer
	forgery    *forgery.Detector
	scam       *scam.Detector
	scorer     *score.Scorer
	tone       *tone.Analyzer  // nil when tone is disabled
	summarizer *llm.Summarizer // Optional LLM summarizer (nil if disabled)
	store      store.ReportStore
	renderer   *Renderer
	config     *model.Config
}

// Option customizes a pipeline
type Option func(*Pipeline)

// WithStore persists every finished report
func WithStore(s store.ReportStore) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithExtractor replaces the command-line backed extractor
func WithExtractor(e *extract.Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithSummarizer replaces the summarizer built from configuration
func WithSummarizer(s *llm.Summarizer) Option {
	return func(p *Pipeline) { p.summarizer = s }
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, opts ...Option) (*Pipeline, error) {
	// 1. Pattern tables
	lib, err := loadPatterns(cfg.Analysis.PatternsFile)
	if err != nil {
		return nil, err
	}

	// 2. Entity recognizer
	ner, err := nlp.New(cfg.Analysis.NLP)
	if err != nil {
		return nil, err
	}

	fetcher := NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes,
		cfg.HTTP.InsecureTLS, cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)
	if cfg.HTTP.RespectRobots {
		fetcher.RespectRobots(util.NewRobotsChecker(fetcher.httpClient, cfg.HTTP.UserAgent, time.Hour))
	}

	p := &Pipeline{
		extractor: extract.New(cfg.Extract),
		fetcher:   fetcher,
		text:      analyze.New(lib, ner, cfg.Thresholds.Text, cfg.Analysis.MaxTextChars),
		forgery:   forgery.NewDetector(lib, cfg.Thresholds, cfg.Forgery),
		scam:      scam.NewDetector(lib, cfg.Thresholds),
		scorer:    score.NewScorer(cfg.Thresholds),
		renderer:  NewRenderer(cfg.Output.IncludeFooter),
		config:    cfg,
	}
	if cfg.Analysis.Tone {
		p.tone = tone.New()
	}

	// 3. LLM summarizer if configured; a broken provider only loses the narrative
	if cfg.LLM.Provider != "" {
		s, err := llm.NewSummarizer(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
		if err != nil {
			slog.Warn("failed to initialize LLM provider", slog.Any("error", err))
		} else {
			p.summarizer = s
		}
	}

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func loadPatterns(path string) (*patterns.Library, error) {
	if path == "" {
		return patterns.Default()
	}
	lib, err := patterns.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	return lib, nil
}

// Renderer returns the pipeline's report renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// AnalyzeFile extracts and analyzes the document at path
// name is recorded as the report's filename; empty uses the base name of path.
func (p *Pipeline) AnalyzeFile(ctx context.Context, path, name string) (*model.Report, error) {
	if name == "" {
		name = filepath.Base(path)
	}

	res, err := p.extractor.Extract(ctx, path)
	if errors.Is(err, extract.ErrNoText) {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyText)
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := res.Close(); err != nil {
			slog.Warn("failed to remove extraction files", slog.Any("error", err))
		}
	}()

	return p.Analyze(ctx, name, res.Input())
}

// AnalyzeURL downloads a remote document and analyzes it
func (p *Pipeline) AnalyzeURL(ctx context.Context, rawURL string) (*model.Report, error) {
	fetched, err := p.fetcher.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	dir, err := os.MkdirTemp("", "legalscan-fetch-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	path := filepath.Join(dir, filepath.Base(fetched.Filename))
	if err := os.WriteFile(path, fetched.Body, 0o600); err != nil {
		return nil, fmt.Errorf("write fetched document: %w", err)
	}

	return p.AnalyzeFile(ctx, path, fetched.FinalURL)
}

// Analyze runs the analyzers on prepared input and assembles the report
func (p *Pipeline) Analyze(ctx context.Context, name string, input model.AnalysisInput) (*model.Report, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyText)
	}
	start := time.Now()

	// 1. Run the independent analyzers concurrently
	var (
		wg         sync.WaitGroup
		text       model.TextAnalysis
		forgeryRes model.DetectorResult
		scamRes    model.DetectorResult
		toneRes    *model.Tone
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		text = p.text.Analyze(input.Text)
	}()
	go func() {
		defer wg.Done()
		forgeryRes = p.forgery.Detect(ctx, input)
	}()
	go func() {
		defer wg.Done()
		scamRes = p.scam.Detect(input.Text)
	}()
	if p.tone != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			toneRes = p.tone.Analyze(input.Text)
		}()
	}
	wg.Wait()

	// 2. Combine scores
	scores := model.RiskScores{ForgeryRisk: forgeryRes.RiskScore, ScamRisk: scamRes.RiskScore}
	level, combined := p.scorer.Combine(scores)

	signals := append([]model.Signal{}, forgeryRes.Signals...)
	signals = append(signals, scamRes.Signals...)
	signals = append(signals, combined)

	// 3. Build report (without LLM summary yet)
	report := &model.Report{
		ID:            uuid.NewString(),
		Filename:      name,
		Kind:          input.Kind,
		Summary:       nonEmpty(text.Summary),
		KeyTerms:      nonEmpty(text.KeyTerms),
		ForgeryAlerts: nonEmpty(forgeryRes.Messages),
		ScamAlerts:    nonEmpty(scamRes.Messages),
		RiskScores:    scores,
		RiskLevel:     level,
		Tone:          toneRes,
		Findings: &model.Findings{
			ForgeryAlerts: forgeryRes.Alerts,
			ScamAlerts:    scamRes.Alerts,
			Signals:       signals,
			Parties:       text.Parties,
			Dates:         text.Dates,
			DocumentType:  text.DocumentType,
			WordCount:     text.WordCount,
		},
	}

	// 4. Generate LLM summary if enabled (AFTER scoring, never affects score)
	if p.summarizer.IsEnabled() {
		summary, err := p.summarizer.GenerateSummary(ctx, *report)
		if err != nil {
			slog.Warn("LLM summary generation failed", slog.Any("error", err))
		} else {
			report.LLM = summary
		}
	}

	report.ProcessingTime = time.Since(start).Seconds()
	report.CreatedAt = time.Now().UTC()

	// 5. Persist; a failed save keeps the report and marks it unsaved
	if p.store != nil {
		if err := p.store.Save(ctx, report); err != nil {
			slog.Error("report generated but could not be saved",
				slog.String("id", report.ID), slog.String("file", name), slog.Any("error", err))
			report.Findings.Signals = append(report.Findings.Signals, model.Signal{
				Type:        model.SignalSaveFailure,
				Severity:    model.SeverityWarning,
				Description: "Report generated but could not be saved to the history store",
				Data:        map[string]interface{}{"error": err.Error()},
			})
		}
	}

	slog.Info("analysis completed",
		slog.String("id", report.ID),
		slog.String("file", name),
		slog.String("risk_level", string(report.RiskLevel)),
		slog.Float64("forgery_risk", scores.ForgeryRisk),
		slog.Float64("scam_risk", scores.ScamRisk),
		slog.Duration("elapsed", time.Since(start)))

	return report, nil
}

// RenderReport renders the report to the specified outputs
// Empty paths are skipped; the terminal summary is always printed.
func (p *Pipeline) RenderReport(report *model.Report, jsonPath, mdPath, htmlPath string, verbose bool) error {
	// Render JSON
	if jsonPath != "" {
		if err := p.renderer.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	// Render Markdown
	if mdPath != "" {
		if err := p.renderer.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	// Render HTML
	if htmlPath != "" {
		if err := p.renderer.RenderHTML(report, htmlPath); err != nil {
			return fmt.Errorf("render HTML: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote HTML: %s\n", htmlPath)
		}
	}

	// Render LLM summary to separate file if present
	if report.LLM != nil && report.LLM.Enabled && mdPath != "" {
		llmMdPath := strings.TrimSuffix(mdPath, ".md") + ".llm.md"
		if err := p.renderer.RenderLLMMarkdown(llm.RenderSeparateMarkdown(report.LLM), llmMdPath); err != nil {
			slog.Warn("failed to write LLM summary", slog.Any("error", err))
		} else if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote LLM Summary: %s\n", llmMdPath)
		}
	}

	p.renderer.RenderSummary(report)
	return nil
}

// nonEmpty keeps empty sections as [] rather than null in JSON output
func nonEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
