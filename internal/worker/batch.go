package worker

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/legalscan/internal/model"
)

// Analyzer turns a local file or a remote URL into a report
type Analyzer interface {
	AnalyzeFile(ctx context.Context, path, name string) (*model.Report, error)
	AnalyzeURL(ctx context.Context, rawURL string) (*model.Report, error)
}

// AnalysisJob analyzes one source: a file path or an http(s) URL
type AnalysisJob struct {
	Index    int
	Source   string
	Analyzer Analyzer
	Limiter  *Limiter // Throttles URL sources per host; nil disables
}

// Execute executes the analysis job
func (j *AnalysisJob) Execute(ctx context.Context) Result {
	res := &AnalysisResult{Index: j.Index, Source: j.Source}

	if IsURL(j.Source) {
		if j.Limiter != nil {
			if err := j.Limiter.Wait(ctx, j.Source); err != nil {
				res.Error = fmt.Errorf("rate limit: %w", err)
				return res
			}
		}
		res.Report, res.Error = j.Analyzer.AnalyzeURL(ctx, j.Source)
	} else {
		res.Report, res.Error = j.Analyzer.AnalyzeFile(ctx, j.Source, "")
	}

	if res.Error != nil {
		slog.Warn("analysis failed", slog.String("source", j.Source), slog.Any("error", res.Error))
		res.Report = nil
	}
	return res
}

// AnalysisResult represents the result of an analysis job
type AnalysisResult struct {
	Index  int // Position of Source in the submitted list
	Source string
	Report *model.Report
	Error  error
}

// GetError returns the error from the analysis result
func (r *AnalysisResult) GetError() error {
	return r.Error
}

// BatchProcessor analyzes many documents concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
	limiter     *Limiter
}

// NewBatchProcessor creates a new batch processor
// A non-positive requestsPerSecond disables per-host throttling of URL sources.
func NewBatchProcessor(analyzer Analyzer, concurrency int, requestsPerSecond float64, burst int) *BatchProcessor {
	b := &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
	if requestsPerSecond > 0 {
		b.limiter = NewLimiter(requestsPerSecond, burst)
	}
	return b
}

// ProcessSources analyzes every source and returns results in input order
func (b *BatchProcessor) ProcessSources(ctx context.Context, sources []string) []*AnalysisResult {
	if len(sources) == 0 {
		return []*AnalysisResult{}
	}

	// Create worker pool
	pool := NewPoolContext(ctx, b.concurrency)
	pool.Start()

	// Submit jobs
	for i, source := range sources {
		pool.Submit(&AnalysisJob{
			Index:    i,
			Source:   source,
			Analyzer: b.analyzer,
			Limiter:  b.limiter,
		})
	}

	// Wait for all jobs to complete
	results := pool.Wait()

	analysisResults := make([]*AnalysisResult, 0, len(results))
	for _, result := range results {
		analysisResults = append(analysisResults, result.(*AnalysisResult))
	}
	sort.Slice(analysisResults, func(i, j int) bool {
		return analysisResults[i].Index < analysisResults[j].Index
	})

	return analysisResults
}

// ProcessFile reads sources from a list file and analyzes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*AnalysisResult, error) {
	sources, err := ReadSourcesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}

	return b.ProcessSources(ctx, sources), nil
}

// IsURL reports whether source should be fetched rather than opened
func IsURL(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// ReadSourcesFromFile reads file paths and URLs from a file (one per line)
func ReadSourcesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var sources []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Deduplicate sources
		if !seen[line] {
			seen[line] = true
			sources = append(sources, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return sources, nil
}
