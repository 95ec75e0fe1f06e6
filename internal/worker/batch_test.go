package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/legalscan/internal/model"
)

// MockAnalyzer implements Analyzer
type MockAnalyzer struct {
	ShouldError bool

	mu    sync.Mutex
	files []string
	urls  []string
}

func (m *MockAnalyzer) AnalyzeFile(ctx context.Context, path, name string) (*model.Report, error) {
	m.mu.Lock()
	m.files = append(m.files, path)
	m.mu.Unlock()
	return m.result(path)
}

func (m *MockAnalyzer) AnalyzeURL(ctx context.Context, rawURL string) (*model.Report, error) {
	m.mu.Lock()
	m.urls = append(m.urls, rawURL)
	m.mu.Unlock()
	return m.result(rawURL)
}

func (m *MockAnalyzer) result(source string) (*model.Report, error) {
	time.Sleep(10 * time.Millisecond) // Simulate work
	if m.ShouldError {
		return nil, errors.New("analysis error")
	}
	return &model.Report{
		ID:        "id-" + filepath.Base(source),
		Filename:  source,
		RiskLevel: model.LevelLow,
	}, nil
}

func writeList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.txt")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchProcessor_ProcessSources(t *testing.T) {
	analyzer := &MockAnalyzer{}
	processor := NewBatchProcessor(analyzer, 2, 0, 0)

	sources := []string{"http://example.com/a.pdf", "contracts/lease.docx", "https://docs.example.org/nda.pdf", "scan.png"}
	results := processor.ProcessSources(context.Background(), sources)

	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}

	for i, res := range results {
		if res.Source != sources[i] {
			t.Errorf("expected result %d for %s, got %s", i, sources[i], res.Source)
		}
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.Source, res.Error)
		}
		if res.Report == nil {
			t.Error("expected report for successful analysis")
		}
	}

	if len(analyzer.urls) != 2 || len(analyzer.files) != 2 {
		t.Errorf("expected 2 URL and 2 file analyses, got %d and %d", len(analyzer.urls), len(analyzer.files))
	}
}

func TestBatchProcessor_ProcessSources_Error(t *testing.T) {
	processor := NewBatchProcessor(&MockAnalyzer{ShouldError: true}, 2, 0, 0)

	results := processor.ProcessSources(context.Background(), []string{"http://example.com"})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Error == nil {
		t.Error("expected error, got nil")
	}
	if results[0].Report != nil {
		t.Error("expected nil report on error")
	}
}

func TestBatchProcessor_ProcessSources_Empty(t *testing.T) {
	processor := NewBatchProcessor(&MockAnalyzer{}, 2, 0, 0)

	results := processor.ProcessSources(context.Background(), []string{})
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_ManySources(t *testing.T) {
	// More jobs than the queue and result buffers hold together
	processor := NewBatchProcessor(&MockAnalyzer{}, 2, 0, 0)

	var sources []string
	for i := 0; i < 25; i++ {
		sources = append(sources, filepath.Join("docs", string(rune('a'+i))+".txt"))
	}

	done := make(chan []*AnalysisResult)
	go func() { done <- processor.ProcessSources(context.Background(), sources) }()

	select {
	case results := <-done:
		if len(results) != len(sources) {
			t.Errorf("expected %d results, got %d", len(sources), len(results))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("batch processing blocked")
	}
}

func TestBatchProcessor_RateLimitedURLs(t *testing.T) {
	processor := NewBatchProcessor(&MockAnalyzer{}, 4, 20, 1)
	if processor.limiter == nil {
		t.Fatal("expected limiter when requests per second is set")
	}

	start := time.Now()
	results := processor.ProcessSources(context.Background(), []string{
		"http://example.com/1.pdf", "http://example.com/2.pdf", "http://example.com/3.pdf",
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	// Burst 1 at 20 rps: the third request waits at least two refills
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("expected throttling, batch finished in %v", elapsed)
	}
}

func TestBatchProcessor_CancelledContext(t *testing.T) {
	processor := NewBatchProcessor(&MockAnalyzer{}, 1, 0.001, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := processor.ProcessSources(ctx, []string{"http://example.com/1.pdf"})
	for _, res := range results {
		if res.Error == nil && res.Report == nil {
			t.Error("expected either an error or a report")
		}
	}
}

func TestReadSourcesFromFile(t *testing.T) {
	content := `http://example.com/lease.pdf
# comment
./contracts/nda.docx
   
https://docs.example.org/offer.html   `

	sources, err := ReadSourcesFromFile(writeList(t, content))
	if err != nil {
		t.Fatalf("ReadSourcesFromFile failed: %v", err)
	}

	expected := []string{"http://example.com/lease.pdf", "./contracts/nda.docx", "https://docs.example.org/offer.html"}
	if len(sources) != len(expected) {
		t.Fatalf("expected %d sources, got %d", len(expected), len(sources))
	}

	for i, source := range sources {
		if source != expected[i] {
			t.Errorf("expected source %s at index %d, got %s", expected[i], i, source)
		}
	}
}

func TestReadSourcesFromFile_NonExistent(t *testing.T) {
	_, err := ReadSourcesFromFile("non_existent_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestReadSourcesFromFile_Deduplication(t *testing.T) {
	sources, err := ReadSourcesFromFile(writeList(t, "lease.pdf\nlease.pdf\n"))
	if err != nil {
		t.Fatalf("ReadSourcesFromFile failed: %v", err)
	}

	if len(sources) != 1 {
		t.Errorf("expected 1 source after deduplication, got %d", len(sources))
	}
}

func TestAnalysisResult_GetError(t *testing.T) {
	r1 := &AnalysisResult{Source: "lease.pdf", Error: nil}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("analysis failed")
	r2 := &AnalysisResult{Source: "lease.pdf", Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	processor := NewBatchProcessor(&MockAnalyzer{}, 2, 0, 0)

	results, err := processor.ProcessFile(context.Background(), writeList(t, "a.pdf\nhttps://example.com/b.pdf\n# comment\n\nc.docx\n"))
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}

	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&MockAnalyzer{}, 2, 0, 0)

	_, err := processor.ProcessFile(context.Background(), "no_such_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestBatchProcessor_ProcessFile_Empty(t *testing.T) {
	processor := NewBatchProcessor(&MockAnalyzer{}, 2, 0, 0)

	results, err := processor.ProcessFile(context.Background(), writeList(t, ""))
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results for empty file, got %d", len(results))
	}
}

func TestIsURL(t *testing.T) {
	for source, want := range map[string]bool{
		"http://example.com/a.pdf": true,
		"HTTPS://example.com":      true,
		"./http/lease.pdf":         false,
		"ftp://example.com/a.pdf":  false,
	} {
		if got := IsURL(source); got != want {
			t.Errorf("IsURL(%q) = %v, want %v", source, got, want)
		}
	}
}
