package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/legalscan/internal/extract"
	"github.com/ppiankov/legalscan/internal/llm"
	"github.com/ppiankov/legalscan/internal/model"
	"github.com/ppiankov/legalscan/internal/store"
)

const scamContract = `SERVICE AGREEMENT

This Service Agreement is entered into between Acme Holdings LLC and Jane Doe on January 5, 2024.

I am the attorney of the late Mr. Smith, and you are the beneficiary to the late investor.
Please transfer funds to our account and pay an advance fee of $500 by wire transfer or bitcoin.
Do not tell anyone about this.

No fee will ever apply. However, a fee of $50 applies monthly.`

type stubProvider struct {
	calls int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) IsAvailable(ctx context.Context) bool { return true }

func (s *stubProvider) Summarize(ctx context.Context, req llm.SummarizeRequest) (*llm.SummarizeResponse, error) {
	s.calls++
	return &llm.SummarizeResponse{
		Summary:    fmt.Sprintf("This %s-risk document asks for an advance fee.", req.Report.RiskLevel),
		Model:      "stub-model",
		TokensUsed: 42,
	}, nil
}

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.Analysis.NLP = "rules"
	cfg.HTTP.RespectRobots = false
	return cfg
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func openStore(t *testing.T) *store.SQLStore {
	t.Helper()
	s, err := store.Open(model.StoreConfig{Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "reports.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAnalyzeFile_TextDocument(t *testing.T) {
	reports := openStore(t)
	p, err := NewPipeline(testConfig(), WithStore(reports))
	require.NoError(t, err)

	report, err := p.AnalyzeFile(context.Background(), writeDoc(t, "contract.txt", scamContract), "")
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "contract.txt", report.Filename)
	assert.Equal(t, model.SourceText, report.Kind)
	assert.NotEmpty(t, report.Summary)
	assert.NotEmpty(t, report.ScamAlerts)
	assert.GreaterOrEqual(t, report.RiskScores.ScamRisk, 0.25)
	assert.LessOrEqual(t, report.RiskScores.ScamRisk, 1.0)
	assert.GreaterOrEqual(t, report.RiskScores.ForgeryRisk, 0.0)
	assert.Equal(t, model.DefaultThresholds().Risk.RiskLevelFor(report.RiskScores.Max()), report.RiskLevel)
	assert.NotNil(t, report.Tone)
	assert.Nil(t, report.LLM)
	assert.False(t, report.CreatedAt.IsZero())

	require.NotNil(t, report.Findings)
	assert.Len(t, report.Findings.ScamAlerts, len(report.ScamAlerts))
	last := report.Findings.Signals[len(report.Findings.Signals)-1]
	assert.Equal(t, model.SignalCombinedRisk, last.Type)

	stored, err := reports.Get(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.ScamAlerts, stored.ScamAlerts)
	assert.Equal(t, report.RiskLevel, stored.RiskLevel)
}

func TestAnalyzeFile_EmptyDocument(t *testing.T) {
	p, err := NewPipeline(testConfig())
	require.NoError(t, err)

	_, err = p.AnalyzeFile(context.Background(), writeDoc(t, "blank.txt", "  \n\n "), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyText))
	assert.True(t, errors.Is(err, extract.ErrNoText))
}

func TestAnalyzeFile_UnsupportedInput(t *testing.T) {
	p, err := NewPipeline(testConfig())
	require.NoError(t, err)

	_, err = p.AnalyzeFile(context.Background(), writeDoc(t, "archive.zip", "PK"), "")
	assert.ErrorIs(t, err, extract.ErrUnsupportedInput)
}

func TestAnalyze_CleanDocumentIsLow(t *testing.T) {
	p, err := NewPipeline(testConfig())
	require.NoError(t, err)

	report, err := p.Analyze(context.Background(), "memo.txt", model.AnalysisInput{
		Text: "The parties met on Tuesday to discuss the schedule for the garden project.",
		Kind: model.SourceText,
	})
	require.NoError(t, err)

	assert.Equal(t, model.LevelLow, report.RiskLevel)
	assert.Empty(t, report.ForgeryAlerts)
	assert.Empty(t, report.ScamAlerts)
	assert.NotNil(t, report.ForgeryAlerts, "empty sections serialize as []")
}

func TestAnalyze_PDFMetadataAlert(t *testing.T) {
	p, err := NewPipeline(testConfig())
	require.NoError(t, err)

	report, err := p.Analyze(context.Background(), "deed.pdf", model.AnalysisInput{
		Text: "Deed of sale between the seller and the buyer.",
		Kind: model.SourcePDF,
		Metadata: &model.PDFMetadata{
			CreationDate: "D:20200101120000Z",
			ModDate:      "D:20190101120000Z",
		},
	})
	require.NoError(t, err)

	assert.Contains(t, report.ForgeryAlerts,
		"Document metadata shows modification date earlier than creation date, suggesting possible tampering.")
	assert.Greater(t, report.RiskScores.ForgeryRisk, 0.0)
}

func TestAnalyze_RejectsEmptyText(t *testing.T) {
	p, err := NewPipeline(testConfig())
	require.NoError(t, err)

	_, err = p.Analyze(context.Background(), "x.txt", model.AnalysisInput{Text: " ", Kind: model.SourceText})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestAnalyze_LLMNarrativeDoesNotChangeScores(t *testing.T) {
	provider := &stubProvider{}
	cfg := testConfig()

	withLLM, err := NewPipeline(cfg, WithSummarizer(llm.NewSummarizerWithProvider(provider, llm.Config{Strict: true})))
	require.NoError(t, err)
	without, err := NewPipeline(cfg)
	require.NoError(t, err)

	input := model.AnalysisInput{Text: scamContract, Kind: model.SourceText}
	a, err := withLLM.Analyze(context.Background(), "a.txt", input)
	require.NoError(t, err)
	b, err := without.Analyze(context.Background(), "a.txt", input)
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls)
	require.NotNil(t, a.LLM)
	assert.True(t, a.LLM.Enabled)
	assert.Contains(t, a.LLM.SummaryMD, string(a.RiskLevel))
	assert.Equal(t, b.RiskScores, a.RiskScores)
	assert.Equal(t, b.RiskLevel, a.RiskLevel)
	assert.Equal(t, b.ScamAlerts, a.ScamAlerts)
}

func TestAnalyzeURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<html><head><title>x</title></head><body><p>%s</p></body></html>",
			strings.ReplaceAll(scamContract, "\n\n", "</p><p>"))
	}))
	defer server.Close()

	p, err := NewPipeline(testConfig())
	require.NoError(t, err)

	report, err := p.AnalyzeURL(context.Background(), server.URL+"/offers/contract")
	require.NoError(t, err)

	assert.Equal(t, server.URL+"/offers/contract", report.Filename)
	assert.Equal(t, model.SourceHTML, report.Kind)
	assert.NotEmpty(t, report.ScamAlerts)
}

func TestAnalyzeURL_RobotsDisallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /\n")
			return
		}
		_, _ = fmt.Fprint(w, scamContract)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.HTTP.RespectRobots = true
	p, err := NewPipeline(cfg)
	require.NoError(t, err)

	_, err = p.AnalyzeURL(context.Background(), server.URL+"/contract.txt")
	assert.ErrorIs(t, err, ErrDisallowed)
}

func TestNewPipeline_BadPatternsFile(t *testing.T) {
	cfg := testConfig()
	cfg.Analysis.PatternsFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewPipeline(cfg)
	assert.Error(t, err)
}

func TestNewPipeline_UnknownRecognizer(t *testing.T) {
	cfg := testConfig()
	cfg.Analysis.NLP = "spacy"

	_, err := NewPipeline(cfg)
	assert.Error(t, err)
}

// failingStore refuses every write
type failingStore struct {
	store.ReportStore
}

func (failingStore) Save(ctx context.Context, r *model.Report) error {
	return errors.New("disk full")
}

func TestAnalyze_SaveFailureKeepsReport(t *testing.T) {
	p, err := NewPipeline(testConfig(), WithStore(failingStore{}))
	require.NoError(t, err)

	report, err := p.Analyze(context.Background(), "contract.txt",
		model.AnalysisInput{Text: scamContract, Kind: model.SourceText})
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.NotEmpty(t, report.ScamAlerts)
	assert.Greater(t, report.RiskScores.ScamRisk, 0.0)

	var saveSignal *model.Signal
	for i, s := range report.Findings.Signals {
		if s.Type == model.SignalSaveFailure {
			saveSignal = &report.Findings.Signals[i]
		}
	}
	require.NotNil(t, saveSignal, "expected a save failure signal")
	assert.Equal(t, model.SeverityWarning, saveSignal.Severity)
	assert.Equal(t, "disk full", saveSignal.Data["error"])
}
