package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/legalscan/internal/cache"
	"github.com/ppiankov/legalscan/internal/model"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(model.StoreConfig{Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "reports.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleReport(id string, created time.Time) *model.Report {
	return &model.Report{
		ID:       id,
		Filename: "lease.pdf",
		Kind:     model.SourcePDF,
		Summary:  []string{"Document Type: Lease Agreement", "Word Count: 812"},
		KeyTerms: []model.KeyTerm{{Title: "Rent", Content: "Tenant shall pay rent monthly..."}},
		ForgeryAlerts: []string{
			"Document was modified before it was created, which is impossible and indicates tampering.",
		},
		ScamAlerts:     []string{"Penalty clause detected. \nContext: \"a fee of $50 applies\""},
		RiskScores:     model.RiskScores{ForgeryRisk: 0.2, ScamRisk: 0.55},
		RiskLevel:      model.LevelMedium,
		ProcessingTime: 1.37,
		CreatedAt:      created,
		Tone:           &model.Tone{Compound: -0.31, Label: "negative"},
		Findings: &model.Findings{
			ScamAlerts:   []model.Alert{{Kind: model.AlertSuspiciousClause, Category: "penalty", Description: "Penalty clause detected.", Level: model.RiskMedium}},
			DocumentType: "Lease Agreement",
			WordCount:    812,
		},
	}
}

func TestSQLStore_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	want := sampleReport("r-1", time.Date(2024, 3, 1, 12, 30, 45, 123456789, time.FixedZone("EST", -5*3600)))

	require.NoError(t, s.Save(ctx, want))
	got, err := s.Get(ctx, "r-1")
	require.NoError(t, err)

	assert.Equal(t, want.Summary, got.Summary)
	assert.Equal(t, want.KeyTerms, got.KeyTerms)
	assert.Equal(t, want.ForgeryAlerts, got.ForgeryAlerts)
	assert.Equal(t, want.ScamAlerts, got.ScamAlerts)
	assert.Equal(t, want.RiskScores, got.RiskScores)
	assert.Equal(t, want.RiskLevel, got.RiskLevel)
	assert.Equal(t, want.Filename, got.Filename)
	assert.Equal(t, want.Kind, got.Kind)
	assert.Equal(t, want.ProcessingTime, got.ProcessingTime)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", want.CreatedAt, got.CreatedAt)
	assert.Equal(t, want.Tone, got.Tone)
	assert.Equal(t, want.Findings, got.Findings)
	assert.Nil(t, got.LLM)
}

func TestSQLStore_EmptyListsStayEmpty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := &model.Report{ID: "empty", Filename: "blank.txt", Kind: model.SourceText, RiskLevel: model.LevelLow, CreatedAt: time.Now()}
	require.NoError(t, s.Save(ctx, r))

	got, err := s.Get(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, got.Summary)
	assert.NotNil(t, got.ForgeryAlerts)
	assert.Nil(t, got.Findings)
}

func TestSQLStore_SaveReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := sampleReport("r-1", time.Now())
	require.NoError(t, s.Save(ctx, r))
	r.RiskLevel = model.LevelHigh
	require.NoError(t, s.Save(ctx, r))

	got, err := s.Get(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, model.LevelHigh, got.RiskLevel)

	reports, err := s.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestSQLStore_ListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 25; i++ {
		require.NoError(t, s.Save(ctx, sampleReport(fmt.Sprintf("r-%02d", i), base.Add(time.Duration(i)*time.Hour))))
	}

	reports, err := s.List(ctx, 20)
	require.NoError(t, err)
	require.Len(t, reports, 20)
	assert.Equal(t, "r-24", reports[0].ID)
	assert.Equal(t, "r-05", reports[19].ID)

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 20)
}

func TestSQLStore_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "missing"), ErrNotFound)

	require.NoError(t, s.Save(ctx, sampleReport("r-1", time.Now())))
	require.NoError(t, s.Delete(ctx, "r-1"))
	_, err = s.Get(ctx, "r-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_RejectsMissingID(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Save(context.Background(), &model.Report{}))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(model.StoreConfig{Driver: "mysql", DSN: "x"})
	assert.ErrorContains(t, err, "unsupported store driver")

	_, err = Open(model.StoreConfig{Driver: "postgres"})
	assert.ErrorContains(t, err, "requires a dsn")
}

// countingStore records how often Get reaches the backing store
type countingStore struct {
	ReportStore
	gets int
}

func (c *countingStore) Get(ctx context.Context, id string) (*model.Report, error) {
	c.gets++
	return c.ReportStore.Get(ctx, id)
}

func TestCached(t *testing.T) {
	backing := &countingStore{ReportStore: openTestStore(t)}
	s := NewCached(backing, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)
	ctx := context.Background()

	want := sampleReport("r-1", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Get(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, want.ScamAlerts, got.ScamAlerts)
	assert.Equal(t, 0, backing.gets, "saved report should be served from cache")

	require.NoError(t, s.Delete(ctx, "r-1"))
	_, err = s.Get(ctx, "r-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, backing.gets)

	require.NoError(t, backing.ReportStore.Save(ctx, sampleReport("r-2", time.Now())))
	_, err = s.Get(ctx, "r-2")
	require.NoError(t, err)
	_, err = s.Get(ctx, "r-2")
	require.NoError(t, err)
	assert.Equal(t, 2, backing.gets)
}

func TestNewCached_NilCache(t *testing.T) {
	backing := openTestStore(t)
	assert.Same(t, ReportStore(backing), NewCached(backing, nil, time.Minute))
}
