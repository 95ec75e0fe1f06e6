package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ppiankov/legalscan/internal/model"
)

// ErrNotFound is returned when no report has the requested id
var ErrNotFound = errors.New("report not found")

// Fixed-width UTC timestamps sort correctly as text on every driver
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ReportStore persists analysis reports keyed by report id
type ReportStore interface {
	Save(ctx context.Context, r *model.Report) error
	Get(ctx context.Context, id string) (*model.Report, error)
	List(ctx context.Context, limit int) ([]model.Report, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Pinger is implemented by stores that can check their backend
type Pinger interface {
	Ping(ctx context.Context) error
}

// SQLStore keeps reports in a single table on sqlite3 or postgres
type SQLStore struct {
	db *sqlx.DB
}

// reportRow is the table layout; list-valued fields are JSON text
type reportRow struct {
	ID             string  `db:"id"`
	Filename       string  `db:"filename"`
	Kind           string  `db:"kind"`
	Summary        string  `db:"summary"`
	KeyTerms       string  `db:"key_terms"`
	ForgeryAlerts  string  `db:"forgery_alerts"`
	ScamAlerts     string  `db:"scam_alerts"`
	ForgeryRisk    float64 `db:"forgery_risk"`
	ScamRisk       float64 `db:"scam_risk"`
	RiskLevel      string  `db:"risk_level"`
	ProcessingTime float64 `db:"processing_time"`
	CreatedAt      string  `db:"created_at"`
	Details        string  `db:"details"` // Tone, findings and LLM narrative
}

// details groups the optional report sections stored in one column
type details struct {
	Tone     *model.Tone       `json:"tone,omitempty"`
	Findings *model.Findings   `json:"findings,omitempty"`
	LLM      *model.LLMSummary `json:"llm,omitempty"`
}

// Open connects to the configured database and creates the schema if needed
func Open(cfg model.StoreConfig) (*SQLStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite3"
	}

	dsn := cfg.DSN
	switch driver {
	case "sqlite3":
		if dsn == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("find home directory: %w", err)
			}
			dsn = filepath.Join(home, ".legalscan", "reports.db")
		}
		if !strings.HasPrefix(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
			if !strings.Contains(dsn, "?") {
				dsn += "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"
			}
		}
	case "postgres":
		if dsn == "" {
			return nil, errors.New("postgres store requires a dsn")
		}
	default:
		return nil, fmt.Errorf("unsupported store driver: %s (supported: sqlite3, postgres)", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		// One writer at a time
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	s := &SQLStore{db: db}
	if err := s.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			kind TEXT NOT NULL,
			summary TEXT NOT NULL,
			key_terms TEXT NOT NULL,
			forgery_alerts TEXT NOT NULL,
			scam_alerts TEXT NOT NULL,
			forgery_risk DOUBLE PRECISION NOT NULL,
			scam_risk DOUBLE PRECISION NOT NULL,
			risk_level TEXT NOT NULL,
			processing_time DOUBLE PRECISION NOT NULL,
			created_at TEXT NOT NULL,
			details TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Close releases the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Save inserts the report, replacing any earlier report with the same id
func (s *SQLStore) Save(ctx context.Context, r *model.Report) error {
	if r.ID == "" {
		return errors.New("report has no id")
	}
	row, err := toRow(r)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO reports (id, filename, kind, summary, key_terms, forgery_alerts, scam_alerts,
			forgery_risk, scam_risk, risk_level, processing_time, created_at, details)
		VALUES (:id, :filename, :kind, :summary, :key_terms, :forgery_alerts, :scam_alerts,
			:forgery_risk, :scam_risk, :risk_level, :processing_time, :created_at, :details)
		ON CONFLICT (id) DO UPDATE SET
			filename = excluded.filename, kind = excluded.kind, summary = excluded.summary,
			key_terms = excluded.key_terms, forgery_alerts = excluded.forgery_alerts,
			scam_alerts = excluded.scam_alerts, forgery_risk = excluded.forgery_risk,
			scam_risk = excluded.scam_risk, risk_level = excluded.risk_level,
			processing_time = excluded.processing_time, created_at = excluded.created_at,
			details = excluded.details`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Get loads one report by id
func (s *SQLStore) Get(ctx context.Context, id string) (*model.Report, error) {
	var row reportRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT * FROM reports WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select report: %w", err)
	}
	return fromRow(row)
}

// List returns up to limit reports, newest first
func (s *SQLStore) List(ctx context.Context, limit int) ([]model.Report, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []reportRow
	query := s.db.Rebind(`SELECT * FROM reports ORDER BY created_at DESC, id DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	reports := make([]model.Report, 0, len(rows))
	for _, row := range rows {
		r, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, nil
}

// Delete removes one report by id
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM reports WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

func toRow(r *model.Report) (reportRow, error) {
	row := reportRow{
		ID:             r.ID,
		Filename:       r.Filename,
		Kind:           string(r.Kind),
		ForgeryRisk:    r.RiskScores.ForgeryRisk,
		ScamRisk:       r.RiskScores.ScamRisk,
		RiskLevel:      string(r.RiskLevel),
		ProcessingTime: r.ProcessingTime,
		CreatedAt:      r.CreatedAt.UTC().Format(timeLayout),
	}

	fields := []struct {
		dst *string
		v   any
	}{
		{&row.Summary, nonNil(r.Summary)},
		{&row.KeyTerms, nonNil(r.KeyTerms)},
		{&row.ForgeryAlerts, nonNil(r.ForgeryAlerts)},
		{&row.ScamAlerts, nonNil(r.ScamAlerts)},
		{&row.Details, details{Tone: r.Tone, Findings: r.Findings, LLM: r.LLM}},
	}
	for _, f := range fields {
		data, err := json.Marshal(f.v)
		if err != nil {
			return reportRow{}, fmt.Errorf("marshal report: %w", err)
		}
		*f.dst = string(data)
	}
	return row, nil
}

func fromRow(row reportRow) (*model.Report, error) {
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	r := &model.Report{
		ID:             row.ID,
		Filename:       row.Filename,
		Kind:           model.SourceKind(row.Kind),
		RiskScores:     model.RiskScores{ForgeryRisk: row.ForgeryRisk, ScamRisk: row.ScamRisk},
		RiskLevel:      model.Level(row.RiskLevel),
		ProcessingTime: row.ProcessingTime,
		CreatedAt:      created,
	}

	var d details
	fields := []struct {
		src string
		dst any
	}{
		{row.Summary, &r.Summary},
		{row.KeyTerms, &r.KeyTerms},
		{row.ForgeryAlerts, &r.ForgeryAlerts},
		{row.ScamAlerts, &r.ScamAlerts},
		{row.Details, &d},
	}
	for _, f := range fields {
		if err := json.Unmarshal([]byte(f.src), f.dst); err != nil {
			return nil, fmt.Errorf("unmarshal report %s: %w", row.ID, err)
		}
	}
	r.Tone, r.Findings, r.LLM = d.Tone, d.Findings, d.LLM
	return r, nil
}

// nonNil keeps empty lists as [] rather than null in the stored JSON
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
