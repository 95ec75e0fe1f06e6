// Package scam flags suspicious contract clauses and scam language in document text.
package scam

import (
	"fmt"
	"log/slog"

	"github.com/ppiankov/legalscan/internal/model"
	"github.com/ppiankov/legalscan/internal/patterns"
	"github.com/ppiankov/legalscan/internal/score"
)

// Detector runs the clause, template, request and inconsistency checks
type Detector struct {
	lib    *patterns.Library
	th     model.ScamThresholds
	scorer *score.Scorer
}

// NewDetector creates a scam detector
func NewDetector(lib *patterns.Library, th model.Thresholds) *Detector {
	return &Detector{
		lib:    lib,
		th:     th.Scam,
		scorer: score.NewScorer(th),
	}
}

// check is one independent heuristic over the document text
type check struct {
	name string
	run  func(text string) []model.Alert
}

// Detect runs every check and scores the combined alerts
func (d *Detector) Detect(text string) model.DetectorResult {
	checks := []check{
		{"suspicious_clauses", d.SuspiciousClauses},
		{"scam_templates", d.ScamTemplates},
		{"unusual_requests", d.UnusualRequests},
		{"inconsistencies", d.Inconsistencies},
	}

	var alerts []model.Alert
	for _, c := range checks {
		alerts = append(alerts, d.runCheck(c, text)...)
	}

	riskScore, signal := d.scorer.Scam(alerts)

	slog.Debug("scam detection completed",
		slog.Int("alerts", len(alerts)),
		slog.Float64("risk_score", riskScore))

	return model.DetectorResult{
		Alerts:    alerts,
		Messages:  Render(alerts, d.th.RenderContextChars),
		RiskScore: riskScore,
		Signals:   []model.Signal{signal},
	}
}

// runCheck isolates a check so a failure becomes one alert instead of aborting the detector
func (d *Detector) runCheck(c check, text string) (alerts []model.Alert) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("scam check failed", slog.String("check", c.name), slog.Any("panic", rec))
			alerts = []model.Alert{{
				Kind:        model.AlertAnalysisError,
				Description: fmt.Sprintf("Error in %s analysis.", c.name),
				Level:       model.RiskLow,
			}}
		}
	}()
	return c.run(text)
}
