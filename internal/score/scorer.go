package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/legalscan/internal/model"
)

// Scorer turns detector alerts into bounded risk scores and generates signals
type Scorer struct {
	forgery model.ForgeryThresholds
	scam    model.ScamThresholds
	bands   model.RiskBands
}

// NewScorer creates a new scorer
func NewScorer(th model.Thresholds) *Scorer {
	return &Scorer{
		forgery: th.Forgery,
		scam:    th.Scam,
		bands:   th.Risk,
	}
}

// Forgery scores forgery alerts: a flat weight per alert, capped at 1
func (s *Scorer) Forgery(alerts []model.Alert) (float64, model.Signal) {
	score := clamp(float64(len(alerts)) * s.forgery.AlertWeight)

	return score, model.Signal{
		Type:        model.SignalForgeryRisk,
		Severity:    severityFor(score, s.bands),
		Description: fmt.Sprintf("Forgery risk: %d alerts", len(alerts)),
		Data: map[string]interface{}{
			"alerts":  len(alerts),
			"weight":  s.forgery.AlertWeight,
			"score":   score,
			"formula": "min(alert_count * weight, 1.0)",
		},
	}
}

// WordingFloor raises a forgery score to the wording floor and annotates the signal
func (s *Scorer) WordingFloor(score float64, signal model.Signal, matches int) (float64, model.Signal) {
	floored := math.Max(score, s.forgery.WordingFloor)

	signal.Severity = severityFor(floored, s.bands)
	signal.Description = fmt.Sprintf("Forgery risk: suspicious wording (%d patterns)", matches)
	signal.Data["wording_matches"] = matches
	signal.Data["wording_floor"] = s.forgery.WordingFloor
	signal.Data["score"] = floored
	signal.Data["formula"] = "max(min(alert_count * weight, 1.0), wording_floor)"
	return floored, signal
}

// Scam scores scam alerts by summing per-level weights, capped at 1
func (s *Scorer) Scam(alerts []model.Alert) (float64, model.Signal) {
	if len(alerts) == 0 {
		return 0, model.Signal{
			Type:        model.SignalScamRisk,
			Severity:    model.SeverityInfo,
			Description: "Scam risk: no alerts",
			Data:        map[string]interface{}{"alerts": 0, "score": 0.0},
		}
	}

	counts := map[model.RiskLevel]int{}
	sum := 0.0
	for _, a := range alerts {
		counts[a.Level]++
		sum += s.weight(a.Level)
	}
	score := clamp(sum)

	return score, model.Signal{
		Type:     model.SignalScamRisk,
		Severity: severityFor(score, s.bands),
		Description: fmt.Sprintf("Scam risk: %d high, %d medium, %d low",
			counts[model.RiskHigh], counts[model.RiskMedium], counts[model.RiskLow]),
		Data: map[string]interface{}{
			"alerts":  len(alerts),
			"high":    counts[model.RiskHigh],
			"medium":  counts[model.RiskMedium],
			"low":     counts[model.RiskLow],
			"sum":     sum,
			"score":   score,
			"formula": fmt.Sprintf("min(high*%.2f + medium*%.2f + low*%.2f + other*%.2f, 1.0)", s.scam.HighWeight, s.scam.MediumWeight, s.scam.LowWeight, s.scam.DefaultWeight),
		},
	}
}

// Combine bands the larger detector score into a risk level
func (s *Scorer) Combine(scores model.RiskScores) (model.Level, model.Signal) {
	top := scores.Max()
	level := s.bands.RiskLevelFor(top)

	return level, model.Signal{
		Type:        model.SignalCombinedRisk,
		Severity:    severityFor(top, s.bands),
		Description: fmt.Sprintf("Combined risk: %s (%.2f)", level, top),
		Data: map[string]interface{}{
			"forgery_risk": scores.ForgeryRisk,
			"scam_risk":    scores.ScamRisk,
			"max":          top,
			"level":        string(level),
			"formula":      fmt.Sprintf("max(forgery, scam): <%.2f Low, <%.2f Medium, else High", s.bands.Medium, s.bands.High),
		},
	}
}

func (s *Scorer) weight(level model.RiskLevel) float64 {
	switch level {
	case model.RiskHigh:
		return s.scam.HighWeight
	case model.RiskMedium:
		return s.scam.MediumWeight
	case model.RiskLow:
		return s.scam.LowWeight
	default:
		return s.scam.DefaultWeight
	}
}

// severityFor maps a score to signal severity using the same bands as the risk level
func severityFor(score float64, bands model.RiskBands) model.SignalSeverity {
	switch {
	case score >= bands.High:
		return model.SeverityCritical
	case score >= bands.Medium:
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, 1.0)
}
