package score

import (
	"math"
	"testing"

	"github.com/ppiankov/legalscan/internal/model"
)

func alerts(levels ...model.RiskLevel) []model.Alert {
	out := make([]model.Alert, 0, len(levels))
	for _, l := range levels {
		out = append(out, model.Alert{Kind: model.AlertSuspiciousClause, Description: "test", Level: l})
	}
	return out
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScorer_Forgery(t *testing.T) {
	scorer := NewScorer(model.DefaultThresholds())

	tests := []struct {
		name   string
		alerts int
		want   float64
	}{
		{"no alerts", 0, 0},
		{"one alert", 1, 0.2},
		{"three alerts", 3, 0.6},
		{"five alerts saturate", 5, 1.0},
		{"eight alerts capped", 8, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, signal := scorer.Forgery(make([]model.Alert, tt.alerts))
			if !approx(score, tt.want) {
				t.Errorf("Expected score %.2f, got %.4f", tt.want, score)
			}
			if signal.Type != model.SignalForgeryRisk {
				t.Errorf("Expected forgery signal, got %s", signal.Type)
			}
			if _, ok := signal.Data["formula"]; !ok {
				t.Error("Expected formula in signal data")
			}
		})
	}
}

func TestScorer_WordingFloor(t *testing.T) {
	scorer := NewScorer(model.DefaultThresholds())

	score, signal := scorer.Forgery(nil)
	score, signal = scorer.WordingFloor(score, signal, 3)
	if !approx(score, 0.4) {
		t.Errorf("Expected floor 0.4, got %.2f", score)
	}
	if signal.Severity != model.SeverityWarning {
		t.Errorf("Expected warning severity, got %s", signal.Severity)
	}
	if signal.Data["wording_matches"] != 3 {
		t.Errorf("Expected wording_matches=3, got %v", signal.Data["wording_matches"])
	}

	// Floor never lowers an existing score
	score, _ = scorer.Forgery(make([]model.Alert, 4))
	score, _ = scorer.WordingFloor(score, model.Signal{Data: map[string]interface{}{}}, 2)
	if !approx(score, 0.8) {
		t.Errorf("Expected 0.8 to survive the floor, got %.2f", score)
	}
}

func TestScorer_Scam(t *testing.T) {
	scorer := NewScorer(model.DefaultThresholds())

	tests := []struct {
		name   string
		levels []model.RiskLevel
		want   float64
	}{
		{"no alerts", nil, 0},
		{"one high", []model.RiskLevel{model.RiskHigh}, 0.25},
		{"mixed", []model.RiskLevel{model.RiskHigh, model.RiskMedium, model.RiskLow}, 0.45},
		{"unknown level uses default", []model.RiskLevel{"critical"}, 0.1},
		{"capped", []model.RiskLevel{model.RiskHigh, model.RiskHigh, model.RiskHigh, model.RiskHigh, model.RiskHigh}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, signal := scorer.Scam(alerts(tt.levels...))
			if !approx(score, tt.want) {
				t.Errorf("Expected score %.2f, got %.4f", tt.want, score)
			}
			if signal.Type != model.SignalScamRisk {
				t.Errorf("Expected scam signal, got %s", signal.Type)
			}
		})
	}
}

func TestScorer_Scam_Monotonic(t *testing.T) {
	scorer := NewScorer(model.DefaultThresholds())

	levels := []model.RiskLevel{model.RiskMedium}
	prev, _ := scorer.Scam(alerts(levels...))
	for i := 0; i < 8; i++ {
		levels = append(levels, model.RiskHigh)
		next, _ := scorer.Scam(alerts(levels...))
		if next < prev {
			t.Fatalf("Score decreased from %.2f to %.2f after adding a high alert", prev, next)
		}
		if next > 1.0 {
			t.Fatalf("Score %.2f exceeds 1.0", next)
		}
		prev = next
	}
}

func TestScorer_Combine(t *testing.T) {
	scorer := NewScorer(model.DefaultThresholds())

	tests := []struct {
		scores model.RiskScores
		want   model.Level
	}{
		{model.RiskScores{}, model.LevelLow},
		{model.RiskScores{ForgeryRisk: 0.39, ScamRisk: 0.1}, model.LevelLow},
		{model.RiskScores{ForgeryRisk: 0.2, ScamRisk: 0.4}, model.LevelMedium},
		{model.RiskScores{ForgeryRisk: 0.69}, model.LevelMedium},
		{model.RiskScores{ScamRisk: 0.7}, model.LevelHigh},
		{model.RiskScores{ForgeryRisk: 1.0, ScamRisk: 0.0}, model.LevelHigh},
	}

	for _, tt := range tests {
		level, signal := scorer.Combine(tt.scores)
		if level != tt.want {
			t.Errorf("Combine(%+v) = %s, want %s", tt.scores, level, tt.want)
		}
		if signal.Data["level"] != string(tt.want) {
			t.Errorf("Expected signal level %s, got %v", tt.want, signal.Data["level"])
		}
	}
}
