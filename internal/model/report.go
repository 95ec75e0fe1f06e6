package model

import "time"

// Report is the combined analysis record for one document
// It is the unit persisted by the report store and rendered by the CLI and API
type Report struct {
	ID             string      `json:"id"`                 // UUID assigned by the pipeline
	Filename       string      `json:"filename"`           // Original upload name or source URL
	Kind           SourceKind  `json:"kind"`               // Source container kind
	Summary        []string    `json:"summary"`            // Human-readable summary lines
	KeyTerms       []KeyTerm   `json:"key_terms"`          // Top key clauses, condensed
	ForgeryAlerts  []string    `json:"forgery_alerts"`     // Rendered forgery alerts
	ScamAlerts     []string    `json:"scam_alerts"`        // Rendered scam alerts
	RiskScores     RiskScores  `json:"risk_scores"`        // Per-detector scores
	RiskLevel      Level       `json:"risk_level"`         // Band of max(RiskScores)
	ProcessingTime float64     `json:"processing_time"`    // Seconds spent analyzing
	CreatedAt      time.Time   `json:"created_at"`         // When the analysis finished
	Tone           *Tone       `json:"tone,omitempty"`     // Sentiment of the text, informational only
	Findings       *Findings   `json:"findings,omitempty"` // Structured alert records and signals
	LLM            *LLMSummary `json:"llm,omitempty"`      // Optional narrative, never affects scores
}

// RiskScores holds the bounded score of each detector
type RiskScores struct {
	ForgeryRisk float64 `json:"forgery_risk"`
	ScamRisk    float64 `json:"scam_risk"`
}

// Max returns the larger of the two detector scores
func (s RiskScores) Max() float64 {
	if s.ForgeryRisk > s.ScamRisk {
		return s.ForgeryRisk
	}
	return s.ScamRisk
}

// Level is the qualitative band of a combined risk score
type Level string

const (
	LevelLow    Level = "Low"
	LevelMedium Level = "Medium"
	LevelHigh   Level = "High"
)

// Tone is a coarse sentiment reading of the document text
type Tone struct {
	Compound float64 `json:"compound"`
	Label    string  `json:"label"` // positive, neutral, negative
}

// Findings keeps the structured records behind the rendered alert strings
type Findings struct {
	ForgeryAlerts []Alert  `json:"forgery_alerts,omitempty"`
	ScamAlerts    []Alert  `json:"scam_alerts,omitempty"`
	Signals       []Signal `json:"signals,omitempty"`
	Parties       []Entity `json:"parties,omitempty"`
	Dates         []string `json:"dates,omitempty"`
	DocumentType  string   `json:"document_type,omitempty"`
	WordCount     int      `json:"word_count,omitempty"`
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`           // Signal classification
	Severity    SignalSeverity         `json:"severity"`       // info, warning, critical
	Description string                 `json:"description"`    // Human-readable description
	Data        map[string]interface{} `json:"data,omitempty"` // Transparent scoring data (formulas, inputs)
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalForgeryRisk  SignalType = "forgery_risk"  // Forgery detector score breakdown
	SignalScamRisk     SignalType = "scam_risk"     // Scam detector score breakdown
	SignalCombinedRisk SignalType = "combined_risk" // Max of detector scores and its band
	SignalCheckFailure SignalType = "check_failure" // A heuristic failed and was downgraded to an alert
	SignalSaveFailure  SignalType = "save_failure"  // The finished report could not be stored
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// LLMSummary contains optional LLM-generated narrative
// It never affects scoring and is rendered separately
type LLMSummary struct {
	Enabled   bool     `json:"enabled"`
	Provider  string   `json:"provider,omitempty"`   // openai or an OpenAI-compatible endpoint
	Model     string   `json:"model,omitempty"`      // Model name
	Strict    bool     `json:"strict,omitempty"`     // Narrative may only cite sources present in the report
	SummaryMD string   `json:"summary_md,omitempty"` // Markdown narrative
	Warnings  []string `json:"warnings,omitempty"`   // Issues such as unavailable provider
}
