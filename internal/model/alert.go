package model

// RiskLevel is the severity attached to a single alert
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// AlertKind classifies the heuristic that produced an alert
type AlertKind string

const (
	AlertSuspiciousClause AlertKind = "suspicious_clause"
	AlertScamTemplate     AlertKind = "scam_template"
	AlertScamStructure    AlertKind = "scam_structure"
	AlertUnusualRequest   AlertKind = "unusual_request"
	AlertInconsistency    AlertKind = "inconsistency"
	AlertFontStyle        AlertKind = "font_inconsistency"
	AlertSpacing          AlertKind = "unusual_spacing"
	AlertSignature        AlertKind = "signature"
	AlertManipulation     AlertKind = "image_manipulation"
	AlertMetadata         AlertKind = "metadata"
	AlertWording          AlertKind = "suspicious_wording"
	AlertAnalysisError    AlertKind = "analysis_error"
)

// Alert is a structured finding emitted by the forgery or scam analyzers
type Alert struct {
	Kind        AlertKind `json:"kind"`
	Category    string    `json:"category,omitempty"` // Clause category for suspicious clauses
	Description string    `json:"description"`
	Level       RiskLevel `json:"risk_level"`
	Context     string    `json:"context,omitempty"` // Source excerpt that triggered the alert
}

// DetectorResult is the output of a single risk detector
type DetectorResult struct {
	Alerts    []Alert  `json:"alerts"`            // Structured findings in emission order
	Messages  []string `json:"messages"`          // Alerts rendered for display, same order
	RiskScore float64  `json:"risk_score"`        // Always within [0, 1]
	Signals   []Signal `json:"signals,omitempty"` // Scoring breakdown
}
