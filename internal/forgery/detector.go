// Package forgery looks for signs of tampering in document text, page images
// and PDF metadata.
//
// Every check is independent. A check that fails (undecodable image, exceeded
// budget, panic) reports a single descriptive alert and is logged, and the
// remaining checks still run.
package forgery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/legalscan/internal/model"
	"github.com/ppiankov/legalscan/internal/patterns"
	"github.com/ppiankov/legalscan/internal/score"
)

// Alert texts shared by the detector and its tests
const (
	msgFontStyle          = "Multiple font or formatting inconsistencies detected throughout the document."
	msgSpacing            = "Unusual spacing detected in text, possible indication of content manipulation."
	msgSignatureLoad      = "Could not analyze image for signature verification"
	msgPixelation         = "Potential signature irregularity detected: pixelation suggests possible digital manipulation."
	msgUniformBorder      = "Potential signature irregularity: unusually uniform borders suggest possible copying."
	msgDuplicateSignature = "Multiple signatures appear nearly identical, suggesting possible copying."
	msgMissingSignature   = "Document appears to require signatures, but no clear signatures detected."
	msgSignatureError     = "Error in signature analysis."
	msgManipulationLoad   = "Could not analyze image for manipulation detection"
	msgELA                = "Image analysis indicates possible digital manipulation of the document."
	msgRepeated           = "Document appears to contain repeated elements, suggesting possible copy-paste manipulation."
	msgManipulationError  = "Error in image analysis."
	msgModBeforeCreation  = "Document metadata shows modification date earlier than creation date, suggesting possible tampering."
	msgYearGap            = "Document was created in %d but modified in %d, suggesting possible updates to original content."
	msgFonts              = "Document uses %d different font types, suggesting possible cut-and-paste from multiple sources."
	msgRenderError        = "Error analyzing PDF document for forgery indicators."
	msgWording            = "Document contains potentially suspicious wording patterns. Exercise caution."
)

// ErrImageTooLarge is returned when an image exceeds the pixel budget
var ErrImageTooLarge = errors.New("image exceeds pixel budget")

// CheckResult is the outcome of one heuristic
// Err is set when the check could not complete; Alerts then holds the
// alert that replaces its findings.
type CheckResult struct {
	Name   string
	Alerts []model.Alert
	Err    error
}

// Detector runs the forgery heuristics
type Detector struct {
	lib    *patterns.Library
	th     model.ForgeryThresholds
	cfg    model.ForgeryConfig
	scorer *score.Scorer
}

// NewDetector creates a forgery detector
func NewDetector(lib *patterns.Library, th model.Thresholds, cfg model.ForgeryConfig) *Detector {
	if cfg.ImageTimeout <= 0 {
		cfg.ImageTimeout = 20 * time.Second
	}
	if cfg.CorrelationDim <= 0 {
		cfg.CorrelationDim = 512
	}
	return &Detector{
		lib:    lib,
		th:     th.Forgery,
		cfg:    cfg,
		scorer: score.NewScorer(th),
	}
}

// Detect runs the text, image and metadata checks and scores the result
func (d *Detector) Detect(ctx context.Context, input model.AnalysisInput) model.DetectorResult {
	var results []CheckResult

	// 1. Text layout
	results = append(results, d.TextStyle(input.Text))

	// 2. Page image
	if input.Kind.HasPageImage() {
		switch {
		case input.ImageErr != nil:
			slog.Error("page image unavailable for forgery analysis", slog.Any("error", input.ImageErr))
			results = append(results, failed("render", input.ImageErr, msgRenderError))
		case input.ImagePath != "":
			results = append(results, d.imageChecks(ctx, input)...)
		}
	}

	// 3. Container metadata
	if input.Kind == model.SourcePDF && input.Metadata != nil {
		results = append(results, d.Metadata(*input.Metadata))
	}

	var alerts []model.Alert
	var signals []model.Signal
	for _, r := range results {
		alerts = append(alerts, r.Alerts...)
		if r.Err != nil {
			signals = append(signals, model.Signal{
				Type:        model.SignalCheckFailure,
				Severity:    model.SeverityWarning,
				Description: fmt.Sprintf("Forgery check %s failed", r.Name),
				Data:        map[string]interface{}{"check": r.Name, "error": r.Err.Error()},
			})
		}
	}

	// 4. Score, with the wording fallback for otherwise clean documents
	riskScore, signal := d.scorer.Forgery(alerts)
	if len(alerts) == 0 && len(strings.Fields(input.Text)) > d.th.WordingMinWords {
		if matches := d.wordingMatches(input.Text); matches >= d.th.WordingMinMatches {
			alerts = append(alerts, model.Alert{
				Kind:        model.AlertWording,
				Description: msgWording,
				Level:       model.RiskMedium,
			})
			riskScore, signal = d.scorer.WordingFloor(riskScore, signal, matches)
		}
	}
	signals = append([]model.Signal{signal}, signals...)

	messages := make([]string, 0, len(alerts))
	for _, a := range alerts {
		messages = append(messages, a.Description)
	}

	slog.Debug("forgery detection completed",
		slog.Int("alerts", len(alerts)),
		slog.Float64("risk_score", riskScore))

	return model.DetectorResult{
		Alerts:    alerts,
		Messages:  messages,
		RiskScore: riskScore,
		Signals:   signals,
	}
}

// imageChecks decodes the page image once and runs the signature and manipulation checks on it
func (d *Detector) imageChecks(ctx context.Context, input model.AnalysisInput) []CheckResult {
	img, err := loadImage(input.ImagePath, d.cfg.MaxImagePixels)
	if err != nil {
		slog.Error("failed to load image", slog.String("path", input.ImagePath), slog.Any("error", err))
		return []CheckResult{
			failed("signature", err, msgSignatureLoad),
			failed("manipulation", err, msgManipulationLoad),
		}
	}

	cue := input.OCRText
	if cue == "" {
		cue = input.Text
	}

	return []CheckResult{
		d.runImageCheck(ctx, "signature", msgSignatureError, func(ctx context.Context) ([]model.Alert, error) {
			return d.Signatures(ctx, img, cue)
		}),
		d.runImageCheck(ctx, "manipulation", msgManipulationError, func(ctx context.Context) ([]model.Alert, error) {
			return d.Manipulation(ctx, img)
		}),
	}
}

// runImageCheck applies the time budget and converts errors and panics into one alert
func (d *Detector) runImageCheck(ctx context.Context, name, failMsg string, fn func(context.Context) ([]model.Alert, error)) (res CheckResult) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ImageTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic: %v", rec)
			slog.Error("forgery check panicked", slog.String("check", name), slog.Any("error", err))
			res = failed(name, err, failMsg)
		}
	}()

	alerts, err := fn(ctx)
	if err != nil {
		slog.Error("forgery check failed", slog.String("check", name), slog.Any("error", err))
		return failed(name, err, failMsg)
	}
	return CheckResult{Name: name, Alerts: alerts}
}

func (d *Detector) wordingMatches(text string) int {
	n := 0
	for _, re := range d.lib.ForgeryWording {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}

func failed(name string, err error, msg string) CheckResult {
	return CheckResult{
		Name:   name,
		Err:    err,
		Alerts: []model.Alert{{Kind: model.AlertAnalysisError, Description: msg, Level: model.RiskMedium}},
	}
}

func alert(kind model.AlertKind, level model.RiskLevel, msg string) model.Alert {
	return model.Alert{Kind: kind, Description: msg, Level: level}
}
