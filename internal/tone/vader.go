package tone

import (
	"regexp"
	"strings"

	"github.com/jonreiter/govader"

	"github.com/ppiankov/legalscan/internal/model"
)

// Compound scores at or beyond these bounds are labelled positive or negative
const (
	positiveBound = 0.20
	negativeBound = -0.20
)

var urlPattern = regexp.MustCompile(`https?://\S+|www\.\S+`)

// Analyzer reads the overall sentiment of a document
// It is informational and never feeds the risk scores.
type Analyzer struct {
	vader *govader.SentimentIntensityAnalyzer
}

// New creates a VADER-backed tone analyzer
func New() *Analyzer {
	return &Analyzer{vader: govader.NewSentimentIntensityAnalyzer()}
}

// Analyze returns the compound score and its label, nil for blank text
func (a *Analyzer) Analyze(text string) *model.Tone {
	plain := strings.Join(strings.Fields(urlPattern.ReplaceAllString(text, "")), " ")
	if plain == "" {
		return nil
	}

	score := a.vader.PolarityScores(plain).Compound
	return &model.Tone{Compound: score, Label: Label(score)}
}

// Label buckets a compound score
func Label(score float64) string {
	switch {
	case score >= positiveBound:
		return "positive"
	case score <= negativeBound:
		return "negative"
	default:
		return "neutral"
	}
}
