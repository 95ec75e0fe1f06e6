package forgery

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/legalscan/internal/model"
)

const stylePunctuation = ".,;:!?-()[]{}"

var wideGap = regexp.MustCompile(`\S\s{3,}\S`)

// lineStyle is the uppercase, digit and punctuation share of a line, rounded to 2 decimals
type lineStyle [3]float64

func styleOf(line string) lineStyle {
	n := utf8.RuneCountInString(line)
	if n == 0 {
		return lineStyle{}
	}
	var upper, digit, punct int
	for _, r := range line {
		switch {
		case unicode.IsUpper(r):
			upper++
		case unicode.IsDigit(r):
			digit++
		case strings.ContainsRune(stylePunctuation, r):
			punct++
		}
	}
	return lineStyle{
		round2(float64(upper) / float64(n)),
		round2(float64(digit) / float64(n)),
		round2(float64(punct) / float64(n)),
	}
}

func (s lineStyle) distance(o lineStyle) float64 {
	return math.Abs(s[0]-o[0]) + math.Abs(s[1]-o[1]) + math.Abs(s[2]-o[2])
}

// TextStyle compares the character mix of consecutive lines and counts wide gaps
func (d *Detector) TextStyle(text string) CheckResult {
	res := CheckResult{Name: "text_style"}

	lines := strings.Split(text, "\n")
	var prev *lineStyle
	changes := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cur := styleOf(line)
		if prev != nil && cur.distance(*prev) > d.th.StyleDiff {
			changes++
		}
		prev = &cur
	}

	// Blank lines count toward the total
	if float64(changes) > float64(len(lines))*d.th.StyleChangeRatio {
		res.Alerts = append(res.Alerts, alert(model.AlertFontStyle, model.RiskMedium, msgFontStyle))
	}

	if len(wideGap.FindAllStringIndex(text, -1)) > d.th.SpacingAnomalies {
		res.Alerts = append(res.Alerts, alert(model.AlertSpacing, model.RiskMedium, msgSpacing))
	}
	return res
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
