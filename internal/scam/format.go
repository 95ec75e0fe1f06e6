package scam

import (
	"unicode/utf8"

	"github.com/ppiankov/legalscan/internal/model"
)

// Render formats alerts for display
// Each line is the description, a space, and when present a quoted context
// truncated to maxContext characters.
func Render(alerts []model.Alert, maxContext int) []string {
	out := make([]string, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, RenderAlert(a, maxContext))
	}
	return out
}

// RenderAlert formats a single alert
func RenderAlert(a model.Alert, maxContext int) string {
	line := a.Description + " "
	if a.Context == "" {
		return line
	}

	ctx := a.Context
	if maxContext > 3 && utf8.RuneCountInString(ctx) > maxContext {
		ctx = string([]rune(ctx)[:maxContext-3]) + "..."
	}
	return line + "\nContext: \"" + ctx + "\""
}
