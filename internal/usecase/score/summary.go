package score

import (
	"fmt"
	"html"
	"strings"
	"time"

	"wellness-score/internal/domain"
)

// Summary описывает контракт шаблона письма: {date, score, insights, nextSteps}.
type Summary struct {
	Date      string               `json:"date"`
	Score     int                  `json:"score"`
	Insights  domain.ScoreInsights `json:"insights"`
	NextSteps []string             `json:"nextSteps"`
}

// BuildSummary собирает сводку для письма.
func BuildSummary(s domain.Score5x5x5) Summary {
	steps := append([]string(nil), s.Insights.NextSteps...)
	if steps == nil {
		steps = []string{}
	}
	return Summary{
		Date:      s.Date.Format(time.DateOnly),
		Score:     s.OverallScore,
		Insights:  s.Insights,
		NextSteps: steps,
	}
}

// FormatSummaryHTML формирует HTML-фрагмент сводки для шаблона письма.
func FormatSummaryHTML(sum Summary) string {
	var sections []string

	sections = append(sections, fmt.Sprintf("📊 <b>Your 5x5x5 score for %s: %d/100</b>", escapeHTML(sum.Date), sum.Score))

	if rec := strings.TrimSpace(sum.Insights.Recommendation); rec != "" {
		sections = append(sections, escapeHTML(rec))
	}

	var highlights []string
	if sum.Insights.StrongestSystem != nil {
		highlights = append(highlights, "💪 Strongest: "+escapeHTML(sum.Insights.StrongestSystem.DisplayName()))
	}
	if sum.Insights.WeakestSystem != nil {
		highlights = append(highlights, "🎯 Needs attention: "+escapeHTML(sum.Insights.WeakestSystem.DisplayName()))
	}
	highlights = append(highlights, fmt.Sprintf("⚖️ Balance: %d/100", sum.Insights.SystemBalance))
	sections = append(sections, strings.Join(highlights, "\n"))

	steps := filterNonEmptyStrings(sum.NextSteps)
	if len(steps) > 0 {
		var b strings.Builder
		b.WriteString("📌 <b>Next steps</b>")
		for _, step := range steps {
			b.WriteString("\n• " + escapeHTML(step))
		}
		sections = append(sections, b.String())
	}

	return strings.TrimSpace(strings.Join(sections, "\n\n"))
}

func filterNonEmptyStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func escapeHTML(s string) string {
	return html.EscapeString(s)
}
