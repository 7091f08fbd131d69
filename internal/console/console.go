// Package console renders terminal output for the chapter pipeline.
package console

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/chapter-cli/internal/model"
	"github.com/sells-group/chapter-cli/internal/scorer"
)

// Excerpt limits for the side-by-side comparison.
const (
	ExcerptChars = 1000
	ColumnWidth  = 50
)

var (
	stepStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#D29922"))
	errStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))

	headStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	boxStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)

	titleCaser = cases.Title(language.English)
)

// Step prints a numbered step header.
func Step(w io.Writer, n int, title string) {
	fmt.Fprintln(w, stepStyle.Render(fmt.Sprintf("[%d] %s", n, title)))
}

// Success prints a success line.
func Success(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, okStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Warn prints a warning line.
func Warn(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, warnStyle.Render("! "+fmt.Sprintf(format, args...)))
}

// Error prints an error line.
func Error(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, errStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Info prints a dimmed informational line.
func Info(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, infoStyle.Render(fmt.Sprintf(format, args...)))
}

// ScoreStyle picks the color for a 0..10 dimension score.
func ScoreStyle(score float64) lipgloss.Style {
	switch {
	case score >= 7:
		return okStyle
	case score >= 5:
		return warnStyle
	default:
		return errStyle
	}
}

// DimensionTitle title-cases a dimension name.
func DimensionTitle(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

// EvaluationSummary renders the per-dimension scores and total of a report.
func EvaluationSummary(r *model.QualityReport) string {
	if r == nil {
		return warnStyle.Render("No evaluation available")
	}
	var lines []string
	lines = append(lines, headStyle.Render("Quality Evaluation"))
	if r.Degraded {
		lines = append(lines, warnStyle.Render(r.Notes))
		return boxStyle.Render(strings.Join(lines, "\n"))
	}

	names := make([]string, 0, len(r.Scores))
	for name := range r.Scores {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		score := r.Scores[name]
		lines = append(lines, fmt.Sprintf("%-14s %s", DimensionTitle(name)+":",
			ScoreStyle(score).Render(fmt.Sprintf("%5.2f/10", score))))
	}
	lines = append(lines, fmt.Sprintf("%-14s %.2f/%.0f", "Total:", r.TotalScore, r.MaxTotal))
	if r.Notes != "" {
		lines = append(lines, infoStyle.Render(r.Notes))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// QualityBanner reports whether a total meets the pass threshold.
func QualityBanner(w io.Writer, r *model.QualityReport, threshold float64) {
	switch {
	case r == nil || r.Degraded:
		Warn(w, "Quality could not be evaluated")
	case scorer.Passes(r, threshold):
		Success(w, "Chapter meets quality standards (%.2f >= %.2f)", r.TotalScore, threshold)
	default:
		Warn(w, "Chapter may need improvement (%.2f < %.2f)", r.TotalScore, threshold)
	}
}

// SideBySide renders the first ExcerptChars of both texts in two columns.
func SideBySide(original, candidate string) string {
	left := lipgloss.JoinVertical(lipgloss.Left,
		headStyle.Render("Original"),
		lipgloss.NewStyle().Width(ColumnWidth).Render(Excerpt(original, ExcerptChars)),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		headStyle.Render("Candidate"),
		lipgloss.NewStyle().Width(ColumnWidth).Render(Excerpt(candidate, ExcerptChars)),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, boxStyle.Render(left), boxStyle.Render(right))
}

// Excerpt returns at most n runes of s, marking a cut with an ellipsis.
func Excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
