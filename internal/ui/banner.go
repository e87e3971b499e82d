package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// StepBanner renders the separator printed before each pipeline step.
func StepBanner(title string) string {
	return "\n" + BannerStyle.Render("### "+title) + "\n"
}

// Note renders an informational line.
func Note(format string, args ...interface{}) string {
	return NoteStyle.Render("NOTE: " + fmt.Sprintf(format, args...))
}

// StepResult is one row of the run summary.
type StepResult struct {
	Step     int
	Title    string
	Jobs     int
	Duration time.Duration
	Err      error
}

// Summary renders the per-step outcome table shown when a run ends.
func Summary(results []StepResult) string {
	if len(results) == 0 {
		return ""
	}

	rows := make([]string, 0, len(results)+1)
	rows = append(rows, MutedStyle.Render(fmt.Sprintf("%-4s %-40s %5s %10s  %s", "STEP", "TITLE", "JOBS", "TIME", "STATUS")))
	for _, r := range results {
		status := SuccessStyle.Render("ok")
		if r.Err != nil {
			status = ErrorStyle.Render("failed: " + firstLine(r.Err.Error()))
		}
		rows = append(rows, fmt.Sprintf("%-4d %-40s %5d %10s  %s",
			r.Step, truncate(r.Title, 40), r.Jobs, r.Duration.Round(time.Millisecond), status))
	}
	return SummaryStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
