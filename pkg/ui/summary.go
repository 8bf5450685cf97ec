package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"bookmarkvault/pkg/syncer"
)

// maxListedFailures bounds the failures printed under the summary table
const maxListedFailures = 10

var (
	accent  = lipgloss.Color("#00FFFF")
	good    = lipgloss.Color("#39FF14")
	warn    = lipgloss.Color("#FFFF00")
	bad     = lipgloss.Color("#FF3131")
	dimText = lipgloss.Color("#B0B0B0")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(dimText).
			Width(16)

	valueStyle = lipgloss.NewStyle().
			Bold(true)

	failureStyle = lipgloss.NewStyle().
			Foreground(bad)
)

// RenderSummary renders the outcome of a sync run as a boxed table
func RenderSummary(s *syncer.Summary, runErr error) string {
	title := "SYNC COMPLETE"
	titleColor := good
	switch {
	case runErr != nil:
		title, titleColor = "SYNC ABORTED", bad
	case s.HasFailures():
		title, titleColor = "SYNC FINISHED WITH FAILURES", warn
	case !s.Complete:
		title = "SYNC PAUSED"
	}

	rows := []string{
		titleStyle.Foreground(titleColor).Render(title),
		row("Run", s.RunID, dimText),
		row("Pages", fmt.Sprint(s.Pages), accent),
		row("Discovered", fmt.Sprint(s.Discovered), accent),
		row("Archived", fmt.Sprint(s.Committed), good),
		row("Skipped", fmt.Sprint(s.Skipped), dimText),
		row("Failed", fmt.Sprint(s.Failed), colorIf(s.Failed > 0, bad, dimText)),
		row("Media saved", fmt.Sprint(s.MediaFetched), good),
		row("Media missing", fmt.Sprint(s.MediaMissing), colorIf(s.MediaMissing > 0, warn, dimText)),
		row("Rate limited", fmt.Sprint(s.RateLimitPauses), colorIf(s.RateLimitPauses > 0, warn, dimText)),
		row("Duration", s.Duration.Round(time.Millisecond).String(), accent),
	}
	if s.ResumedFrom != "" {
		rows = append(rows, row("Resumed at", s.ResumedFrom, dimText))
	}
	if runErr != nil {
		rows = append(rows, "", failureStyle.Render(runErr.Error()))
	}

	if len(s.Failures) > 0 {
		rows = append(rows, "")
		for i, f := range s.Failures {
			if i == maxListedFailures {
				rows = append(rows, failureStyle.Render(fmt.Sprintf("... and %d more", len(s.Failures)-i)))
				break
			}
			rows = append(rows, failureStyle.Render("✗ "+f.String()))
		}
	}

	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// PrintSummary writes the rendered summary to the terminal
func PrintSummary(s *syncer.Summary, runErr error) {
	printf(runErr != nil, "\n%s\n", RenderSummary(s, runErr))
}

// SummaryLine condenses a run into one line, e.g. for notifications
func SummaryLine(s *syncer.Summary) string {
	parts := []string{
		fmt.Sprintf("%d archived", s.Committed),
		fmt.Sprintf("%d skipped", s.Skipped),
	}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	}
	if s.MediaMissing > 0 {
		parts = append(parts, fmt.Sprintf("%d media missing", s.MediaMissing))
	}
	return strings.Join(parts, ", ")
}

func row(label, value string, color lipgloss.Color) string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		labelStyle.Render(label),
		valueStyle.Foreground(color).Render(value),
	)
}

func colorIf(cond bool, yes, no lipgloss.Color) lipgloss.Color {
	if cond {
		return yes
	}
	return no
}
