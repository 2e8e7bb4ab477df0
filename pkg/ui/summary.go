package ui

import (
	"fmt"
	"io"
	"strconv"

	"forumscraper/pkg/report"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// PrintSummary prints a per-thread table followed by the run totals
func PrintSummary(w io.Writer, s *report.Summary) {
	if s == nil {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, SummaryTable(s))

	total := s.Total
	status := Green("✓")
	if total.Failed > 0 {
		status = Yellow("!")
	}
	fmt.Fprintf(w, "\n%s %d attempted: %d saved, %d duplicate, %d too small, %d failed in %s\n",
		status,
		total.Attempted,
		total.Saved,
		total.Duplicate,
		total.FilteredSmall,
		total.Failed,
		FormatDuration(s.Duration()),
	)
	if s.Cancelled {
		fmt.Fprintln(w, Yellow("Run was interrupted before all pages were processed"))
	}
	if s.OutputRoot != "" {
		fmt.Fprintf(w, "%s %s\n", Dim("output:"), s.OutputRoot)
	}
}

// SummaryTable renders one row per thread
func SummaryTable(s *report.Summary) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("THREAD", "PAGES", "FOUND", "SAVED", "DUPLICATE", "TOO SMALL", "FAILED")

	for _, th := range s.Threads {
		name := th.URL
		if th.Skipped {
			name += " (skipped)"
		}
		t.Row(
			name,
			strconv.Itoa(th.PagesFetched),
			strconv.Itoa(th.ImagesFound),
			strconv.Itoa(th.Stats.Saved),
			strconv.Itoa(th.Stats.Duplicate),
			strconv.Itoa(th.Stats.FilteredSmall),
			strconv.Itoa(th.Stats.Failed),
		)
	}
	return t.String()
}
