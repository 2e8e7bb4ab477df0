package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"forumscraper/pkg/stats"
)

// Mode selects how much a ProgressDisplay prints
type Mode int

const (
	// ModeLive redraws one status line in place
	ModeLive Mode = iota
	// ModePlain prints only the per-thread result, for non-terminal output
	ModePlain
	// ModeVerbose prints one line per page and per image
	ModeVerbose
	// ModeQuiet prints nothing
	ModeQuiet
)

// ModeFor picks the display mode for out from the verbosity flags
func ModeFor(out io.Writer, verbose, quiet bool) Mode {
	switch {
	case quiet:
		return ModeQuiet
	case verbose:
		return ModeVerbose
	case IsTerminal(out):
		return ModeLive
	default:
		return ModePlain
	}
}

// ProgressDisplay keeps a single status line for the thread being scraped
type ProgressDisplay struct {
	mu         sync.Mutex
	out        io.Writer
	mode       Mode
	label      string
	page       int
	discovered int
	counts     stats.RunStats
	bytes      int64
	startTime  time.Time
	lastWidth  int
}

// NewProgressDisplay creates a display for one thread
func NewProgressDisplay(out io.Writer, label string, mode Mode) *ProgressDisplay {
	return &ProgressDisplay{
		out:       out,
		mode:      mode,
		label:     label,
		startTime: time.Now(),
	}
}

// PageScanned records that a page was enumerated with the given number of candidates
func (p *ProgressDisplay) PageScanned(page, images int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.page = page
	p.discovered += images
	if p.mode == ModeVerbose {
		fmt.Fprintf(p.out, "%s page %d: %d images\n", Magenta("→"), page, images)
		return
	}
	p.render()
}

// ItemDone records the outcome of one image
func (p *ProgressDisplay) ItemDone(outcome stats.Outcome, url string, size int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts.Attempted++
	switch outcome {
	case stats.OutcomeSaved:
		p.counts.Saved++
		p.bytes += int64(size)
	case stats.OutcomeDuplicate:
		p.counts.Duplicate++
	case stats.OutcomeFilteredSmall:
		p.counts.FilteredSmall++
	case stats.OutcomeFailed:
		p.counts.Failed++
	}

	if p.mode == ModeVerbose {
		p.printItem(outcome, url, size, err)
		return
	}
	p.render()
}

func (p *ProgressDisplay) printItem(outcome stats.Outcome, url string, size int, err error) {
	switch outcome {
	case stats.OutcomeSaved:
		fmt.Fprintf(p.out, "%s %s • %s\n", Green("✓"), url, FormatBytes(int64(size)))
	case stats.OutcomeDuplicate:
		fmt.Fprintf(p.out, "%s %s • duplicate\n", Dim("="), url)
	case stats.OutcomeFilteredSmall:
		fmt.Fprintf(p.out, "%s %s • too small\n", Yellow("-"), url)
	default:
		fmt.Fprintf(p.out, "%s %s • %v\n", Red("✗"), url, err)
	}
}

// render redraws the status line in place
func (p *ProgressDisplay) render() {
	if p.mode != ModeLive {
		return
	}

	line := fmt.Sprintf("%s p%d • %d/%d • %s saved • %d dup • %d small • %s",
		Cyan(p.label),
		p.page,
		p.counts.Attempted,
		p.discovered,
		Green(fmt.Sprint(p.counts.Saved)),
		p.counts.Duplicate,
		p.counts.FilteredSmall,
		FormatBytes(p.bytes),
	)
	if p.counts.Failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", p.counts.Failed))
	}

	pad := ""
	if n := p.lastWidth - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	p.lastWidth = len(line)
	fmt.Fprintf(p.out, "\r%s%s", line, pad)
}

// Counts returns the outcomes seen so far
func (p *ProgressDisplay) Counts() stats.RunStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts
}

// Complete ends the status line and prints a one-line result for the thread
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.mode == ModeQuiet {
		return
	}
	if p.lastWidth > 0 {
		fmt.Fprintln(p.out)
	}

	elapsed := time.Since(p.startTime)
	fmt.Fprintf(p.out, "%s %s: saved %d of %d images (%s) in %s\n",
		Green("✓"),
		p.label,
		p.counts.Saved,
		p.counts.Attempted,
		FormatBytes(p.bytes),
		FormatDuration(elapsed),
	)
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
