package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"forumscraper/pkg/report"
	"forumscraper/pkg/stats"

	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	SetColor(false)
	m.Run()
}

func TestModeFor(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, ModeQuiet, ModeFor(&buf, true, true))
	assert.Equal(t, ModeVerbose, ModeFor(&buf, true, false))
	assert.Equal(t, ModePlain, ModeFor(&buf, false, false), "a buffer is not a terminal")
}

func TestProgressDisplayCounts(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "example/t", ModePlain)

	p.PageScanned(1, 4)
	p.ItemDone(stats.OutcomeSaved, "https://x/a.jpg", 2048, nil)
	p.ItemDone(stats.OutcomeDuplicate, "https://x/b.jpg", 0, nil)
	p.ItemDone(stats.OutcomeFilteredSmall, "https://x/c.jpg", 0, nil)
	p.ItemDone(stats.OutcomeFailed, "https://x/d.jpg", 0, errors.New("404"))

	counts := p.Counts()
	assert.Equal(t, stats.RunStats{Attempted: 4, Saved: 1, Duplicate: 1, FilteredSmall: 1, Failed: 1}, counts)
	assert.True(t, counts.Consistent())
	assert.Empty(t, buf.String(), "plain mode only prints on completion")

	p.Complete()
	assert.Contains(t, buf.String(), "example/t: saved 1 of 4 images (2.0 KB)")
}

func TestProgressDisplayVerbose(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "example/t", ModeVerbose)

	p.PageScanned(2, 3)
	p.ItemDone(stats.OutcomeSaved, "https://x/a.jpg", 10, nil)
	p.ItemDone(stats.OutcomeFailed, "https://x/d.jpg", 0, errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "page 2: 3 images")
	assert.Contains(t, out, "✓ https://x/a.jpg • 10 B")
	assert.Contains(t, out, "✗ https://x/d.jpg • boom")
}

func TestProgressDisplayLive(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "example/t", ModeLive)

	p.PageScanned(1, 2)
	p.ItemDone(stats.OutcomeSaved, "https://x/a.jpg", 10, nil)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\r"))
	assert.Contains(t, out, "1/2 • 1 saved")
}

func TestProgressDisplayQuiet(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "example/t", ModeQuiet)

	p.PageScanned(1, 1)
	p.ItemDone(stats.OutcomeSaved, "https://x/a.jpg", 10, nil)
	p.Complete()

	assert.Empty(t, buf.String())
	assert.Equal(t, 1, p.Counts().Saved)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	start := time.Now()
	PrintSummary(&buf, &report.Summary{
		OutputRoot: "/tmp/out",
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Threads: []report.ThreadSummary{
			{URL: "https://forum.example.com/t/1", PagesFetched: 2, ImagesFound: 3, Stats: stats.RunStats{Attempted: 3, Saved: 2, Duplicate: 1}},
			{URL: "ftp://bad", Skipped: true},
		},
		Total: stats.RunStats{Attempted: 3, Saved: 2, Duplicate: 1},
	})

	out := buf.String()
	assert.Contains(t, out, "https://forum.example.com/t/1")
	assert.Contains(t, out, "ftp://bad (skipped)")
	assert.Contains(t, out, "3 attempted: 2 saved, 1 duplicate, 0 too small, 0 failed in 2s")
	assert.Contains(t, out, "/tmp/out")
}

func TestPrintSummaryNil(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, nil)
	assert.Empty(t, buf.String())
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 MB", FormatBytes(2*1024*1024))

	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h1m", FormatDuration(61*time.Minute))
}
