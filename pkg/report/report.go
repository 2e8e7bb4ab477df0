package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"forumscraper/pkg/errors"
	"forumscraper/pkg/logger"
	"forumscraper/pkg/stats"
	"forumscraper/pkg/storage"

	"github.com/jszwec/csvutil"
)

const (
	// LogFileName is the per-item download log written at the output root
	LogFileName = "downloads_log.csv"
	// SummaryFileName is the run summary written at the output root
	SummaryFileName = "summary.json"

	// StatusSaved marks a row whose image was written
	StatusSaved = "✓"
)

// Row is one line of the download log
type Row struct {
	Row       int    `csv:"Row"`
	Filename  string `csv:"Filename"`
	FullURL   string `csv:"Full_URL"`
	SizeBytes int    `csv:"Size_Bytes,omitempty"`
	Status    string `csv:"Status"`
}

// ThreadSummary describes the processing of one thread
type ThreadSummary struct {
	URL          string         `json:"url"`
	Host         string         `json:"host,omitempty"`
	Directory    string         `json:"directory,omitempty"`
	PagesFetched int            `json:"pages_fetched"`
	PagesFailed  int            `json:"pages_failed"`
	ImagesFound  int            `json:"images_found"`
	Seeded       int            `json:"seeded,omitempty"`
	Stats        stats.RunStats `json:"stats"`
	Skipped      bool           `json:"skipped,omitempty"`
	Error        string         `json:"error,omitempty"`
	Duration     time.Duration  `json:"duration_ns"`
}

// Summary is the result of a whole run
type Summary struct {
	OutputRoot string          `json:"output_root"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Threads    []ThreadSummary `json:"threads"`
	Total      stats.RunStats  `json:"total"`
	Cancelled  bool            `json:"cancelled,omitempty"`
}

// Duration returns how long the run took
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Recorder collects download log rows from concurrent consumers and writes
// the report files at the end of a run
type Recorder struct {
	mu     sync.Mutex
	rows   []Row
	dir    string
	logger logger.Logger
}

// NewRecorder creates a recorder writing into dir
func NewRecorder(dir string, log logger.Logger) *Recorder {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Recorder{dir: dir, logger: log}
}

// Add appends a row and assigns it the next row number
func (r *Recorder) Add(filename, url string, size int, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, Row{
		Row:       len(r.rows) + 1,
		Filename:  filename,
		FullURL:   url,
		SizeBytes: size,
		Status:    status,
	})
}

// Rows returns a copy of the recorded rows
func (r *Recorder) Rows() []Row {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := make([]Row, len(r.rows))
	copy(rows, r.rows)
	return rows
}

// Len returns the number of recorded rows
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// WriteLog writes the download log. With no rows only the header is written.
func (r *Recorder) WriteLog() (string, error) {
	rows := r.Rows()

	var data []byte
	var err error
	if len(rows) == 0 {
		header, herr := csvutil.Header(Row{}, "csv")
		if herr != nil {
			return "", errors.Wrap(errors.ErrorTypeFilesystem, herr, "encode download log header")
		}
		data = []byte(strings.Join(header, ",") + "\n")
	} else {
		data, err = csvutil.Marshal(rows)
		if err != nil {
			return "", errors.Wrap(errors.ErrorTypeFilesystem, err, "encode download log")
		}
	}

	if err := storage.WriteFileAtomic(r.dir, LogFileName, data); err != nil {
		return "", errors.Wrap(errors.ErrorTypeFilesystem, err, "write %s", LogFileName)
	}

	path := filepath.Join(r.dir, LogFileName)
	r.logger.DebugWithFields("Download log written", map[string]interface{}{
		"path": path,
		"rows": len(rows),
	})
	return path, nil
}

// WriteSummary writes s as indented JSON
func (r *Recorder) WriteSummary(s *Summary) (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrorTypeFilesystem, err, "encode summary")
	}
	data = append(data, '\n')

	if err := storage.WriteFileAtomic(r.dir, SummaryFileName, data); err != nil {
		return "", errors.Wrap(errors.ErrorTypeFilesystem, err, "write %s", SummaryFileName)
	}

	path := filepath.Join(r.dir, SummaryFileName)
	r.logger.DebugWithFields("Summary written", map[string]interface{}{
		"path":      path,
		"threads":   len(s.Threads),
		"attempted": s.Total.Attempted,
	})
	return path, nil
}

// StatusFor renders the Status column for an outcome
func StatusFor(o stats.Outcome, width, height int, err error) string {
	switch o {
	case stats.OutcomeSaved:
		return StatusSaved
	case stats.OutcomeFilteredSmall:
		return fmt.Sprintf("too_small %dx%d", width, height)
	case stats.OutcomeFailed:
		if err != nil {
			return "failed " + err.Error()
		}
		return "failed"
	default:
		return string(o)
	}
}
