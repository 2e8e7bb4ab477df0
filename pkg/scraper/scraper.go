package scraper

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"os"
	"time"

	"forumscraper/internal/downloader"
	"forumscraper/pkg/config"
	"forumscraper/pkg/dedup"
	"forumscraper/pkg/errors"
	"forumscraper/pkg/fetch"
	"forumscraper/pkg/forum"
	"forumscraper/pkg/logger"
	"forumscraper/pkg/ratelimit"
	"forumscraper/pkg/report"
	"forumscraper/pkg/stats"
	"forumscraper/pkg/storage"
	"forumscraper/pkg/ui"

	"golang.org/x/sync/errgroup"
)

// Summary is the result of a run
type Summary = report.Summary

// Fetcher downloads thread pages and image bytes
type Fetcher interface {
	forum.PageFetcher
	downloader.ImageFetcher
}

// Option customises a Scraper
type Option func(*Scraper)

// WithLogger sets the logger used by every component of the run
func WithLogger(l logger.Logger) Option {
	return func(s *Scraper) { s.logger = l }
}

// WithHTTPClient replaces the http.Client of the default fetcher
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) { s.httpClient = c }
}

// WithFetcher replaces the default HTTP fetcher entirely
func WithFetcher(f Fetcher) Option {
	return func(s *Scraper) { s.fetcher = f }
}

// WithProgress sets where progress is printed and how much
func WithProgress(w io.Writer, mode ui.Mode) Option {
	return func(s *Scraper) {
		s.out = w
		s.mode = mode
	}
}

// Scraper downloads the images of every configured thread
type Scraper struct {
	config     *config.Config
	fetcher    Fetcher
	httpClient *http.Client
	store      *storage.Manager
	registry   *dedup.Registry
	total      *stats.Aggregator
	recorder   *report.Recorder
	logger     logger.Logger
	out        io.Writer
	mode       ui.Mode
}

// New validates cfg and prepares a run. It fails with a configuration error
// for invalid settings and with a fatal filesystem error when the output
// root cannot be written.
func New(cfg *config.Config, opts ...Option) (*Scraper, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfiguration, "no configuration given")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Scraper{
		config:   cfg,
		registry: dedup.NewRegistry(),
		total:    stats.NewAggregator(),
		out:      os.Stdout,
		mode:     ui.ModeFor(os.Stdout, false, false),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.GetLogger()
	}

	store, err := storage.NewManager(cfg.Output.BaseDirectory, s.logger)
	if err != nil {
		s.logger.WithError(err).Error("Output directory is not usable")
		return nil, err
	}
	s.store = store
	s.recorder = report.NewRecorder(store.Root(), s.logger)

	if s.fetcher == nil {
		s.fetcher = fetch.NewClient(fetch.Options{
			Timeout:     cfg.Download.Timeout,
			UserAgent:   cfg.HTTP.UserAgent,
			MinBytes:    cfg.Download.MinBytes,
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
			Limiter:     ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute),
			HTTPClient:  s.httpClient,
			Logger:      s.logger,
		})
	}

	return s, nil
}

// Registry returns the fingerprint registry shared by every thread of the run
func (s *Scraper) Registry() *dedup.Registry {
	return s.registry
}

// Run scrapes every configured thread in order. Item and page failures are
// counted in the summary and never abort the run. A cancelled ctx stops the
// run early; the partial summary is still returned and written.
func (s *Scraper) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		OutputRoot: s.store.Root(),
		StartedAt:  time.Now(),
	}

	s.logger.InfoWithFields("Starting run", map[string]interface{}{
		"threads": len(s.config.Forum.Threads),
		"workers": s.config.Download.Workers,
		"output":  s.store.Root(),
	})

	for _, thread := range s.config.Forum.Threads {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}

		ts := s.scrapeThread(ctx, thread)
		s.total.Add(ts.Stats)
		summary.Threads = append(summary.Threads, ts)
	}
	if ctx.Err() != nil {
		summary.Cancelled = true
	}

	summary.Total = s.total.Snapshot()
	summary.FinishedAt = time.Now()

	if s.config.Output.WriteReport {
		s.writeReport(summary)
	}

	s.logger.InfoWithFields("Run finished", map[string]interface{}{
		"attempted":      summary.Total.Attempted,
		"saved":          summary.Total.Saved,
		"duplicate":      summary.Total.Duplicate,
		"filtered_small": summary.Total.FilteredSmall,
		"failed":         summary.Total.Failed,
		"cancelled":      summary.Cancelled,
		"duration":       summary.Duration(),
	})
	return summary, nil
}

func (s *Scraper) writeReport(summary *Summary) {
	if _, err := s.recorder.WriteLog(); err != nil {
		s.logger.WithError(err).Warn("Failed to write download log")
	}
	if _, err := s.recorder.WriteSummary(summary); err != nil {
		s.logger.WithError(err).Warn("Failed to write summary")
	}
}

// Settings converts the forum section of the configuration for one thread
func Settings(cfg *config.Config, thread string) forum.Settings {
	return forum.Settings{
		Thread:        thread,
		Before:        cfg.Forum.PageAppenderBefore,
		After:         cfg.Forum.PageAppenderAfter,
		StartPage:     cfg.Forum.StartPage,
		EndPage:       cfg.Forum.EndPage,
		Multiply:      cfg.Forum.PageValueMultiply,
		UsePagination: cfg.Forum.UsePagination,
	}
}

// scrapeThread runs the enumerator and the worker pool of one thread
// concurrently: pages are enumerated while earlier images are downloaded.
func (s *Scraper) scrapeThread(ctx context.Context, thread string) report.ThreadSummary {
	start := time.Now()
	ts := report.ThreadSummary{URL: thread}
	log := s.logger.WithField("thread", thread)

	u, err := forum.ValidateThreadURL(thread)
	if err != nil {
		log.WithError(err).Warn("Skipping thread with invalid URL")
		ts.Skipped = true
		ts.Error = err.Error()
		return ts
	}
	host, err := storage.HostLabel(thread)
	if err != nil {
		log.WithError(err).Warn("Skipping thread without a usable host")
		ts.Skipped = true
		ts.Error = err.Error()
		return ts
	}

	dir := s.store.Planner().Dir(host, u.Path)
	ts.Host = host
	ts.Directory = dir
	if err := s.store.EnsureDir(ctx, dir); err != nil {
		log.WithError(err).Warn("Failed to create thread directory")
	}

	if s.config.Download.SkipExisting {
		for _, short := range s.store.ExistingHashes(dir) {
			if s.registry.SeedPrefix(short) {
				ts.Seeded++
			}
		}
		if ts.Seeded > 0 {
			log.InfoWithFields("Seeded registry from existing files", map[string]interface{}{
				"directory": dir,
				"files":     ts.Seeded,
			})
		}
	}

	threadStats := stats.NewAggregator()
	pool := downloader.NewWorkerPool(ctx, downloader.Options{
		Workers:   s.config.Download.Workers,
		MinWidth:  s.config.Download.MinWidth,
		MinHeight: s.config.Download.MinHeight,
		Fetcher:   s.fetcher,
		Store:     s.store,
		Registry:  s.registry,
		Stats:     threadStats,
		Logger:    log,
	})
	pool.Start()

	progress := ui.NewProgressDisplay(s.out, host+u.Path, s.mode)
	enumerator := forum.NewEnumerator(s.fetcher, Settings(s.config, thread), log)

	var g errgroup.Group
	g.Go(func() error {
		defer pool.Stop()
		return enumerator.Run(ctx, func(page int, urls []string) error {
			progress.PageScanned(page, len(urls))
			for _, imageURL := range urls {
				item := downloader.WorkItem{
					Page:       page,
					ImageURL:   imageURL,
					Host:       host,
					ThreadPath: u.Path,
				}
				if err := pool.Submit(item); err != nil {
					return err
				}
			}
			return nil
		})
	})
	g.Go(func() error {
		for res := range pool.Results() {
			s.record(progress, res)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		switch {
		case ctx.Err() != nil, stderrors.Is(err, downloader.ErrPoolClosed):
			log.Warn("Thread interrupted")
			ts.Error = "interrupted"
		default:
			log.WithError(err).Error("Thread enumeration failed")
			ts.Error = err.Error()
		}
	}
	progress.Complete()

	ts.PagesFetched = enumerator.PagesFetched
	ts.PagesFailed = enumerator.PagesFailed
	ts.ImagesFound = enumerator.ImagesFound
	ts.Stats = threadStats.Snapshot()
	ts.Duration = time.Since(start)

	log.InfoWithFields("Thread finished", map[string]interface{}{
		"pages":     ts.PagesFetched,
		"attempted": ts.Stats.Attempted,
		"saved":     ts.Stats.Saved,
		"duplicate": ts.Stats.Duplicate,
		"failed":    ts.Stats.Failed,
	})
	return ts
}

func (s *Scraper) record(progress *ui.ProgressDisplay, res downloader.Result) {
	progress.ItemDone(res.Outcome, res.Item.ImageURL, res.Size, res.Err)

	size := 0
	if res.Outcome == stats.OutcomeSaved {
		size = res.Size
	}
	s.recorder.Add(res.Filename, res.Item.ImageURL, size, report.StatusFor(res.Outcome, res.Width, res.Height, res.Err))
}
