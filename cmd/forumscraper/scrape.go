package main

import (
	"fmt"
	"time"

	"forumscraper/pkg/config"
	"forumscraper/pkg/logger"
	"forumscraper/pkg/scraper"
	"forumscraper/pkg/ui"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape [thread-url...]",
	Short: "Download the images of one or more forum threads",
	Long: `Download every image referenced by the pages of the given forum threads.

Pages are built as <thread><page-before><page * page-multiply><page-after>.
With --end-page 0 pages are walked until the forum stops returning new ones.`,
	Example: `  forumscraper scrape https://forum.example.com/threads/cats.123/ --page-before page-
  forumscraper scrape https://forum.example.com/t/42 --page-before "?page=" --start-page 2 --end-page 10
  forumscraper scrape https://forum.example.com/t/42 --no-pagination --min-width 800 --min-height 600`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScrape(cmd, args)
	},
}

func runScrape(cmd *cobra.Command, args []string) error {
	flags := flagOverrides(cmd.Flags(), args)

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	out := cmd.OutOrStdout()
	mode := ui.ModeFor(out, verbose, quiet)

	// The live status line owns the terminal; keep console logs to problems
	// unless a level was asked for.
	if mode == ui.ModeLive && !cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = "warn"
	}
	if quiet && !cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = "error"
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	if mode != ui.ModeQuiet {
		ui.PrintBanner()
		ui.PrintInfo("Threads", fmt.Sprintf("%d", len(cfg.Forum.Threads)))
		ui.PrintInfo("Output", cfg.Output.BaseDirectory)
		ui.PrintInfo("Workers", fmt.Sprintf("%d", cfg.Download.Workers))
		if cfg.Download.MinWidth > 0 || cfg.Download.MinHeight > 0 {
			ui.PrintInfo("Minimum size", fmt.Sprintf("%dx%d", cfg.Download.MinWidth, cfg.Download.MinHeight))
		}
		fmt.Fprintln(out)
	}

	s, err := scraper.New(cfg, scraper.WithProgress(out, mode))
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	summary, err := s.Run(cmd.Context())
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	fmt.Fprintln(out)
	ui.PrintSummary(out, summary)

	if summary.Cancelled {
		ui.PrintWarning("Interrupted, partial results were kept")
		return &exitError{code: exitInterrupted, err: cmd.Context().Err()}
	}
	return nil
}

// flagOverrides collects the flags set on the command line so that only
// they override the configuration file and environment.
func flagOverrides(fs *pflag.FlagSet, args []string) map[string]interface{} {
	flags := make(map[string]interface{})
	if len(args) > 0 {
		flags["threads"] = args
	}

	stringFlags := []string{"output", "page-before", "page-after", "log-level"}
	for _, name := range stringFlags {
		if fs.Changed(name) {
			if v, err := fs.GetString(name); err == nil {
				flags[name] = v
			}
		}
	}

	intFlags := []string{"workers", "min-width", "min-height", "start-page", "end-page", "page-multiply", "rate-limit"}
	for _, name := range intFlags {
		if fs.Changed(name) {
			if v, err := fs.GetInt(name); err == nil {
				flags[name] = v
			}
		}
	}

	boolFlags := []string{"no-pagination", "no-report"}
	for _, name := range boolFlags {
		if fs.Changed(name) {
			if v, err := fs.GetBool(name); err == nil {
				flags[name] = v
			}
		}
	}

	if fs.Changed("timeout") {
		if v, err := fs.GetDuration("timeout"); err == nil {
			flags["timeout"] = v
		}
	}

	return flags
}

func addScrapeFlags(fs *pflag.FlagSet) {
	fs.StringP("output", "o", "", "output root directory (default ./downloads)")
	fs.IntP("workers", "w", config.DefaultConfig().Download.Workers, fmt.Sprintf("concurrent downloads (1-%d)", config.MaxWorkers))
	fs.Int("min-width", 0, "skip images narrower than this many pixels")
	fs.Int("min-height", 0, "skip images shorter than this many pixels")
	fs.String("page-before", "", "text inserted between the thread URL and the page value")
	fs.String("page-after", "", "text appended after the page value")
	fs.Int("start-page", 1, "first page to download")
	fs.Int("end-page", 1, "last page to download (0 walks until the thread ends)")
	fs.Int("page-multiply", 1, "multiply the page number by this value in page URLs")
	fs.Bool("no-pagination", false, "download the thread URL only")
	fs.Duration("timeout", 30*time.Second, "per request timeout")
	fs.Int("rate-limit", 0, "maximum requests per minute (0 for no limit)")
	fs.Bool("no-report", false, "do not write downloads_log.csv and summary.json")
}

func init() {
	addScrapeFlags(scrapeCmd.Flags())
	addScrapeFlags(rootCmd.Flags())

	rootCmd.AddCommand(scrapeCmd)
}
