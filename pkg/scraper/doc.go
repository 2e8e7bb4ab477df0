// Package scraper runs a complete download of one or more forum threads.
//
// For every configured thread the scraper derives the output directory from
// the thread's host and path, seeds the fingerprint registry from files left
// by an earlier run, and then runs two goroutines side by side: one walks the
// thread's pages and submits every image URL to a worker pool, the other
// drains the pool's results into the progress display and the download log.
//
// Usage:
//
//	cfg, err := config.Load("", nil)
//	if err != nil {
//	    return err
//	}
//	s, err := scraper.New(cfg)
//	if err != nil {
//	    return err // configuration problem or unwritable output root
//	}
//	summary, err := s.Run(ctx)
//
// Failures of single pages or images are counted in the Summary and never
// stop the run. The fingerprint registry is shared by all threads of a run,
// so an image posted in two threads is saved once.
package scraper
