package forum

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/url"

	"forumscraper/pkg/errors"
	"forumscraper/pkg/logger"
)

// maxConsecutiveFailures ends open-ended pagination when pages keep failing
const maxConsecutiveFailures = 3

// PageFetcher downloads the HTML of a thread page
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

// EmitFunc receives the image URLs found on one page. Returning an error
// stops enumeration.
type EmitFunc func(page int, urls []string) error

// Enumerator walks the pages of one thread sequentially
type Enumerator struct {
	fetcher  PageFetcher
	settings Settings
	logger   logger.Logger

	PagesFetched int
	PagesFailed  int
	ImagesFound  int
}

// NewEnumerator creates an enumerator for the thread described by s
func NewEnumerator(fetcher PageFetcher, s Settings, log logger.Logger) *Enumerator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Enumerator{
		fetcher:  fetcher,
		settings: s,
		logger:   log.WithField("thread", s.Thread),
	}
}

// Run fetches each page, extracts its image URLs and passes them to emit.
// A page that cannot be fetched or parsed is logged and skipped. Open-ended
// pagination stops when a page repeats the previous page's HTML, returns
// 404, or several pages in a row fail.
func (e *Enumerator) Run(ctx context.Context, emit EmitFunc) error {
	base, err := ValidateThreadURL(e.settings.Thread)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeConfiguration, err, "cannot enumerate thread")
	}

	first, last, bounded := e.settings.Range()
	if bounded {
		for page := first; page <= last; page++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			html, err := e.fetch(ctx, page)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
			if err := e.process(base, page, html, emit); err != nil {
				return err
			}
		}
		return nil
	}

	var previous string
	failures := 0
	for page := first; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		html, fetchErr := e.fetch(ctx, page)
		if fetchErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var fe *errors.Error
			if stderrors.As(fetchErr, &fe) && fe.Type == errors.ErrorTypeHTTPStatus && fe.Code == http.StatusNotFound {
				e.logger.InfoWithFields("Reached end of thread", map[string]interface{}{"page": page, "reason": "not found"})
				return nil
			}
			failures++
			if failures >= maxConsecutiveFailures {
				e.logger.WarnWithFields("Stopping after repeated page failures", map[string]interface{}{"page": page})
				return nil
			}
			continue
		}
		failures = 0

		if page > first && html == previous {
			e.logger.InfoWithFields("Reached end of thread", map[string]interface{}{"page": page, "reason": "repeated page"})
			return nil
		}
		previous = html

		if err := e.process(base, page, html, emit); err != nil {
			return err
		}
	}
}

func (e *Enumerator) fetch(ctx context.Context, page int) (string, error) {
	pageURL := e.settings.URL(page)
	html, err := e.fetcher.FetchPage(ctx, pageURL)
	if err != nil {
		e.PagesFailed++
		e.logger.WithError(err).WarnWithFields("Page fetch failed", map[string]interface{}{
			"page": page,
			"url":  pageURL,
		})
		return "", err
	}
	e.PagesFetched++
	return html, nil
}

func (e *Enumerator) process(base *url.URL, page int, html string, emit EmitFunc) error {
	urls, err := ExtractImageURLs(html, base)
	if err != nil {
		e.PagesFailed++
		e.logger.WithError(err).WarnWithFields("Page parse failed", map[string]interface{}{"page": page})
		return nil
	}

	e.ImagesFound += len(urls)
	logger.LogThreadProgress(e.logger, e.settings.Thread, page, len(urls))
	if len(urls) == 0 {
		return nil
	}
	return emit(page, urls)
}
