package forum

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Settings describes how the pages of one thread are addressed
type Settings struct {
	Thread        string
	Before        string
	After         string
	StartPage     int
	EndPage       int
	Multiply      int
	UsePagination bool
}

// FirstPage is StartPage, never below 1
func (s Settings) FirstPage() int {
	if s.StartPage < 1 {
		return 1
	}
	return s.StartPage
}

// OpenEnded reports whether pages are walked until the thread runs out
// instead of up to EndPage.
func (s Settings) OpenEnded() bool {
	return s.UsePagination && (s.EndPage == 0 || s.EndPage < s.FirstPage())
}

// PageURL builds thread + before + page*multiply + after, with trailing
// slashes trimmed from the thread URL.
func PageURL(thread, before, after string, page, multiply int) string {
	if multiply < 1 {
		multiply = 1
	}
	return strings.TrimRight(thread, "/") + before + strconv.Itoa(page*multiply) + after
}

// URL returns the address of the given page. Without pagination every page
// is the bare thread URL.
func (s Settings) URL(page int) string {
	if !s.UsePagination {
		return strings.TrimRight(s.Thread, "/")
	}
	return PageURL(s.Thread, s.Before, s.After, page, s.Multiply)
}

// Range returns the first and last page of a bounded walk. ok is false for
// open-ended pagination. Without pagination the range is the single page 1.
func (s Settings) Range() (first, last int, ok bool) {
	if !s.UsePagination {
		return 1, 1, true
	}
	if s.OpenEnded() {
		return s.FirstPage(), 0, false
	}
	return s.FirstPage(), s.EndPage, true
}

// ValidateThreadURL checks that raw is an absolute http(s) URL with a host
func ValidateThreadURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid thread url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("thread url %q must start with http:// or https://", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("thread url %q has no host", raw)
	}
	return u, nil
}
