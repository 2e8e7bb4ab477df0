package forum

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var imageLink = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|svg|webp)(\?|$)`)

// ExtractImageURLs returns every <img src> and every <a href> that points at
// an image file, resolved against the scheme and host of base. data: URIs and
// non-http(s) results are dropped. Order is first appearance, without repeats.
func ExtractImageURLs(html string, base *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	root := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/"}
	seen := make(map[string]struct{})
	var urls []string

	add := func(ref string) {
		ref = strings.TrimSpace(ref)
		if ref == "" || strings.HasPrefix(strings.ToLower(ref), "data:") {
			return
		}
		parsed, err := url.Parse(ref)
		if err != nil {
			return
		}
		abs := root.ResolveReference(parsed)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		s := abs.String()
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		urls = append(urls, s)
	}

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		add(src)
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if imageLink.MatchString(href) {
			add(href)
		}
	})

	return urls, nil
}
