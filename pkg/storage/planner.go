package storage

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/net/publicsuffix"

	"forumscraper/pkg/dedup"
)

// MaxSegmentLen caps every sanitized directory name
const MaxSegmentLen = 100

// Planner maps a thread and an image fingerprint to a location under Root.
// Every method is a pure function of its arguments.
type Planner struct {
	Root string
}

// Dir returns <root>/<host>/<thread segments...>
func (p Planner) Dir(host, threadPath string) string {
	parts := append([]string{p.Root, SanitizeHost(host)}, ThreadSegments(threadPath)...)
	return filepath.Join(parts...)
}

// Filename returns p<page>_<hash8>.<ext>
func (p Planner) Filename(page int, fp dedup.Fingerprint, ext string) string {
	return fmt.Sprintf("p%d_%s.%s", page, fp.Short(), ext)
}

// Plan returns the full output path for one image
func (p Planner) Plan(host, threadPath string, page int, fp dedup.Fingerprint, ext string) string {
	return filepath.Join(p.Dir(host, threadPath), p.Filename(page, fp, ext))
}

// HostLabel derives the directory name for a thread URL's host: the
// registrable domain without its public suffix, so forum.example.co.uk
// becomes "example". IP addresses and hosts without a known suffix are
// used as they are.
func HostLabel(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	if net.ParseIP(host) != nil {
		return SanitizeHost(host), nil
	}

	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return SanitizeHost(host), nil
	}
	suffix, _ := publicsuffix.PublicSuffix(host)
	label := strings.TrimSuffix(etld1, "."+suffix)
	if label == "" {
		label = etld1
	}
	return SanitizeHost(label), nil
}

// ThreadSegments splits a URL path into sanitized, non-empty directory names
func ThreadSegments(threadPath string) []string {
	var segments []string
	for _, raw := range strings.Split(threadPath, "/") {
		if raw == "" {
			continue
		}
		if s := SanitizeSegment(raw); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// SanitizeSegment URL-unescapes s, replaces every character outside
// [A-Za-z0-9_-] with '_' and truncates the result to MaxSegmentLen.
func SanitizeSegment(s string) string {
	if unescaped, err := url.PathUnescape(s); err == nil {
		s = unescaped
	}
	return sanitize(s, false)
}

// SanitizeHost is SanitizeSegment that also keeps dots, minus "." and ".."
func SanitizeHost(host string) string {
	s := sanitize(host, true)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

func sanitize(s string, keepDots bool) string {
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == MaxSegmentLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case r == '.' && keepDots:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		n++
	}
	return b.String()
}
