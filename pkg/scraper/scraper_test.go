package scraper

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"forumscraper/pkg/config"
	"forumscraper/pkg/errors"
	"forumscraper/pkg/logger"
	"forumscraper/pkg/report"
	"forumscraper/pkg/stats"
	"forumscraper/pkg/ui"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, seed uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: seed, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// forumServer serves thread pages and images from in-memory maps
type forumServer struct {
	*httptest.Server
	mu     sync.Mutex
	pages  map[string]string
	images map[string][]byte
	hits   map[string]int
}

func newForumServer(t *testing.T) *forumServer {
	t.Helper()
	fs := &forumServer{
		pages:  map[string]string{},
		images: map[string][]byte{},
		hits:   map[string]int{},
	}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.hits[r.URL.Path]++
		page, isPage := fs.pages[r.URL.Path]
		img, isImage := fs.images[r.URL.Path]
		fs.mu.Unlock()

		switch {
		case isPage:
			w.Header().Set("Content-Type", "text/html")
			_, _ = io.WriteString(w, page)
		case isImage:
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(img)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *forumServer) page(path string, imgs ...string) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, src := range imgs {
		fmt.Fprintf(&b, `<img src="%s">`, src)
	}
	b.WriteString("</body></html>")
	fs.mu.Lock()
	fs.pages[path] = b.String()
	fs.mu.Unlock()
}

func (fs *forumServer) image(path string, data []byte) {
	fs.mu.Lock()
	fs.images[path] = data
	fs.mu.Unlock()
}

func (fs *forumServer) hitCount(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hits[path]
}

func (fs *forumServer) totalHits() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n := 0
	for _, c := range fs.hits {
		n += c
	}
	return n
}

func testConfig(root string, threads ...string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Forum.Threads = threads
	cfg.Forum.PageAppenderBefore = "/page-"
	cfg.Download.Workers = 3
	cfg.Download.Timeout = 5 * time.Second
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond
	cfg.Output.BaseDirectory = root
	return cfg
}

func newTestScraper(t *testing.T, cfg *config.Config) *Scraper {
	t.Helper()
	s, err := New(cfg, WithLogger(logger.NewNopLogger()), WithProgress(io.Discard, ui.ModeQuiet))
	require.NoError(t, err)
	return s
}

func imageFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "p") {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestRunDuplicateContent(t *testing.T) {
	srv := newForumServer(t)
	a := pngBytes(t, 120, 120, 1)
	srv.image("/img/a.png", a)
	srv.image("/img/a-copy.png", a)
	srv.image("/img/b.png", pngBytes(t, 120, 120, 2))
	srv.page("/threads/cats/page-1", "/img/a.png", "/img/a-copy.png", "/img/b.png")

	root := t.TempDir()
	s := newTestScraper(t, testConfig(root, srv.URL+"/threads/cats"))

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, stats.RunStats{Attempted: 3, Saved: 2, Duplicate: 1}, summary.Total)
	assert.True(t, summary.Total.Consistent())
	require.Len(t, summary.Threads, 1)
	assert.Equal(t, 1, summary.Threads[0].PagesFetched)
	assert.Equal(t, 3, summary.Threads[0].ImagesFound)

	dir := filepath.Join(root, "127.0.0.1", "threads", "cats")
	assert.Equal(t, dir, summary.Threads[0].Directory)
	files := imageFiles(t, dir)
	require.Len(t, files, 2)
	for _, name := range files {
		assert.Regexp(t, `^p1_[0-9a-f]{8}\.png$`, name)
	}
}

func TestRunFiltersSmallImages(t *testing.T) {
	srv := newForumServer(t)
	srv.image("/img/small.png", pngBytes(t, 50, 50, 1))
	srv.page("/threads/1/page-1", "/img/small.png")

	root := t.TempDir()
	cfg := testConfig(root, srv.URL+"/threads/1")
	cfg.Download.MinWidth = 100
	cfg.Download.MinHeight = 100
	s := newTestScraper(t, cfg)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, stats.RunStats{Attempted: 1, FilteredSmall: 1}, summary.Total)
	assert.Empty(t, imageFiles(t, filepath.Join(root, "127.0.0.1", "threads", "1")))
}

func solidPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRunSmallFilesWithDefaultDownloadSettings(t *testing.T) {
	srv := newForumServer(t)
	thumb := solidPNG(t, 50, 50, color.RGBA{R: 200, A: 255})
	big := solidPNG(t, 200, 200, color.RGBA{B: 200, A: 255})
	require.Less(t, len(thumb), 1000)
	require.Less(t, len(big), 1000)
	srv.image("/img/thumb.png", thumb)
	srv.image("/img/big.png", big)
	srv.image("/img/big-again.png", big)
	srv.page("/threads/tiny", "/img/thumb.png", "/img/big.png", "/img/big-again.png")

	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Forum.Threads = []string{srv.URL + "/threads/tiny"}
	cfg.Forum.UsePagination = false
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Output.BaseDirectory = root
	cfg.Download.MinWidth = 100
	cfg.Download.MinHeight = 100
	s := newTestScraper(t, cfg)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, stats.RunStats{Attempted: 3, Saved: 1, Duplicate: 1, FilteredSmall: 1}, summary.Total)
	assert.Len(t, imageFiles(t, filepath.Join(root, "127.0.0.1", "threads", "tiny")), 1)
}

func TestNewFailsOnUnwritableRoot(t *testing.T) {
	srv := newForumServer(t)
	srv.image("/img/a.png", pngBytes(t, 10, 10, 1))
	srv.page("/t/page-1", "/img/a.png")

	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := New(testConfig(blocker, srv.URL+"/t"), WithLogger(logger.NewNopLogger()))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.Equal(t, 0, srv.totalHits(), "nothing is fetched when the root is unusable")
}

func TestNewFailsOnInvalidConfig(t *testing.T) {
	cfg := testConfig(t.TempDir())
	_, err := New(cfg, WithLogger(logger.NewNopLogger()))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))

	_, err = New(nil)
	assert.True(t, errors.IsFatal(err))
}

func TestRunIsolatesFailedImages(t *testing.T) {
	srv := newForumServer(t)
	srv.image("/img/ok.png", pngBytes(t, 20, 20, 1))
	srv.page("/t/page-1", "/img/missing.png", "/img/ok.png")

	root := t.TempDir()
	s := newTestScraper(t, testConfig(root, srv.URL+"/t"))

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, stats.RunStats{Attempted: 2, Saved: 1, Failed: 1}, summary.Total)
	assert.Equal(t, 1, srv.hitCount("/img/missing.png"), "404 is not retried")
}

func TestRunSkipsFailedPage(t *testing.T) {
	srv := newForumServer(t)
	srv.image("/img/a.png", pngBytes(t, 20, 20, 1))
	srv.image("/img/c.png", pngBytes(t, 20, 20, 3))
	srv.page("/t/page-1", "/img/a.png")
	srv.page("/t/page-3", "/img/c.png")

	cfg := testConfig(t.TempDir(), srv.URL+"/t")
	cfg.Forum.EndPage = 3
	s := newTestScraper(t, cfg)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	th := summary.Threads[0]
	assert.Equal(t, 2, th.PagesFetched)
	assert.Equal(t, 1, th.PagesFailed)
	assert.Equal(t, 2, summary.Total.Saved)
}

func TestRunOpenEndedPagination(t *testing.T) {
	srv := newForumServer(t)
	srv.image("/img/a.png", pngBytes(t, 20, 20, 1))
	srv.image("/img/b.png", pngBytes(t, 20, 20, 2))
	srv.page("/t/page-1", "/img/a.png")
	srv.page("/t/page-2", "/img/b.png")
	srv.page("/t/page-3", "/img/b.png")

	cfg := testConfig(t.TempDir(), srv.URL+"/t")
	cfg.Forum.EndPage = 0
	s := newTestScraper(t, cfg)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Threads[0].PagesFetched, "page 3 repeats page 2 and ends the thread")
	assert.Equal(t, 0, srv.hitCount("/t/page-4"))
	assert.Equal(t, stats.RunStats{Attempted: 2, Saved: 2}, summary.Total)
}

func TestRunSharesRegistryAcrossThreads(t *testing.T) {
	srv := newForumServer(t)
	shared := pngBytes(t, 20, 20, 9)
	srv.image("/img/shared.png", shared)
	srv.page("/one/page-1", "/img/shared.png")
	srv.page("/two/page-1", "/img/shared.png")

	root := t.TempDir()
	s := newTestScraper(t, testConfig(root, srv.URL+"/one", srv.URL+"/two"))

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Threads, 2)
	assert.Equal(t, 1, summary.Threads[0].Stats.Saved)
	assert.Equal(t, 1, summary.Threads[1].Stats.Duplicate)
	assert.Equal(t, stats.RunStats{Attempted: 2, Saved: 1, Duplicate: 1}, summary.Total)
}

func TestRunSkipsExistingFilesOnRerun(t *testing.T) {
	srv := newForumServer(t)
	srv.image("/img/a.png", pngBytes(t, 20, 20, 1))
	srv.page("/t/page-1", "/img/a.png")

	root := t.TempDir()
	first, err := newTestScraper(t, testConfig(root, srv.URL+"/t")).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Total.Saved)

	second, err := newTestScraper(t, testConfig(root, srv.URL+"/t")).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Threads[0].Seeded)
	assert.Equal(t, stats.RunStats{Attempted: 1, Duplicate: 1}, second.Total)
	assert.Len(t, imageFiles(t, filepath.Join(root, "127.0.0.1", "t")), 1)
}

func TestRunWritesReport(t *testing.T) {
	srv := newForumServer(t)
	srv.image("/img/a.png", pngBytes(t, 20, 20, 1))
	srv.page("/t/page-1", "/img/a.png", "/img/gone.png")

	root := t.TempDir()
	_, err := newTestScraper(t, testConfig(root, srv.URL+"/t")).Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, report.LogFileName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Row,Filename,Full_URL,Size_Bytes,Status", lines[0])
	assert.Contains(t, string(data), srv.URL+"/img/gone.png")
	assert.Contains(t, string(data), report.StatusSaved)

	assert.FileExists(t, filepath.Join(root, report.SummaryFileName))
}

func TestRunWithoutReport(t *testing.T) {
	srv := newForumServer(t)
	srv.image("/img/a.png", pngBytes(t, 20, 20, 1))
	srv.page("/t/page-1", "/img/a.png")

	root := t.TempDir()
	cfg := testConfig(root, srv.URL+"/t")
	cfg.Output.WriteReport = false
	_, err := newTestScraper(t, cfg).Run(context.Background())
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(root, report.LogFileName))
	assert.NoFileExists(t, filepath.Join(root, report.SummaryFileName))
}

func TestRunCancelled(t *testing.T) {
	srv := newForumServer(t)
	srv.page("/t/page-1")

	s := newTestScraper(t, testConfig(t.TempDir(), srv.URL+"/t"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := s.Run(ctx)
	require.NoError(t, err)
	assert.True(t, summary.Cancelled)
	assert.Empty(t, summary.Threads)
	assert.True(t, summary.Total.Consistent())
}

func TestSettings(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Forum.PageAppenderBefore = "?page="
	cfg.Forum.PageValueMultiply = 20
	cfg.Forum.StartPage = 2
	cfg.Forum.EndPage = 4

	st := Settings(cfg, "https://forum.example.com/t/")
	assert.Equal(t, "https://forum.example.com/t?page=40", st.URL(2))
	assert.False(t, st.OpenEnded())
}
