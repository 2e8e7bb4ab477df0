package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"time"

	"forumscraper/pkg/errors"
	"forumscraper/pkg/logger"
	"forumscraper/pkg/retry"
)

var existingName = regexp.MustCompile(`^p\d+_([0-9a-f]{8})\.[A-Za-z0-9]+$`)

// Manager owns the output root and performs every filesystem write of a run
type Manager struct {
	root    string
	planner Planner
	retrier *retry.Retrier
	logger  logger.Logger
	saved   atomic.Int64
}

// NewManager creates the output root if needed and checks that it accepts
// writes. Failure is a fatal filesystem error: nothing can be saved.
func NewManager(root string, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	root = filepath.Clean(root)

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, outputRootError(root, err)
	}
	probe, err := os.CreateTemp(root, ".forumscraper-probe-*")
	if err != nil {
		return nil, outputRootError(root, err)
	}
	probeName := probe.Name()
	_ = probe.Close()
	if err := os.Remove(probeName); err != nil {
		return nil, outputRootError(root, err)
	}

	return &Manager{
		root:    root,
		planner: Planner{Root: root},
		logger:  log,
		retrier: retry.NewRetrier(&retry.Config{
			MaxAttempts: 2,
			Backoff:     &retry.ConstantBackoff{Delay: 50 * time.Millisecond},
			RetryIf:     errors.IsRetryable,
			Logger:      log,
		}),
	}, nil
}

func outputRootError(root string, err error) *errors.Error {
	return &errors.Error{
		Type:    errors.ErrorTypeFilesystem,
		Kind:    errors.KindOutputRoot,
		Message: "output directory " + root + " is not writable",
		Err:     err,
	}
}

// Root returns the output root
func (m *Manager) Root() string {
	return m.root
}

// Planner returns the path planner rooted at the output root
func (m *Manager) Planner() Planner {
	return m.planner
}

// EnsureDir creates dir and any missing parents. Calling it again, or from
// several workers at once, is harmless.
func (m *Manager) EnsureDir(ctx context.Context, dir string) error {
	return m.retrier.Do(ctx, func() error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(errors.ErrorTypeFilesystem, err, "cannot create directory %s", dir)
		}
		return nil
	})
}

// Save atomically writes data to dir/name and returns the final path. An
// existing file with the same bytes is left alone; one with different bytes
// is never replaced and the save fails.
func (m *Manager) Save(ctx context.Context, dir, name string, data []byte) (string, error) {
	path := filepath.Join(dir, name)
	err := m.retrier.Do(ctx, func() error {
		err := WriteFileExclusive(dir, name, data)
		if err == nil {
			return nil
		}
		if stderrors.Is(err, os.ErrExist) {
			existing, readErr := os.ReadFile(path)
			if readErr == nil && bytes.Equal(existing, data) {
				return nil
			}
			return errors.New(errors.ErrorTypeFilesystem, "%s already exists with different content", path)
		}
		return errors.Wrap(errors.ErrorTypeFilesystem, err, "cannot write %s", name)
	})
	if err != nil {
		return "", err
	}

	m.saved.Add(1)
	return path, nil
}

// SavedCount returns how many files this manager has written
func (m *Manager) SavedCount() int {
	return int(m.saved.Load())
}

// ExistingHashes lists the short hashes of p<page>_<hash8>.<ext> files
// already present in dir. A missing directory yields no hashes.
func (m *Manager) ExistingHashes(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.WithError(err).WarnWithFields("Cannot scan existing files", map[string]interface{}{
				"dir": dir,
			})
		}
		return nil
	}

	var hashes []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if match := existingName.FindStringSubmatch(entry.Name()); match != nil {
			hashes = append(hashes, match[1])
		}
	}
	return hashes
}
