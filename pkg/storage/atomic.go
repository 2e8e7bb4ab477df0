package storage

import (
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// WriteFileAtomic writes data to dir/name through a temp file in the same
// directory followed by a rename, so readers never observe a partial file
// under the final name. An existing file is replaced.
func WriteFileAtomic(dir, name string, data []byte) error {
	return writeViaTemp(dir, name, data, os.Rename)
}

// WriteFileExclusive is WriteFileAtomic that never replaces an existing
// file. When dir/name already exists the returned error matches os.ErrExist.
func WriteFileExclusive(dir, name string, data []byte) error {
	return writeViaTemp(dir, name, data, linkNoReplace)
}

// linkNoReplace exposes tmp under final. Filesystems without hard links fall
// back to a rename guarded by an existence check.
func linkNoReplace(tmp, final string) error {
	err := os.Link(tmp, final)
	if err == nil || stderrors.Is(err, os.ErrExist) {
		return err
	}
	if _, statErr := os.Lstat(final); statErr == nil {
		return &os.LinkError{Op: "rename", Old: tmp, New: final, Err: os.ErrExist}
	}
	return os.Rename(tmp, final)
}

func writeViaTemp(dir, name string, data []byte, publish func(tmp, final string) error) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := publish(tmpName, filepath.Join(dir, name)); err != nil {
		return err
	}

	_ = syncDir(dir)
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
