package fs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
)

// ErrDirSync indicates the parent directory could not be synced after rename.
//
// When returned, the new file is in place but its directory entry is not
// guaranteed durable across a crash. Detect with errors.Is(err, ErrDirSync).
var ErrDirSync = errors.New("dir sync")

// AtomicWriter replaces files atomically: write to a temp file in the target
// directory, fsync it, rename over the destination, fsync the directory.
// Readers observe either the old contents or the new, never a mix.
type AtomicWriter struct {
	fs FS
}

// NewAtomicWriter creates an AtomicWriter on fsys. Panics if fsys is nil.
func NewAtomicWriter(fsys FS) *AtomicWriter {
	if fsys == nil {
		panic("fs is nil")
	}

	return &AtomicWriter{fs: fsys}
}

// AtomicWriteOptions configures [AtomicWriter.Write].
type AtomicWriteOptions struct {
	// SyncDir controls whether the parent directory is synced after rename.
	SyncDir bool

	// Perm is the file mode, applied with an explicit chmod so the umask
	// cannot widen or narrow it. Must be non-zero.
	Perm os.FileMode
}

// DefaultAtomicWriteOptions returns the options used for vault documents:
// durable (SyncDir) with owner read/write.
func DefaultAtomicWriteOptions() AtomicWriteOptions {
	return AtomicWriteOptions{SyncDir: true, Perm: 0o600}
}

// WriteBlob writes data to path atomically using the default options.
func (w *AtomicWriter) WriteBlob(path string, data []byte) error {
	return w.Write(path, bytes.NewReader(data), DefaultAtomicWriteOptions())
}

// Write writes the contents of r to path atomically and, if opts.SyncDir is
// set, durably.
//
// On any failure before the rename the destination is untouched. If the
// directory sync step fails, the returned error satisfies
// errors.Is(err, ErrDirSync) and the file contents are already in place.
func (w *AtomicWriter) Write(path string, r io.Reader, opts AtomicWriteOptions) error {
	if r == nil {
		panic("reader is nil")
	}

	if path == "" {
		return errors.New("path is empty")
	}

	if opts.Perm == 0 {
		return errors.New("opts.Perm must be non-zero")
	}

	dir, base := filepath.Split(path)
	if base == "" || base == "." || base == string(os.PathSeparator) {
		return fmt.Errorf("path is invalid: %q", path)
	}

	if dir == "" {
		dir = "."
	}

	dir = filepath.Clean(dir)

	tmp, tmpPath, err := createTempFile(w.fs, dir, base, opts.Perm)
	if err != nil {
		return err
	}

	cleanup := func() error {
		closeErr := tmp.Close()
		if closeErr != nil {
			closeErr = fmt.Errorf("close temp file %q: %w", tmpPath, closeErr)
		}

		removeErr := w.fs.Remove(tmpPath)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			removeErr = fmt.Errorf("remove temp file %q: %w", tmpPath, removeErr)
		} else {
			removeErr = nil
		}

		return errors.Join(closeErr, removeErr)
	}

	if err := tmp.Chmod(opts.Perm); err != nil {
		return errors.Join(fmt.Errorf("chmod temp file %q: %w", tmpPath, err), cleanup())
	}

	if _, err := io.Copy(tmp, r); err != nil {
		return errors.Join(fmt.Errorf("write temp file %q: %w", tmpPath, err), cleanup())
	}

	if err := tmp.Sync(); err != nil {
		return errors.Join(fmt.Errorf("sync temp file %q: %w", tmpPath, err), cleanup())
	}

	if err := w.fs.Rename(tmpPath, path); err != nil {
		return errors.Join(fmt.Errorf("rename: %w", err), cleanup())
	}

	cleanupErr := cleanup()

	if opts.SyncDir {
		if err := syncDir(w.fs, dir); err != nil {
			return errors.Join(err, cleanupErr)
		}
	}

	// Cleanup errors alone don't fail the write: the rename already landed.
	return nil
}

const tempFileMaxAttempts = 10000

var tempFileCounter atomic.Uint64

func createTempFile(fsys FS, dir, base string, perm os.FileMode) (File, string, error) {
	for range tempFileMaxAttempts {
		seq := tempFileCounter.Add(1)
		path := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d", base, seq))

		file, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err == nil {
			return file, path, nil
		}

		if os.IsExist(err) {
			continue
		}

		return nil, "", fmt.Errorf("create temp file: %w", err)
	}

	return nil, "", fmt.Errorf("exhausted temp file attempts in %q", dir)
}

func syncDir(fsys FS, dir string) error {
	handle, err := fsys.Open(dir)
	if err != nil {
		return errors.Join(ErrDirSync, fmt.Errorf("open dir %q: %w", dir, err))
	}

	syncErr := handle.Sync()
	closeErr := handle.Close()

	if closeErr != nil {
		closeErr = fmt.Errorf("close dir %q: %w", dir, closeErr)
	}

	if syncErr == nil {
		return closeErr
	}

	return errors.Join(ErrDirSync, fmt.Errorf("%q: %w", dir, syncErr), closeErr)
}
