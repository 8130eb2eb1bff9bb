// Package fs abstracts the filesystem operations the vault's file medium
// depends on, so tests can swap in fault-injecting implementations.
//
// [Real] is the production passthrough. [Flaky] wraps another FS and fails
// armed operations deterministically, which is how the recovery paths are
// driven in tests. [AtomicWriter] layers atomic-or-nothing file replacement
// on top of any FS.
//
// Paths use OS semantics (like the os package and path/filepath), not the
// slash-separated paths of io/fs.
package fs

import (
	"io"
	"os"
)

// File is an open file handle. Satisfied by [os.File].
//
// Fd must return a descriptor usable with syscalls (flock) until Close.
// Implementations must be safe for concurrent use.
type File interface {
	io.ReadWriteCloser

	// Fd returns the file descriptor. See [os.File.Fd].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this handle. See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to stable storage. See [os.File.Sync].
	Sync() error

	// Chmod changes the mode of the file. See [os.File.Chmod].
	Chmod(mode os.FileMode) error
}

// FS is the set of filesystem operations the vault needs. Methods mirror
// their [os] equivalents, including error semantics.
//
// Implementations must be safe for concurrent use.
type FS interface {
	// Open opens a file (or directory, for fsync) read-only. See [os.Open].
	Open(path string) (File, error)

	// OpenFile opens a file with explicit flags and permissions.
	// See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads an entire file. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// ReadDir reads a directory, entries sorted by name. See [os.ReadDir].
	ReadDir(path string) ([]os.DirEntry, error)

	// MkdirAll creates a directory and any missing parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether path exists.
	// Returns (false, nil) when not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// Rename moves oldpath to newpath. See [os.Rename].
	// Atomic on the same filesystem; the medium relies on that.
	Rename(oldpath, newpath string) error
}

// Compile-time interface check.
var _ File = (*os.File)(nil)
