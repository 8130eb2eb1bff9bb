package fs

import (
	"os"
	"strings"
	"sync"
)

// Op names an [FS] or [File] operation for fault arming on [Flaky].
type Op string

// Operations that [Flaky] can be armed to fail.
const (
	OpOpen     Op = "open"
	OpOpenFile Op = "openfile"
	OpReadFile Op = "readfile"
	OpReadDir  Op = "readdir"
	OpMkdirAll Op = "mkdirall"
	OpStat     Op = "stat"
	OpRemove   Op = "remove"
	OpRename   Op = "rename"

	// File-handle operations, matched against the path the handle was
	// opened with.
	OpWrite Op = "write"
	OpSync  Op = "sync"
)

// Flaky wraps an [FS] and fails armed operations deterministically.
//
// Unlike a randomized injector, every failure is explicit: tests arm an
// (operation, path-substring) pair with the exact error the code under test
// should observe, so error-classification logic can be exercised precisely.
// Unarmed operations pass through to the wrapped FS.
//
// Safe for concurrent use.
type Flaky struct {
	inner FS

	mu    sync.Mutex
	rules []*flakyRule
}

type flakyRule struct {
	op     Op
	substr string
	err    error
	once   bool
	spent  bool
}

// NewFlaky wraps fsys. Panics if fsys is nil.
func NewFlaky(fsys FS) *Flaky {
	if fsys == nil {
		panic("fs is nil")
	}

	return &Flaky{inner: fsys}
}

// Break arms op to fail with err on every path containing substr.
// An empty substr matches every path. Stays armed until [Flaky.Reset].
func (f *Flaky) Break(op Op, substr string, err error) {
	f.arm(&flakyRule{op: op, substr: substr, err: err})
}

// BreakOnce arms op to fail exactly once, then disarms itself.
func (f *Flaky) BreakOnce(op Op, substr string, err error) {
	f.arm(&flakyRule{op: op, substr: substr, err: err, once: true})
}

// Reset disarms all rules.
func (f *Flaky) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rules = nil
}

func (f *Flaky) arm(r *flakyRule) {
	if r.err == nil {
		panic("err is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.rules = append(f.rules, r)
}

// fault returns the armed error for (op, path), or nil.
func (f *Flaky) fault(op Op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.rules {
		if r.spent || r.op != op {
			continue
		}

		if r.substr != "" && !strings.Contains(path, r.substr) {
			continue
		}

		if r.once {
			r.spent = true
		}

		return r.err
	}

	return nil
}

func (f *Flaky) Open(path string) (File, error) {
	if err := f.fault(OpOpen, path); err != nil {
		return nil, err
	}

	file, err := f.inner.Open(path)
	if err != nil {
		return nil, err
	}

	return &flakyFile{File: file, path: path, owner: f}, nil
}

func (f *Flaky) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if err := f.fault(OpOpenFile, path); err != nil {
		return nil, err
	}

	file, err := f.inner.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &flakyFile{File: file, path: path, owner: f}, nil
}

func (f *Flaky) ReadFile(path string) ([]byte, error) {
	if err := f.fault(OpReadFile, path); err != nil {
		return nil, err
	}

	return f.inner.ReadFile(path)
}

func (f *Flaky) ReadDir(path string) ([]os.DirEntry, error) {
	if err := f.fault(OpReadDir, path); err != nil {
		return nil, err
	}

	return f.inner.ReadDir(path)
}

func (f *Flaky) MkdirAll(path string, perm os.FileMode) error {
	if err := f.fault(OpMkdirAll, path); err != nil {
		return err
	}

	return f.inner.MkdirAll(path, perm)
}

func (f *Flaky) Stat(path string) (os.FileInfo, error) {
	if err := f.fault(OpStat, path); err != nil {
		return nil, err
	}

	return f.inner.Stat(path)
}

func (f *Flaky) Exists(path string) (bool, error) {
	if err := f.fault(OpStat, path); err != nil {
		return false, err
	}

	return f.inner.Exists(path)
}

func (f *Flaky) Remove(path string) error {
	if err := f.fault(OpRemove, path); err != nil {
		return err
	}

	return f.inner.Remove(path)
}

func (f *Flaky) Rename(oldpath, newpath string) error {
	if err := f.fault(OpRename, oldpath); err != nil {
		return err
	}

	return f.inner.Rename(oldpath, newpath)
}

// flakyFile consults the owning [Flaky] on write-side operations.
type flakyFile struct {
	File

	path  string
	owner *Flaky
}

func (ff *flakyFile) Write(p []byte) (int, error) {
	if err := ff.owner.fault(OpWrite, ff.path); err != nil {
		return 0, err
	}

	return ff.File.Write(p)
}

func (ff *flakyFile) Sync() error {
	if err := ff.owner.fault(OpSync, ff.path); err != nil {
		return err
	}

	return ff.File.Sync()
}

// Compile-time interface checks.
var (
	_ FS   = (*Flaky)(nil)
	_ File = (*flakyFile)(nil)
)
