package medium

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/inkvault/inkvault/pkg/fs"
)

// slotExt is appended to every slot when mapping it to a file name, so the
// vault's files open as JSON in whatever editor the user reaches for.
const slotExt = ".json"

const dirPerms = 0o755

// FileOptions configures [OpenFile].
type FileOptions struct {
	// Root is the vault data directory. Created if missing.
	Root string

	// FS overrides the filesystem, for fault injection in tests.
	// Defaults to the real filesystem.
	FS fs.FS

	// DisableLock skips the exclusive advisory lock. Meant for read-only
	// forensics on a directory another vault instance has open.
	DisableLock bool
}

// File stores each slot as a JSON file under a data directory:
//
//	<root>/notes.json
//	<root>/backups/notes-<stamp>.json
//	<root>/quarantine/notes-<stamp>.json
//	<root>/metadata.json
//
// Writes are atomic replacements (temp file, fsync, rename, dir fsync).
// An exclusive flock on the data directory rejects a second engine.
type File struct {
	root   string
	fsys   fs.FS
	writer *fs.AtomicWriter
	lock   *dirLock
	closed atomic.Bool
}

// OpenFile opens (creating if needed) the data directory at opts.Root and
// acquires its lock. Returns [ErrLocked] if another process holds it.
func OpenFile(opts FileOptions) (*File, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("medium: root is empty")
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	if err := fsys.MkdirAll(opts.Root, dirPerms); err != nil {
		return nil, fmt.Errorf("medium: create root %q: %w", opts.Root, err)
	}

	m := &File{
		root:   opts.Root,
		fsys:   fsys,
		writer: fs.NewAtomicWriter(fsys),
	}

	if !opts.DisableLock {
		lock, err := acquireDirLock(filepath.Join(opts.Root, lockFileName))
		if err != nil {
			return nil, err
		}

		m.lock = lock
	}

	return m, nil
}

// Root returns the data directory, for the tamper watcher and CLI output.
func (m *File) Root() string {
	return m.root
}

func (m *File) Read(ctx context.Context, slot string) ([]byte, error) {
	if err := m.check(ctx, slot); err != nil {
		return nil, err
	}

	blob, err := m.fsys.ReadFile(m.slotPath(slot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSlotNotExist, slot)
		}

		return nil, fmt.Errorf("medium: read %s: %w", slot, err)
	}

	return blob, nil
}

func (m *File) Write(ctx context.Context, slot string, blob []byte) error {
	if err := m.check(ctx, slot); err != nil {
		return err
	}

	path := m.slotPath(slot)

	if err := m.fsys.MkdirAll(filepath.Dir(path), dirPerms); err != nil {
		return fmt.Errorf("medium: create dir for %s: %w", slot, err)
	}

	if err := m.writer.WriteBlob(path, blob); err != nil {
		return fmt.Errorf("medium: write %s: %w", slot, err)
	}

	return nil
}

func (m *File) Delete(ctx context.Context, slot string) error {
	if err := m.check(ctx, slot); err != nil {
		return err
	}

	if err := m.fsys.Remove(m.slotPath(slot)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSlotNotExist, slot)
		}

		return fmt.Errorf("medium: delete %s: %w", slot, err)
	}

	return nil
}

func (m *File) List(ctx context.Context, prefix string) ([]string, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := validatePrefix(prefix); err != nil {
		return nil, err
	}

	var slots []string

	if err := m.collectSlots("", &slots); err != nil {
		return nil, fmt.Errorf("medium: list %q: %w", prefix, err)
	}

	out := slots[:0]

	for _, slot := range slots {
		if strings.HasPrefix(slot, prefix) {
			out = append(out, slot)
		}
	}

	slices.Sort(out)

	return out, nil
}

// collectSlots gathers every slot under the slot-space directory dir.
// Lock file and atomic-writer temp files are dotted and skipped.
func (m *File) collectSlots(dir string, slots *[]string) error {
	entries, err := m.fsys.ReadDir(filepath.Join(m.root, filepath.FromSlash(dir)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}

	for _, entry := range entries {
		name := entry.Name()

		if strings.HasPrefix(name, ".") {
			continue
		}

		child := name
		if dir != "" {
			child = dir + "/" + name
		}

		if entry.IsDir() {
			if err := m.collectSlots(child, slots); err != nil {
				return err
			}

			continue
		}

		if stem, ok := strings.CutSuffix(child, slotExt); ok {
			*slots = append(*slots, stem)
		}
	}

	return nil
}

// Close releases the directory lock. Idempotent.
func (m *File) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	if m.lock != nil {
		m.lock.release()
	}

	return nil
}

func (m *File) check(ctx context.Context, slot string) error {
	if m.closed.Load() {
		return ErrClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return ValidateSlot(slot)
}

func (m *File) slotPath(slot string) string {
	return filepath.Join(m.root, filepath.FromSlash(slot)+slotExt)
}

// Compile-time interface check.
var _ Medium = (*File)(nil)
