// Package medium abstracts where vault slots physically live.
//
// A slot is a slash-separated name like "notes", "backups/notes-<stamp>",
// or "metadata", holding one opaque blob. The vault, backup store, and
// audit log all speak slots; the medium decides how slots map onto disk.
//
// [File] is the primary medium: one JSON file per slot under a data
// directory, atomic replace on write, an exclusive advisory lock for the
// medium's lifetime. [Badger] stores slots as keys in an embedded
// BadgerDB. [Memory] backs tests.
package medium

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrSlotNotExist indicates a read or delete of a slot with no blob.
	ErrSlotNotExist = errors.New("medium: slot does not exist")

	// ErrClosed indicates an operation on a closed medium.
	ErrClosed = errors.New("medium: closed")

	// ErrLocked indicates another process holds the medium's exclusive lock.
	//
	// Recovery: close the other vault instance, or open with the lock
	// disabled for read-only forensics.
	ErrLocked = errors.New("medium: data directory locked by another process")
)

// Medium is a flat namespace of slots. Implementations must be safe for
// concurrent use; the vault serializes per-key sequences above this layer.
type Medium interface {
	// Read returns the blob stored in slot.
	// Returns [ErrSlotNotExist] when the slot holds nothing.
	Read(ctx context.Context, slot string) ([]byte, error)

	// Write stores blob in slot, atomic-or-nothing: a crash or failure
	// mid-write leaves either the previous blob or the new one, never a
	// truncated mix.
	Write(ctx context.Context, slot string, blob []byte) error

	// Delete removes slot. Returns [ErrSlotNotExist] when absent.
	Delete(ctx context.Context, slot string) error

	// List returns all slots whose name starts with prefix, sorted
	// ascending. A missing namespace is an empty result, not an error.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases the medium. Further operations return [ErrClosed].
	Close() error
}

var slotSegmentRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateSlot rejects names that could escape the medium's namespace or
// collide with its bookkeeping files (which start with a dot).
func ValidateSlot(slot string) error {
	if slot == "" {
		return errors.New("medium: empty slot")
	}

	for _, seg := range strings.Split(slot, "/") {
		if !slotSegmentRe.MatchString(seg) {
			return fmt.Errorf("medium: invalid slot %q", slot)
		}
	}

	return nil
}

// validatePrefix checks a List prefix. Unlike a full slot, the final
// segment may be empty or partial ("backups/notes-").
func validatePrefix(prefix string) error {
	if prefix == "" {
		return nil
	}

	segs := strings.Split(prefix, "/")

	for i, seg := range segs {
		last := i == len(segs)-1

		if last && seg == "" {
			continue
		}

		if last {
			if strings.ContainsAny(seg, `\`) || seg == "." || seg == ".." || strings.HasPrefix(seg, ".") {
				return fmt.Errorf("medium: invalid prefix %q", prefix)
			}

			continue
		}

		if !slotSegmentRe.MatchString(seg) {
			return fmt.Errorf("medium: invalid prefix %q", prefix)
		}
	}

	return nil
}
