package vault

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/inkvault/inkvault/internal/document"
	"github.com/inkvault/inkvault/internal/medium"
)

// Save validates doc and replaces whatever its key currently holds. The
// previous contents are backed up first, subject to the rate limit. A
// validation failure leaves the store untouched, per the schema gate:
// invalid documents never reach the medium.
func (e *Engine) Save(ctx context.Context, doc document.Doc) error {
	key := doc.Key()

	if err := e.check(key); err != nil {
		return err
	}

	mu := e.locks[key]
	mu.Lock()
	defer mu.Unlock()

	return e.saveLocked(ctx, doc, nil)
}

// Delete backs up the current contents, then removes key.
//
// The pre-delete backup bypasses the rate limit: removal is terminal for
// the primary copy, and a suppressed snapshot here would lose the final
// state silently. Returns [ErrNotFound] when the key holds nothing.
func (e *Engine) Delete(ctx context.Context, key document.Key) error {
	if err := e.check(key); err != nil {
		return err
	}

	mu := e.locks[key]
	mu.Lock()
	defer mu.Unlock()

	current, err := e.medium.Read(ctx, string(key))
	if errors.Is(err, medium.ErrSlotNotExist) {
		recordDelete(key, "missing")

		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	if err != nil {
		recordDelete(key, "error")

		return fmt.Errorf("vault: delete %s: read current: %w", key, err)
	}

	if _, err := e.backups.ForceBackup(ctx, key, current); err != nil {
		e.log.Warn("pre-delete backup failed", "key", key, "error", err)
		recordBackup(key, "failed")
	} else {
		recordBackup(key, "created")
	}

	if err := e.medium.Delete(ctx, string(key)); err != nil {
		recordDelete(key, "error")

		return fmt.Errorf("%w: delete %s: %w", ErrWrite, key, err)
	}

	e.markOwnWrite(key)
	e.audit.append(ctx, AuditDeleted, key, nil)
	recordDelete(key, "ok")

	return nil
}

// saveLocked is the single write chokepoint: encode, snapshot the old
// contents, replace. Callers hold the key's lock. The backup is best
// effort: its failure degrades resilience, never availability.
func (e *Engine) saveLocked(ctx context.Context, doc document.Doc, detail map[string]string) error {
	key := doc.Key()

	blob, err := document.Encode(doc)
	if err != nil {
		recordSave(key, "rejected")

		return err
	}

	current, err := e.medium.Read(ctx, string(key))
	first := false

	switch {
	case err == nil:
		e.snapshot(ctx, key, current)
	case errors.Is(err, medium.ErrSlotNotExist):
		// First write of this key. Nothing to snapshot yet; the new
		// blob gets one below, so even a single-save key has a
		// restorable record.
		first = true
	default:
		e.log.Warn("pre-write backup skipped, current contents unreadable", "key", key, "error", err)
		recordBackup(key, "failed")
	}

	if err := e.medium.Write(ctx, string(key), blob); err != nil {
		recordSave(key, "error")
		e.audit.append(ctx, AuditSaved, key, withError(detail, err))

		return fmt.Errorf("%w: %s: %w", ErrWrite, key, err)
	}

	if first {
		e.snapshot(ctx, key, blob)
	}

	e.markOwnWrite(key)
	e.audit.append(ctx, AuditSaved, key, detail)
	recordSave(key, "ok")

	return nil
}

// withError copies detail and adds the failure cause, so failed writes
// still leave an audit record without mutating the caller's map.
func withError(detail map[string]string, err error) map[string]string {
	out := maps.Clone(detail)
	if out == nil {
		out = make(map[string]string, 1)
	}

	out["error"] = err.Error()

	return out
}

// snapshot is the rate-limited, best-effort backup call shared by the
// write paths.
func (e *Engine) snapshot(ctx context.Context, key document.Key, blob []byte) {
	_, created, err := e.backups.Backup(ctx, key, blob)

	switch {
	case err != nil:
		e.log.Warn("backup failed", "key", key, "error", err)
		recordBackup(key, "failed")
	case created:
		recordBackup(key, "created")
	default:
		recordBackup(key, "rate_limited")
	}
}
