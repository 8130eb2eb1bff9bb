// Package vault is the durability engine: typed document storage with
// checksummed backups, corruption detection, staged recovery and a
// bounded audit trail.
//
// An [Engine] is an explicit value. Open one with the medium of your
// choice, pass it to whoever needs it, close it when done. There is no
// package-level instance and no global state beyond Prometheus metric
// registration.
//
// Mutations take a per-key lock, so the backup-then-write sequence and
// the recovery pipeline never interleave for the same key. Distinct keys
// proceed in parallel.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inkvault/inkvault/internal/backup"
	"github.com/inkvault/inkvault/internal/document"
	"github.com/inkvault/inkvault/internal/medium"
)

// Engine owns the documents in one medium.
//
// All methods are safe for concurrent use. After [Engine.Close], every
// method returns [ErrClosed].
type Engine struct {
	medium  medium.Medium
	backups *backup.Store
	log     *slog.Logger
	now     func() time.Time

	autoRecover bool

	// locks serialize mutations per key. The key set is closed, so the
	// map is built once in Open and never written again.
	locks map[document.Key]*sync.Mutex

	audit *auditLog

	// ownWrites records the wall-clock instant of the engine's latest
	// write per key, so the watcher can tell its own writes from
	// out-of-band ones. Wall clock on purpose: file events arrive in
	// real time even under a fake engine clock.
	ownWrites sync.Map // document.Key -> time.Time

	closed atomic.Bool
}

// Open builds an engine on opts.Medium and restores the persisted audit
// trail. The medium stays owned by the caller and is not closed by
// [Engine.Close].
func Open(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Medium == nil {
		return nil, errors.New("vault: Options.Medium is required")
	}

	opts.normalize()

	e := &Engine{
		medium: opts.Medium,
		backups: backup.NewStore(backup.StoreOptions{
			Medium:        opts.Medium,
			Logger:        opts.Logger,
			Now:           opts.Clock,
			MaxBackups:    opts.MaxBackups,
			RateWindow:    opts.BackupRateLimit,
			MaxQuarantine: opts.MaxQuarantine,
		}),
		log:         opts.Logger,
		now:         opts.Clock,
		autoRecover: opts.AutoRecover,
		locks:       make(map[document.Key]*sync.Mutex, len(document.Keys())),
		audit:       newAuditLog(opts.Medium, opts.Logger, opts.Clock, opts.MaxAuditEntries),
	}

	for _, key := range document.Keys() {
		e.locks[key] = &sync.Mutex{}
	}

	e.audit.load(ctx)

	return e, nil
}

// Close marks the engine unusable. Safe to call more than once.
func (e *Engine) Close() error {
	e.closed.Store(true)

	return nil
}

// ListBackups returns backup metadata for key, newest first. Payloads
// stay on the medium.
func (e *Engine) ListBackups(ctx context.Context, key document.Key) ([]backup.Info, error) {
	if err := e.check(key); err != nil {
		return nil, err
	}

	return e.backups.List(ctx, key)
}

// Quarantined returns quarantine metadata for key, newest first.
func (e *Engine) Quarantined(ctx context.Context, key document.Key) ([]backup.QuarantineInfo, error) {
	if err := e.check(key); err != nil {
		return nil, err
	}

	return e.backups.ListQuarantined(ctx, key)
}

// QuarantinedBlob returns one quarantined blob verbatim.
func (e *Engine) QuarantinedBlob(ctx context.Context, slot string) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	return e.backups.QuarantinedBlob(ctx, slot)
}

// AuditTail returns the most recent n audit entries in chronological
// order. n <= 0 returns the full trail.
func (e *Engine) AuditTail(n int) []AuditEntry {
	return e.audit.tail(n)
}

// check rejects operations on a closed engine or an unknown key.
func (e *Engine) check(key document.Key) error {
	if e.closed.Load() {
		return ErrClosed
	}

	if !key.Valid() {
		return fmt.Errorf("%w: %q", document.ErrUnknownKey, key)
	}

	return nil
}

// markOwnWrite is called after every engine write of a primary slot.
func (e *Engine) markOwnWrite(key document.Key) {
	e.ownWrites.Store(key, time.Now())
}

// wroteRecently reports whether the engine itself wrote key within d.
func (e *Engine) wroteRecently(key document.Key, d time.Duration) bool {
	v, ok := e.ownWrites.Load(key)
	if !ok {
		return false
	}

	return time.Since(v.(time.Time)) < d
}
