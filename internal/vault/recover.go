package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inkvault/inkvault/internal/backup"
	"github.com/inkvault/inkvault/internal/document"
)

// RecoverOptions tune one recovery run. Detection and heuristic repair
// always run; the flags gate everything destructive or derived. The
// zero value is maximally cautious; start from [DefaultRecoverOptions]
// unless you are deliberately holding recovery back.
type RecoverOptions struct {
	// CreateBackupFirst snapshots the corrupted blob into the backup
	// set before anything touches it. Bypasses the rate limit.
	CreateBackupFirst bool

	// AutoRestore allows restoring the newest backup whose digest
	// verifies and whose payload still decodes for the key.
	AutoRestore bool

	// PreserveUserData quarantines the corrupted blob verbatim before
	// the key is reset, keeping it for forensic inspection.
	PreserveUserData bool

	// ClearCorrupted allows the final fallback: replace the corrupted
	// document with its type default so the key loads again. Leaving
	// this false can leave the key corrupted in place.
	ClearCorrupted bool
}

// DefaultRecoverOptions enables every stage. This is what Load uses when
// the engine runs with AutoRecover.
func DefaultRecoverOptions() RecoverOptions {
	return RecoverOptions{
		CreateBackupFirst: true,
		AutoRestore:       true,
		PreserveUserData:  true,
		ClearCorrupted:    true,
	}
}

// RecoveryState is the terminal condition of one recovery run.
type RecoveryState string

const (
	// StateRecovered means the key holds user data again, either
	// because it was healthy all along, or via repair or a restored
	// backup.
	StateRecovered RecoveryState = "recovered"

	// StateUnrecoverable means user data could not be brought back.
	// The key may still load fine: the quarantine-and-default fallback
	// leaves the type default behind and reports this state so the
	// audit trail reflects the data loss.
	StateUnrecoverable RecoveryState = "unrecoverable"
)

// RecoveryMethod says which stage settled the run. Empty when no stage
// was allowed to act.
type RecoveryMethod string

const (
	// MethodNone: nothing was wrong with the key.
	MethodNone RecoveryMethod = "none"

	// MethodRepair: heuristic syntax repair produced a schema-valid
	// document.
	MethodRepair RecoveryMethod = "repair"

	// MethodBackup: a verified backup was restored.
	MethodBackup RecoveryMethod = "backup"

	// MethodDefault: the corrupted blob was quarantined and the key
	// reset to its type default.
	MethodDefault RecoveryMethod = "default"
)

// RecoveryOutcome reports one recovery run.
type RecoveryOutcome struct {
	Key document.Key

	// Run correlates the audit entries of this run.
	Run string

	State  RecoveryState
	Method RecoveryMethod

	// Detail is human-oriented context: the decode error for a failed
	// run, the timestamp of a restored backup, the quarantine slot.
	Detail string
}

// Recover drives one key through the recovery pipeline: detect, then
// heuristic repair, then backup restore, then quarantine-and-default,
// stopping at the first stage that leaves a schema-valid document
// behind. Stages run only when opts allow them.
//
// With [DefaultRecoverOptions] the key is guaranteed loadable
// afterwards, whatever it takes. The returned error is reserved for an
// unusable engine or an unreachable medium; a run that merely failed to
// save user data reports StateUnrecoverable with a nil error.
//
// Runs for the same key are serialized by the per-key lock, so a
// recovery never interleaves with a save, a delete or another recovery
// of that key.
func (e *Engine) Recover(ctx context.Context, key document.Key, opts RecoverOptions) (RecoveryOutcome, error) {
	if err := e.check(key); err != nil {
		return RecoveryOutcome{}, err
	}

	mu := e.locks[key]
	mu.Lock()
	defer mu.Unlock()

	out := RecoveryOutcome{Key: key, Run: uuid.NewString()}

	e.audit.append(ctx, AuditRecoveryAttempted, key, map[string]string{"run": out.Run})

	det, err := e.detectKey(ctx, key)
	if err != nil {
		out.State = StateUnrecoverable
		out.Detail = err.Error()
		e.audit.append(ctx, AuditRecoveryFailed, key, map[string]string{"run": out.Run, "error": err.Error()})
		recordRecovery(key, "error")

		return out, err
	}

	if det.decodeErr == nil {
		out.State = StateRecovered
		out.Method = MethodNone
		e.audit.append(ctx, AuditRecoverySucceeded, key, map[string]string{"run": out.Run, "method": string(MethodNone)})
		recordRecovery(key, "noop")

		return out, nil
	}

	recordCorruption(key, corruptionKind(det.decodeErr))
	e.log.Warn("recovering corrupted document",
		"key", key, "run", out.Run, "error", det.decodeErr)

	if opts.CreateBackupFirst {
		if _, err := e.backups.ForceBackup(ctx, key, det.blob); err != nil {
			e.log.Warn("backup of corrupted blob failed", "key", key, "run", out.Run, "error", err)
		}
	}

	if doc, ok := document.Repair(key, det.blob); ok {
		err := e.saveLocked(ctx, doc, map[string]string{"reason": "recovery", "run": out.Run})
		if err == nil {
			out.State = StateRecovered
			out.Method = MethodRepair
			e.audit.append(ctx, AuditRecoverySucceeded, key, map[string]string{"run": out.Run, "method": string(MethodRepair)})
			recordRecovery(key, "repair")

			return out, nil
		}

		e.log.Warn("persisting repaired document failed", "key", key, "run", out.Run, "error", err)
	}

	if opts.AutoRestore {
		restored, ok := e.restoreStage(ctx, key, out)
		if ok {
			return restored, nil
		}
	}

	return e.quarantineStage(ctx, key, det.blob, det.decodeErr, opts, out)
}

// restoreStage tries the newest backup that verifies and decodes.
func (e *Engine) restoreStage(ctx context.Context, key document.Key, out RecoveryOutcome) (RecoveryOutcome, bool) {
	rec, err := e.backups.NewestValid(ctx, key, e.decodable(key))
	if err != nil {
		if !errors.Is(err, backup.ErrNoValidBackup) {
			e.log.Warn("backup lookup failed", "key", key, "run", out.Run, "error", err)
		}

		return out, false
	}

	doc, err := document.Decode(key, rec.Payload)
	if err != nil {
		return out, false
	}

	stamp := rec.Timestamp.UTC().Format(time.RFC3339Nano)

	if err := e.saveLocked(ctx, doc, map[string]string{"reason": "recovery", "run": out.Run, "restored_from": stamp}); err != nil {
		e.log.Warn("persisting restored backup failed", "key", key, "run", out.Run, "error", err)

		return out, false
	}

	out.State = StateRecovered
	out.Method = MethodBackup
	out.Detail = "restored backup from " + stamp
	e.audit.append(ctx, AuditRecoverySucceeded, key, map[string]string{
		"run":           out.Run,
		"method":        string(MethodBackup),
		"restored_from": stamp,
	})
	recordRecovery(key, "backup")

	return out, true
}

// quarantineStage is the last resort: stow the corrupted blob, reset the
// key to its type default. User data was not saved, so the run reports
// StateUnrecoverable even though the key loads again.
func (e *Engine) quarantineStage(ctx context.Context, key document.Key, blob []byte, decodeErr error, opts RecoverOptions, out RecoveryOutcome) (RecoveryOutcome, error) {
	detail := map[string]string{"run": out.Run, "error": decodeErr.Error()}

	if opts.PreserveUserData {
		slot, err := e.backups.Quarantine(ctx, key, blob)
		if err != nil {
			e.log.Warn("quarantine failed", "key", key, "run", out.Run, "error", err)
		} else {
			detail["quarantined"] = slot
			out.Detail = "quarantined as " + slot
		}
	}

	out.State = StateUnrecoverable

	if !opts.ClearCorrupted {
		e.audit.append(ctx, AuditRecoveryFailed, key, detail)
		recordRecovery(key, "failed")

		return out, nil
	}

	err := e.saveLocked(ctx, document.Default(key), map[string]string{"reason": "recovery", "run": out.Run})
	if err != nil {
		detail["reset_error"] = err.Error()
		e.audit.append(ctx, AuditRecoveryFailed, key, detail)
		recordRecovery(key, "error")

		return out, fmt.Errorf("vault: recover %s: reset to default: %w", key, err)
	}

	out.Method = MethodDefault
	detail["method"] = string(MethodDefault)
	e.audit.append(ctx, AuditRecoveryFailed, key, detail)
	recordRecovery(key, "default")

	return out, nil
}

// RestoreLatestBackup replaces key's contents with the newest backup
// whose digest verifies and whose payload still decodes. Reports false
// when no backup qualifies; the current contents stay untouched.
func (e *Engine) RestoreLatestBackup(ctx context.Context, key document.Key) (bool, error) {
	if err := e.check(key); err != nil {
		return false, err
	}

	mu := e.locks[key]
	mu.Lock()
	defer mu.Unlock()

	rec, err := e.backups.NewestValid(ctx, key, e.decodable(key))
	if errors.Is(err, backup.ErrNoValidBackup) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	doc, err := document.Decode(key, rec.Payload)
	if err != nil {
		return false, fmt.Errorf("vault: restore %s: %w", key, err)
	}

	stamp := rec.Timestamp.UTC().Format(time.RFC3339Nano)

	if err := e.saveLocked(ctx, doc, map[string]string{"restored_from": stamp}); err != nil {
		return false, err
	}

	return true, nil
}

// decodable is the accept filter recovery hands the backup store: a
// digest-valid envelope may still hold a payload that was corrupt when
// the backup was taken.
func (e *Engine) decodable(key document.Key) func([]byte) bool {
	return func(payload []byte) bool {
		_, err := document.Decode(key, payload)

		return err == nil
	}
}
