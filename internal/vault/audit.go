package vault

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inkvault/inkvault/internal/document"
	"github.com/inkvault/inkvault/internal/medium"
)

// auditSlot is where the trail is persisted between runs.
const auditSlot = "metadata"

// AuditAction names an engine event worth keeping in the trail. The set
// is closed; event specifics go in [AuditEntry.Detail].
type AuditAction string

const (
	AuditSaved             AuditAction = "saved"
	AuditDeleted           AuditAction = "deleted"
	AuditRecoveryAttempted AuditAction = "recovery_attempted"
	AuditRecoverySucceeded AuditAction = "recovery_succeeded"
	AuditRecoveryFailed    AuditAction = "recovery_failed"
)

// AuditEntry is one recorded engine event.
type AuditEntry struct {
	// ID is unique per entry and stable across restarts.
	ID string `json:"id"`

	Action    AuditAction  `json:"action"`
	Key       document.Key `json:"key"`
	Timestamp time.Time    `json:"timestamp"`

	// Detail carries event specifics, for example the recovery run and
	// method, or the backup slot a restore came from.
	Detail map[string]string `json:"detail,omitempty"`
}

// auditEnvelope is the persisted shape of the trail.
type auditEnvelope struct {
	Entries []AuditEntry `json:"entries"`
}

// auditLog is a bounded, persisted event trail. Appends trim the oldest
// entries once the cap is reached. Persistence is best effort: a medium
// failure degrades the trail to memory-only, it never fails the
// operation being audited.
type auditLog struct {
	medium medium.Medium
	log    *slog.Logger
	now    func() time.Time
	max    int

	mu      sync.Mutex
	entries []AuditEntry
}

func newAuditLog(m medium.Medium, log *slog.Logger, now func() time.Time, max int) *auditLog {
	return &auditLog{medium: m, log: log, now: now, max: max}
}

// load restores the persisted trail. A missing slot starts empty; an
// unreadable or unparseable one is discarded with a warning, because the
// trail is diagnostic data and must never block the engine.
func (a *auditLog) load(ctx context.Context) {
	blob, err := a.medium.Read(ctx, auditSlot)
	if errors.Is(err, medium.ErrSlotNotExist) {
		return
	}

	if err != nil {
		a.log.Warn("audit trail unreadable, starting empty", "error", err)

		return
	}

	var env auditEnvelope
	if err := json.Unmarshal(blob, &env); err != nil {
		a.log.Warn("audit trail corrupted, starting empty", "error", err)

		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = env.Entries
	a.trimLocked()
}

// append records one event and persists the trail.
func (a *auditLog) append(ctx context.Context, action AuditAction, key document.Key, detail map[string]string) AuditEntry {
	entry := AuditEntry{
		ID:        uuid.NewString(),
		Action:    action,
		Key:       key,
		Timestamp: a.now().UTC(),
		Detail:    detail,
	}

	a.mu.Lock()
	a.entries = append(a.entries, entry)
	a.trimLocked()
	blob, err := json.Marshal(auditEnvelope{Entries: a.entries})
	a.mu.Unlock()

	if err != nil {
		a.log.Warn("audit trail not persisted", "error", err)

		return entry
	}

	if err := a.medium.Write(ctx, auditSlot, blob); err != nil {
		a.log.Warn("audit trail not persisted", "error", err)
	}

	return entry
}

func (a *auditLog) trimLocked() {
	if over := len(a.entries) - a.max; over > 0 {
		a.entries = append(a.entries[:0:0], a.entries[over:]...)
	}
}

// tail returns the most recent n entries in chronological order.
// n <= 0 returns everything.
func (a *auditLog) tail(n int) []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n <= 0 || n > len(a.entries) {
		n = len(a.entries)
	}

	out := make([]AuditEntry, n)
	copy(out, a.entries[len(a.entries)-n:])

	return out
}
