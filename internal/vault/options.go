package vault

import (
	"log/slog"
	"time"

	"github.com/inkvault/inkvault/internal/medium"
)

// Default bounds applied by [Open] when the corresponding option is zero.
const (
	DefaultMaxAuditEntries = 1000
)

// Options configure an [Engine]. The zero value is not usable: Medium is
// required. Everything else has a sensible default.
type Options struct {
	// Medium holds the documents, backups, quarantine and audit trail.
	// Required. The engine does not close it; its lifecycle belongs to
	// the caller.
	Medium medium.Medium

	// Logger receives engine events. Nil discards them.
	Logger *slog.Logger

	// Clock supplies timestamps for backups and audit entries.
	// Nil means [time.Now].
	Clock func() time.Time

	// MaxBackups caps retained backups per key. Zero means the backup
	// store's default (5).
	MaxBackups int

	// BackupRateLimit suppresses repeat backups of the same key inside
	// the window. Zero means the default window (5s); negative disables
	// the limit.
	BackupRateLimit time.Duration

	// MaxQuarantine caps retained quarantined blobs per key. Zero means
	// the backup store's default (10).
	MaxQuarantine int

	// MaxAuditEntries caps the audit trail. Oldest entries are dropped
	// first. Zero means [DefaultMaxAuditEntries].
	MaxAuditEntries int

	// AutoRecover makes Load run the recovery pipeline when it hits a
	// corrupted document instead of surfacing the decode error. The
	// recovered (or defaulted) document is returned as if the
	// corruption never happened.
	AutoRecover bool
}

func (o *Options) normalize() {
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}

	if o.Clock == nil {
		o.Clock = time.Now
	}

	if o.MaxAuditEntries <= 0 {
		o.MaxAuditEntries = DefaultMaxAuditEntries
	}
}
