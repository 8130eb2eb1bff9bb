// Package backup manages the vault's timestamped safety copies.
//
// Every backup is a self-describing JSON envelope holding the original
// payload (base64 inside the envelope, so even corrupted bytes embed
// safely) plus a CRC-32C digest computed once at creation. Restore-time
// validation recomputes the digest; envelopes that fail are skipped, never
// deleted, so forensic evidence survives.
//
// The store also owns the quarantine namespace, where recovery parks
// corrupted blobs verbatim before replacing a document.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/inkvault/inkvault/internal/checksum"
	"github.com/inkvault/inkvault/internal/document"
	"github.com/inkvault/inkvault/internal/medium"
)

// Defaults for [StoreOptions].
const (
	DefaultMaxBackups    = 5
	DefaultRateWindow    = 5 * time.Second
	DefaultMaxQuarantine = 10
)

// slotStampLayout is a filesystem-safe ISO 8601 form. Fixed width and UTC,
// so lexicographic slot order is chronological order.
const slotStampLayout = "20060102T150405.000000000Z"

// backupPrefix and quarantinePrefix are the slot namespaces this store owns.
const (
	backupPrefix     = "backups/"
	quarantinePrefix = "quarantine/"
)

// ErrNoValidBackup indicates no stored backup passed checksum validation.
var ErrNoValidBackup = errors.New("backup: no valid backup available")

// Record is the stored backup envelope.
type Record struct {
	Key       document.Key `json:"key"`
	Timestamp time.Time    `json:"timestamp"`
	Checksum  string       `json:"checksum"`
	Payload   []byte       `json:"payload"`
}

// Info is the metadata-only view of a stored backup, for listings.
type Info struct {
	Slot      string
	Key       document.Key
	Timestamp time.Time
	Checksum  string
	Size      int

	// Damaged marks an envelope that no longer parses or whose payload
	// fails its digest. Restore skips damaged backups.
	Damaged bool
}

// StoreOptions configures [NewStore]. Zero fields take the defaults above.
type StoreOptions struct {
	Medium medium.Medium
	Logger *slog.Logger

	// Now is the clock, injectable for deterministic rate-limit tests.
	Now func() time.Time

	MaxBackups int

	// RateWindow of zero means the default; negative disables the limit.
	RateWindow time.Duration

	MaxQuarantine int
}

// Store creates, lists, validates, and evicts backups for vault keys.
// Safe for concurrent use.
type Store struct {
	medium        medium.Medium
	log           *slog.Logger
	now           func() time.Time
	maxBackups    int
	rateWindow    time.Duration
	maxQuarantine int

	mu   sync.Mutex
	last map[document.Key]time.Time
}

// NewStore builds a Store. Panics if opts.Medium is nil.
func NewStore(opts StoreOptions) *Store {
	if opts.Medium == nil {
		panic("medium is nil")
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	maxBackups := opts.MaxBackups
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}

	// Zero means the default window; negative disables rate limiting.
	window := opts.RateWindow
	if window == 0 {
		window = DefaultRateWindow
	} else if window < 0 {
		window = 0
	}

	maxQuarantine := opts.MaxQuarantine
	if maxQuarantine <= 0 {
		maxQuarantine = DefaultMaxQuarantine
	}

	return &Store{
		medium:        opts.Medium,
		log:           log,
		now:           now,
		maxBackups:    maxBackups,
		rateWindow:    window,
		maxQuarantine: maxQuarantine,
		last:          make(map[document.Key]time.Time),
	}
}

// Backup stores a copy of blob for key, rate limited to one backup per
// window. Returns (nil, false, nil) when the window suppressed it; the
// write path treats that as success.
//
// The window survives restarts: the first call for a key seeds the
// limiter from the newest stored backup's timestamp.
func (s *Store) Backup(ctx context.Context, key document.Key, blob []byte) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, err := s.lastBackupLocked(ctx, key)
	if err != nil {
		return nil, false, err
	}

	now := s.now()

	if !last.IsZero() && now.Sub(last) < s.rateWindow {
		s.log.Debug("backup suppressed by rate limit",
			"key", key, "last", last, "window", s.rateWindow)

		return nil, false, nil
	}

	rec, err := s.writeLocked(ctx, key, blob, now)
	if err != nil {
		return nil, false, err
	}

	return rec, true, nil
}

// ForceBackup bypasses the rate limit. Recovery uses it to preserve the
// corrupted blob before any mutation, regardless of recent write traffic.
func (s *Store) ForceBackup(ctx context.Context, key document.Key, blob []byte) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Seed the limiter even on the forced path, so a later rate-limited
	// backup sees this one.
	if _, err := s.lastBackupLocked(ctx, key); err != nil {
		return nil, err
	}

	return s.writeLocked(ctx, key, blob, s.now())
}

// List returns backup metadata for key, newest first. Damaged envelopes
// are included and flagged, not hidden.
func (s *Store) List(ctx context.Context, key document.Key) ([]Info, error) {
	slots, err := s.medium.List(ctx, backupPrefix+string(key)+"-")
	if err != nil {
		return nil, fmt.Errorf("backup: list %s: %w", key, err)
	}

	infos := make([]Info, 0, len(slots))

	// Slots sort ascending by stamp; walk backwards for newest first.
	for i := len(slots) - 1; i >= 0; i-- {
		infos = append(infos, s.describe(ctx, key, slots[i]))
	}

	return infos, nil
}

// NewestValid returns the newest backup whose payload still matches its
// digest, skipping damaged candidates. A non-nil accept narrows the search
// further; recovery passes a decode check here, because a backup taken of
// an already-corrupted document is digest-valid yet useless to restore.
//
// Returns [ErrNoValidBackup] when nothing qualifies.
func (s *Store) NewestValid(ctx context.Context, key document.Key, accept func(payload []byte) bool) (*Record, error) {
	slots, err := s.medium.List(ctx, backupPrefix+string(key)+"-")
	if err != nil {
		return nil, fmt.Errorf("backup: list %s: %w", key, err)
	}

	for i := len(slots) - 1; i >= 0; i-- {
		rec, err := s.readRecord(ctx, slots[i])
		if err != nil {
			s.log.Warn("skipping unreadable backup", "slot", slots[i], "error", err)

			continue
		}

		if !s.recordValid(rec, slots[i]) {
			continue
		}

		if accept != nil && !accept(rec.Payload) {
			s.log.Warn("skipping backup rejected by caller", "slot", slots[i])

			continue
		}

		return rec, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNoValidBackup, key)
}

// EvictOldest removes the oldest backups for key until at most keep
// remain. Damaged envelopes count toward the cap and age out the same way.
func (s *Store) EvictOldest(ctx context.Context, key document.Key, keep int) error {
	if keep < 0 {
		keep = 0
	}

	slots, err := s.medium.List(ctx, backupPrefix+string(key)+"-")
	if err != nil {
		return fmt.Errorf("backup: list %s: %w", key, err)
	}

	if len(slots) <= keep {
		return nil
	}

	for _, slot := range slots[:len(slots)-keep] {
		if err := s.medium.Delete(ctx, slot); err != nil {
			return fmt.Errorf("backup: evict %s: %w", slot, err)
		}

		s.log.Debug("evicted backup", "slot", slot)
	}

	return nil
}

// --- internals ---

// lastBackupLocked returns the limiter timestamp for key, seeding it from
// the newest stored backup on first use.
func (s *Store) lastBackupLocked(ctx context.Context, key document.Key) (time.Time, error) {
	if last, ok := s.last[key]; ok {
		return last, nil
	}

	slots, err := s.medium.List(ctx, backupPrefix+string(key)+"-")
	if err != nil {
		return time.Time{}, fmt.Errorf("backup: seed rate limiter for %s: %w", key, err)
	}

	var last time.Time

	if len(slots) > 0 {
		if ts, ok := stampFromSlot(slots[len(slots)-1], key, backupPrefix); ok {
			last = ts
		}
	}

	s.last[key] = last

	return last, nil
}

// writeLocked stores the envelope and enforces retention.
func (s *Store) writeLocked(ctx context.Context, key document.Key, blob []byte, ts time.Time) (*Record, error) {
	slot, ts, err := s.freeSlot(ctx, backupPrefix, key, ts)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		Key:       key,
		Timestamp: ts.UTC(),
		Checksum:  checksum.Format(checksum.Sum(blob)),
		Payload:   blob,
	}

	envelope, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("backup: marshal envelope for %s: %w", key, err)
	}

	if err := s.medium.Write(ctx, slot, envelope); err != nil {
		return nil, fmt.Errorf("backup: write %s: %w", slot, err)
	}

	s.last[key] = ts

	if err := s.evictLocked(ctx, key); err != nil {
		// The backup itself landed; retention catches up next time.
		s.log.Warn("backup retention sweep failed", "key", key, "error", err)
	}

	return rec, nil
}

func (s *Store) evictLocked(ctx context.Context, key document.Key) error {
	slots, err := s.medium.List(ctx, backupPrefix+string(key)+"-")
	if err != nil {
		return err
	}

	if len(slots) <= s.maxBackups {
		return nil
	}

	for _, slot := range slots[:len(slots)-s.maxBackups] {
		if err := s.medium.Delete(ctx, slot); err != nil {
			return err
		}

		s.log.Debug("evicted backup", "slot", slot)
	}

	return nil
}

// freeSlot finds an unoccupied slot for key under prefix, bumping the
// timestamp by a nanosecond on collision (possible under a frozen test
// clock).
func (s *Store) freeSlot(ctx context.Context, prefix string, key document.Key, ts time.Time) (string, time.Time, error) {
	const maxBumps = 1000

	for range maxBumps {
		slot := slotName(prefix, key, ts)

		_, err := s.medium.Read(ctx, slot)
		if errors.Is(err, medium.ErrSlotNotExist) {
			return slot, ts, nil
		}

		if err != nil {
			return "", time.Time{}, fmt.Errorf("backup: probe %s: %w", slot, err)
		}

		ts = ts.Add(time.Nanosecond)
	}

	return "", time.Time{}, fmt.Errorf("backup: no free slot for %s", key)
}

func (s *Store) describe(ctx context.Context, key document.Key, slot string) Info {
	info := Info{Slot: slot, Key: key}

	if ts, ok := stampFromSlot(slot, key, backupPrefix); ok {
		info.Timestamp = ts
	}

	rec, err := s.readRecord(ctx, slot)
	if err != nil {
		info.Damaged = true

		return info
	}

	info.Key = rec.Key
	info.Timestamp = rec.Timestamp
	info.Checksum = rec.Checksum
	info.Size = len(rec.Payload)
	info.Damaged = !s.recordValid(rec, slot)

	return info
}

func (s *Store) readRecord(ctx context.Context, slot string) (*Record, error) {
	envelope, err := s.medium.Read(ctx, slot)
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(envelope, &rec); err != nil {
		return nil, fmt.Errorf("damaged envelope: %w", err)
	}

	return &rec, nil
}

// recordValid recomputes the payload digest against the stored one.
func (s *Store) recordValid(rec *Record, slot string) bool {
	want, err := checksum.Parse(rec.Checksum)
	if err != nil {
		s.log.Warn("backup has malformed digest", "slot", slot, "checksum", rec.Checksum)

		return false
	}

	if !checksum.Verify(rec.Payload, want) {
		s.log.Warn("backup failed digest validation", "slot", slot)

		return false
	}

	return true
}

func slotName(prefix string, key document.Key, ts time.Time) string {
	return prefix + string(key) + "-" + ts.UTC().Format(slotStampLayout)
}

// stampFromSlot recovers the timestamp embedded in a slot name.
func stampFromSlot(slot string, key document.Key, prefix string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(slot, prefix+string(key)+"-")
	if !ok {
		return time.Time{}, false
	}

	ts, err := time.Parse(slotStampLayout, rest)
	if err != nil {
		return time.Time{}, false
	}

	return ts, true
}
