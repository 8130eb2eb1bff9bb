package backup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/inkvault/inkvault/internal/document"
)

// QuarantineInfo describes one quarantined blob.
type QuarantineInfo struct {
	Slot      string
	Key       document.Key
	Timestamp time.Time
	Size      int
}

// Quarantine parks blob under the quarantine namespace, byte for byte.
// No envelope and no digest: the point is preserving exactly what was on
// disk for later inspection. Returns the slot it landed in.
//
// Retention is bounded (MaxQuarantine per key, oldest evicted) so a
// repeatedly corrupting document cannot grow the vault without limit.
func (s *Store) Quarantine(ctx context.Context, key document.Key, blob []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, _, err := s.freeSlot(ctx, quarantinePrefix, key, s.now())
	if err != nil {
		return "", err
	}

	if err := s.medium.Write(ctx, slot, blob); err != nil {
		return "", fmt.Errorf("backup: quarantine %s: %w", key, err)
	}

	s.log.Info("quarantined corrupted blob", "key", key, "slot", slot, "size", len(blob))

	if err := s.evictQuarantineLocked(ctx, key); err != nil {
		s.log.Warn("quarantine retention sweep failed", "key", key, "error", err)
	}

	return slot, nil
}

// ListQuarantined returns quarantine metadata for key, newest first.
func (s *Store) ListQuarantined(ctx context.Context, key document.Key) ([]QuarantineInfo, error) {
	slots, err := s.medium.List(ctx, quarantinePrefix+string(key)+"-")
	if err != nil {
		return nil, fmt.Errorf("backup: list quarantine %s: %w", key, err)
	}

	infos := make([]QuarantineInfo, 0, len(slots))

	for i := len(slots) - 1; i >= 0; i-- {
		slot := slots[i]

		info := QuarantineInfo{Slot: slot, Key: key}

		if ts, ok := stampFromSlot(slot, key, quarantinePrefix); ok {
			info.Timestamp = ts
		}

		if blob, err := s.medium.Read(ctx, slot); err == nil {
			info.Size = len(blob)
		}

		infos = append(infos, info)
	}

	return infos, nil
}

// QuarantinedBlob returns the raw bytes of a quarantined slot, for dumps.
func (s *Store) QuarantinedBlob(ctx context.Context, slot string) ([]byte, error) {
	if !strings.HasPrefix(slot, quarantinePrefix) {
		return nil, fmt.Errorf("backup: %q is not a quarantine slot", slot)
	}

	return s.medium.Read(ctx, slot)
}

func (s *Store) evictQuarantineLocked(ctx context.Context, key document.Key) error {
	slots, err := s.medium.List(ctx, quarantinePrefix+string(key)+"-")
	if err != nil {
		return err
	}

	if len(slots) <= s.maxQuarantine {
		return nil
	}

	for _, slot := range slots[:len(slots)-s.maxQuarantine] {
		if err := s.medium.Delete(ctx, slot); err != nil {
			return err
		}

		s.log.Debug("evicted quarantined blob", "slot", slot)
	}

	return nil
}
