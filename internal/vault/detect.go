package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/inkvault/inkvault/internal/document"
	"github.com/inkvault/inkvault/internal/medium"
)

// ValidationResult is one full-store corruption sweep. Produced fresh on
// every call to [Engine.Validate], never persisted.
type ValidationResult struct {
	// Valid is true when every stored document decodes cleanly.
	Valid bool

	// Errors holds one human-readable line per corrupted key.
	Errors []string

	// CorruptedKeys lists the keys that failed to decode, in key order.
	CorruptedKeys []document.Key

	// Recoverable maps each corrupted key to the canonical re-encoding
	// of what heuristic repair could save, or nil when repair got
	// nothing out of the blob. Keys that decoded cleanly are absent.
	Recoverable map[document.Key][]byte
}

// Validate sweeps every key and classifies what it finds. Missing keys
// are fine: they load as type defaults. A medium failure aborts the
// sweep with an error, since nothing further can be trusted.
//
// The sweep only reads. Use [Engine.Recover] to act on the findings.
func (e *Engine) Validate(ctx context.Context) (ValidationResult, error) {
	if e.closed.Load() {
		return ValidationResult{}, ErrClosed
	}

	res := ValidationResult{
		Valid:       true,
		Recoverable: make(map[document.Key][]byte),
	}

	for _, key := range document.Keys() {
		det, err := e.detectKey(ctx, key)
		if err != nil {
			return ValidationResult{}, err
		}

		if !det.present || det.decodeErr == nil {
			continue
		}

		res.Valid = false
		res.CorruptedKeys = append(res.CorruptedKeys, key)
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", key, det.decodeErr))
		recordCorruption(key, corruptionKind(det.decodeErr))

		res.Recoverable[key] = nil

		if doc, ok := document.Repair(key, det.blob); ok {
			if blob, err := document.Encode(doc); err == nil {
				res.Recoverable[key] = blob
			}
		}
	}

	return res, nil
}

// detection is what one key looks like right now.
type detection struct {
	present   bool
	blob      []byte
	decodeErr error
}

// detectKey reads and decodes one key. The returned error is reserved
// for medium failures; decode trouble lands in detection.decodeErr.
func (e *Engine) detectKey(ctx context.Context, key document.Key) (detection, error) {
	blob, err := e.medium.Read(ctx, string(key))
	if errors.Is(err, medium.ErrSlotNotExist) {
		return detection{}, nil
	}

	if err != nil {
		return detection{}, fmt.Errorf("vault: read %s: %w", key, err)
	}

	det := detection{present: true, blob: blob}

	if _, err := document.Decode(key, blob); err != nil {
		det.decodeErr = err
	}

	return det, nil
}
