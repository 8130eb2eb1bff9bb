package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/inkvault/inkvault/internal/document"
	"github.com/inkvault/inkvault/internal/medium"
)

// Load returns the document stored under key. A key that was never saved
// yields its type default, not an error.
//
// A corrupted document surfaces its decode error so the caller can
// decide what to do, unless the engine was opened with AutoRecover: then
// the recovery pipeline runs and Load returns whatever it left behind,
// which is the repaired document, a restored backup, or the type
// default.
func (e *Engine) Load(ctx context.Context, key document.Key) (document.Doc, error) {
	if err := e.check(key); err != nil {
		return nil, err
	}

	blob, err := e.medium.Read(ctx, string(key))
	if errors.Is(err, medium.ErrSlotNotExist) {
		return document.Default(key), nil
	}

	if err != nil {
		return nil, fmt.Errorf("vault: load %s: %w", key, err)
	}

	doc, decErr := document.Decode(key, blob)
	if decErr == nil {
		return doc, nil
	}

	if !e.autoRecover {
		recordCorruption(key, corruptionKind(decErr))

		return nil, fmt.Errorf("vault: load %s: %w", key, decErr)
	}

	e.log.Warn("corrupted document on load, recovering", "key", key, "error", decErr)

	if _, err := e.Recover(ctx, key, DefaultRecoverOptions()); err != nil {
		return nil, fmt.Errorf("vault: load %s: recovery: %w", key, err)
	}

	blob, err = e.medium.Read(ctx, string(key))
	if errors.Is(err, medium.ErrSlotNotExist) {
		return document.Default(key), nil
	}

	if err != nil {
		return nil, fmt.Errorf("vault: load %s: %w", key, err)
	}

	doc, decErr = document.Decode(key, blob)
	if decErr != nil {
		// Recovery leaves keys loadable. Reaching this means the medium
		// is being modified out from under the engine.
		return nil, fmt.Errorf("vault: load %s after recovery: %w", key, decErr)
	}

	return doc, nil
}

// corruptionKind folds a decode error into a metric label.
func corruptionKind(err error) string {
	switch {
	case errors.Is(err, document.ErrSchema):
		return "schema"
	case errors.Is(err, document.ErrSyntax):
		return "syntax"
	default:
		return "other"
	}
}
