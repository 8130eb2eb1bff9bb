package vault

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/inkvault/inkvault/internal/document"
	"github.com/inkvault/inkvault/internal/medium"
)

const (
	// watchDebounce batches the event bursts editors produce for one
	// logical change.
	watchDebounce = 250 * time.Millisecond

	// watchSuppress is how long after an engine write events for that
	// key are assumed to be our own. External edits inside the window
	// go unflagged; that is the cost of not having file provenance.
	watchSuppress = 2 * time.Second
)

// Watch flags out-of-band edits of the primary document files: anything
// that changes notes.json and friends without going through the engine.
// Flagged keys arrive on the returned channel, debounced, until ctx
// ends; then the channel closes.
//
// Only the file medium can be watched. Callers typically follow up with
// [Engine.Validate] or [Engine.Recover] on each flagged key.
func (e *Engine) Watch(ctx context.Context) (<-chan document.Key, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	fm, ok := e.medium.(*medium.File)
	if !ok {
		return nil, errors.New("vault: watching requires the file medium")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("vault: watch: %w", err)
	}

	if err := fsw.Add(fm.Root()); err != nil {
		_ = fsw.Close()

		return nil, fmt.Errorf("vault: watch %s: %w", fm.Root(), err)
	}

	out := make(chan document.Key, 16)

	go e.watchLoop(ctx, fsw, out)

	return out, nil
}

func (e *Engine) watchLoop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- document.Key) {
	defer close(out)
	defer fsw.Close()

	pending := make(map[document.Key]time.Time)

	ticker := time.NewTicker(watchDebounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}

			if !ev.Has(fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename) {
				continue
			}

			if key, ok := watchedKey(ev.Name); ok {
				pending[key] = time.Now()
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}

			e.log.Warn("watcher error", "error", err)

		case <-ticker.C:
			now := time.Now()

			for key, at := range pending {
				if now.Sub(at) < watchDebounce {
					continue
				}

				delete(pending, key)

				if e.wroteRecently(key, watchSuppress) {
					continue
				}

				e.log.Warn("document changed outside the engine", "key", key)
				recordTamper(key)

				select {
				case out <- key:
				default:
					// Slow consumer. The next event for this key
					// flags it again.
				}
			}
		}
	}
}

// watchedKey maps an event path to its logical key. Temp files from
// atomic writes and unrelated files fall out here.
func watchedKey(path string) (document.Key, bool) {
	stem, ok := strings.CutSuffix(filepath.Base(path), ".json")
	if !ok {
		return "", false
	}

	key, err := document.ParseKey(stem)
	if err != nil {
		return "", false
	}

	return key, true
}
