package medium

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// BadgerOptions configures [OpenBadger].
type BadgerOptions struct {
	// Path is the directory for the BadgerDB files.
	// Required unless InMemory is set, ignored when it is.
	Path string

	// InMemory keeps everything in RAM. Data is lost on Close; meant for
	// tests and throwaway vaults.
	InMemory bool

	// SyncWrites makes every write durable before it returns. The vault's
	// atomic-or-nothing guarantee on this medium depends on it; only
	// disable for tests.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger
}

// Badger stores slots as keys in an embedded BadgerDB. Transactional Set
// gives the atomic-or-nothing write; prefix iteration backs List.
//
// BadgerDB takes its own directory lock, so a second engine on the same
// path fails at Open.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (creating if needed) a Badger medium.
func OpenBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, errors.New("medium: badger path is required for a persistent vault")
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(opts.Path)
	}

	bopts = bopts.WithSyncWrites(opts.SyncWrites)
	bopts = bopts.WithNumVersionsToKeep(1)

	if opts.Logger != nil {
		bopts = bopts.WithLogger(&badgerLogger{logger: opts.Logger})
	} else {
		bopts = bopts.WithLogger(nil)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("medium: open badger: %w", err)
	}

	return &Badger{db: db}, nil
}

func (m *Badger) Read(ctx context.Context, slot string) ([]byte, error) {
	if err := checkCtxAndSlot(ctx, slot); err != nil {
		return nil, err
	}

	var blob []byte

	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(slot))
		if err != nil {
			return err
		}

		blob, err = item.ValueCopy(nil)

		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSlotNotExist, slot)
		}

		if errors.Is(err, badger.ErrDBClosed) {
			return nil, ErrClosed
		}

		return nil, fmt.Errorf("medium: read %s: %w", slot, err)
	}

	return blob, nil
}

func (m *Badger) Write(ctx context.Context, slot string, blob []byte) error {
	if err := checkCtxAndSlot(ctx, slot); err != nil {
		return err
	}

	err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(slot), blob)
	})
	if err != nil {
		if errors.Is(err, badger.ErrDBClosed) {
			return ErrClosed
		}

		return fmt.Errorf("medium: write %s: %w", slot, err)
	}

	return nil
}

func (m *Badger) Delete(ctx context.Context, slot string) error {
	if err := checkCtxAndSlot(ctx, slot); err != nil {
		return err
	}

	err := m.db.Update(func(txn *badger.Txn) error {
		// Get first so a delete of nothing reports ErrSlotNotExist,
		// matching the file medium.
		if _, err := txn.Get([]byte(slot)); err != nil {
			return err
		}

		return txn.Delete([]byte(slot))
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrSlotNotExist, slot)
		}

		if errors.Is(err, badger.ErrDBClosed) {
			return ErrClosed
		}

		return fmt.Errorf("medium: delete %s: %w", slot, err)
	}

	return nil
}

func (m *Badger) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := validatePrefix(prefix); err != nil {
		return nil, err
	}

	var slots []string

	err := m.db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.PrefetchValues = false
		iopts.Prefix = []byte(prefix)

		it := txn.NewIterator(iopts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			slots = append(slots, string(it.Item().KeyCopy(nil)))
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, badger.ErrDBClosed) {
			return nil, ErrClosed
		}

		return nil, fmt.Errorf("medium: list %q: %w", prefix, err)
	}

	return slots, nil
}

func (m *Badger) Close() error {
	err := m.db.Close()
	if err != nil && !errors.Is(err, badger.ErrDBClosed) {
		return fmt.Errorf("medium: close badger: %w", err)
	}

	return nil
}

func checkCtxAndSlot(ctx context.Context, slot string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return ValidateSlot(slot)
}

// badgerLogger adapts slog to BadgerDB's logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Compile-time interface check.
var _ Medium = (*Badger)(nil)
