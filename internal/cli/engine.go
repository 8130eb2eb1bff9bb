package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/inkvault/inkvault/internal/medium"
	"github.com/inkvault/inkvault/internal/vault"
)

// Medium names accepted in config files and --medium.
const (
	MediumFile   = "file"
	MediumBadger = "badger"
)

// session bundles an open engine with its medium so a command can
// release both when it is done.
type session struct {
	Engine *vault.Engine

	med medium.Medium
	log *slog.Logger
}

func (s *session) Close() {
	_ = s.Engine.Close()

	if err := s.med.Close(); err != nil {
		s.log.Warn("closing medium", "error", err)
	}
}

// openVault opens the medium named by the config and starts an engine on
// it. autoRecover routes corrupted loads through the recovery pipeline
// instead of failing them.
func openVault(ctx context.Context, cfg *Config, errOut io.Writer, autoRecover bool) (*session, error) {
	log := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: slog.LevelWarn}))

	med, err := openMedium(cfg, log)
	if err != nil {
		return nil, err
	}

	eng, err := vault.Open(ctx, vault.Options{
		Medium:          med,
		Logger:          log,
		MaxBackups:      cfg.MaxBackups,
		BackupRateLimit: cfg.BackupRateWindow(),
		MaxQuarantine:   cfg.MaxQuarantine,
		MaxAuditEntries: cfg.MaxAuditEntries,
		AutoRecover:     autoRecover,
	})
	if err != nil {
		_ = med.Close()

		return nil, err
	}

	return &session{Engine: eng, med: med, log: log}, nil
}

func openMedium(cfg *Config, log *slog.Logger) (medium.Medium, error) {
	switch cfg.Medium {
	case MediumFile:
		return medium.OpenFile(medium.FileOptions{Root: cfg.DataDirAbs})
	case MediumBadger:
		return medium.OpenBadger(medium.BadgerOptions{
			Path:       filepath.Join(cfg.DataDirAbs, "badger"),
			SyncWrites: true,
			Logger:     log,
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMedium, cfg.Medium)
	}
}
