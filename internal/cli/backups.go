package cli

import (
	"context"
	"time"

	"github.com/inkvault/inkvault/internal/document"

	flag "github.com/spf13/pflag"
)

// BackupsCmd returns the backups command.
func BackupsCmd(cfg *Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("backups", flag.ContinueOnError),
		Usage: "backups <key>",
		Short: "List the timestamped backups of a document",
		Long: "List backups newest first: when each was taken, payload size,\n" +
			"checksum, and the storage slot. Damaged backups are marked; restore\n" +
			"skips them.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return ErrKeyRequired
			}

			key, err := document.ParseKey(args[0])
			if err != nil {
				return err
			}

			s, err := openVault(ctx, cfg, o.ErrWriter(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			return execBackups(ctx, o, s, key)
		},
	}
}

func execBackups(ctx context.Context, o *IO, s *session, key document.Key) error {
	infos, err := s.Engine.ListBackups(ctx, key)
	if err != nil {
		return err
	}

	if len(infos) == 0 {
		o.Println("No backups for", key.String())

		return nil
	}

	o.Printf("%-25s %8s  %-8s  %s\n", "TIMESTAMP", "SIZE", "CHECKSUM", "SLOT")

	for _, info := range infos {
		slot := info.Slot
		if info.Damaged {
			slot += " (damaged)"
		}

		o.Printf("%-25s %8d  %-8s  %s\n",
			info.Timestamp.UTC().Format(time.RFC3339), info.Size, info.Checksum, slot)
	}

	return nil
}
