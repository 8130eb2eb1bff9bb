package cli

import (
	"context"
	"fmt"

	"github.com/inkvault/inkvault/internal/document"

	flag "github.com/spf13/pflag"
)

// RestoreCmd returns the restore command.
func RestoreCmd(cfg *Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("restore", flag.ContinueOnError),
		Usage: "restore <key>",
		Short: "Reinstate the newest valid backup",
		Long: "Replace the stored document with the newest backup whose checksum\n" +
			"verifies and whose payload still decodes. The current contents are\n" +
			"backed up before they are replaced.",
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

			ok, err := s.Engine.RestoreLatestBackup(ctx, key)
			if err != nil {
				return err
			}

			if !ok {
				return fmt.Errorf("%w: %s", ErrNoValidBackup, key)
			}

			o.Println("Restored", key.String(), "from the newest valid backup")

			return nil
		},
	}
}
