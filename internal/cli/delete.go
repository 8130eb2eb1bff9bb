package cli

import (
	"context"

	"github.com/inkvault/inkvault/internal/document"

	flag "github.com/spf13/pflag"
)

// DeleteCmd returns the delete command.
func DeleteCmd(cfg *Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("delete", flag.ContinueOnError),
		Usage: "delete <key>",
		Short: "Delete a document (a final backup is taken first)",
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

			if err := s.Engine.Delete(ctx, key); err != nil {
				return err
			}

			o.Println("Deleted", key.String())

			return nil
		},
	}
}
