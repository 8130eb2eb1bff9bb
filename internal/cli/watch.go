package cli

import (
	"context"
	"time"

	"github.com/inkvault/inkvault/internal/vault"

	flag "github.com/spf13/pflag"
)

// WatchCmd returns the watch command.
func WatchCmd(cfg *Config) *Command {
	flags := flag.NewFlagSet("watch", flag.ContinueOnError)
	heal := flags.Bool("recover", false, "Run recovery on documents flagged by the watcher")

	return &Command{
		Flags: flags,
		Usage: "watch",
		Short: "Flag edits made to the data directory by other programs",
		Long: "Watch the data directory and report documents modified outside the\n" +
			"vault. With --recover, each flagged document is immediately walked\n" +
			"through the recovery ladder. Runs until interrupted. File medium only.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			s, err := openVault(ctx, cfg, o.ErrWriter(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			ch, err := s.Engine.Watch(ctx)
			if err != nil {
				return err
			}

			o.Println("Watching", cfg.DataDirAbs, "(ctrl-c to stop)")

			for key := range ch {
				o.Printf("%s  %s changed outside the vault\n",
					time.Now().UTC().Format(time.RFC3339), key)

				if !*heal {
					continue
				}

				out, err := s.Engine.Recover(ctx, key, vault.DefaultRecoverOptions())
				if err != nil {
					return err
				}

				printOutcome(o, out)
			}

			return nil
		},
	}
}
