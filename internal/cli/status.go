package cli

import (
	"context"

	"github.com/inkvault/inkvault/internal/document"

	flag "github.com/spf13/pflag"
)

// StatusCmd returns the status command.
func StatusCmd(cfg *Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("status", flag.ContinueOnError),
		Usage: "status",
		Short: "Check every document and report corruption",
		Long: "Validate every stored document and list its backup count.\n" +
			"Corrupted documents are flagged as warnings and the exit code is 1.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			s, err := openVault(ctx, cfg, o.ErrWriter(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			return execStatus(ctx, o, s)
		},
	}
}

func execStatus(ctx context.Context, o *IO, s *session) error {
	res, err := s.Engine.Validate(ctx)
	if err != nil {
		return err
	}

	corrupted := make(map[document.Key]bool, len(res.CorruptedKeys))
	for _, key := range res.CorruptedKeys {
		corrupted[key] = true
	}

	for _, key := range document.Keys() {
		backups, err := s.Engine.ListBackups(ctx, key)
		if err != nil {
			return err
		}

		state := "ok"
		if corrupted[key] {
			state = "corrupt"
		}

		o.Printf("%-11s %-8s %d backups\n", key, state, len(backups))
	}

	for _, issue := range res.Errors {
		o.Warn(issue, "run 'inkvault recover' to repair it")
	}

	return nil
}
