package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/inkvault/inkvault/internal/document"
	"github.com/inkvault/inkvault/internal/vault"

	flag "github.com/spf13/pflag"
)

// RecoverCmd returns the recover command.
func RecoverCmd(cfg *Config) *Command {
	flags := flag.NewFlagSet("recover", flag.ContinueOnError)
	all := flags.Bool("all", false, "Recover every document")
	dryRun := flags.Bool("dry-run", false, "Report what recovery would do without writing")
	noBackup := flags.Bool("no-backup-first", false, "Skip snapshotting the corrupted blob")
	noRestore := flags.Bool("no-restore", false, "Skip restoring from backups")
	noQuarantine := flags.Bool("no-quarantine", false, "Discard the corrupted blob instead of quarantining it")
	keep := flags.Bool("keep-corrupted", false, "Leave the stored blob untouched when unrecoverable")

	return &Command{
		Flags: flags,
		Usage: "recover [key]",
		Short: "Repair or restore corrupted documents",
		Long: "Walk a corrupted document through the recovery ladder: mechanical\n" +
			"repair, then the newest valid backup, then quarantine-and-reset.\n" +
			"Healthy documents are left untouched.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			keys, err := recoverTargets(args, *all)
			if err != nil {
				return err
			}

			s, err := openVault(ctx, cfg, o.ErrWriter(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			if *dryRun {
				return recoverDryRun(ctx, o, s, keys)
			}

			opts := vault.RecoverOptions{
				CreateBackupFirst: !*noBackup,
				AutoRestore:       !*noRestore,
				PreserveUserData:  !*noQuarantine,
				ClearCorrupted:    !*keep,
			}

			for _, key := range keys {
				out, err := s.Engine.Recover(ctx, key, opts)
				if err != nil {
					return err
				}

				printOutcome(o, out)
			}

			return nil
		},
	}
}

func recoverTargets(args []string, all bool) ([]document.Key, error) {
	if all {
		return document.Keys(), nil
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("%w (or use --all)", ErrKeyRequired)
	}

	key, err := document.ParseKey(args[0])
	if err != nil {
		return nil, err
	}

	return []document.Key{key}, nil
}

func recoverDryRun(ctx context.Context, o *IO, s *session, keys []document.Key) error {
	res, err := s.Engine.Validate(ctx)
	if err != nil {
		return err
	}

	corrupted := make(map[document.Key]bool, len(res.CorruptedKeys))
	for _, key := range res.CorruptedKeys {
		corrupted[key] = true
	}

	for _, key := range keys {
		if !corrupted[key] {
			o.Printf("%s: healthy, nothing to do\n", key)

			continue
		}

		o.Printf("%s: corrupt (%s)\n", key, issueFor(res.Errors, key))

		if res.Recoverable[key] != nil {
			o.Printf("%s: would repair in place\n", key)
		} else {
			o.Printf("%s: would try backups, then quarantine and reset\n", key)
		}
	}

	return nil
}

// issueFor finds the validation error recorded for key. Errors are
// "key: reason" strings, one per corrupted key.
func issueFor(issues []string, key document.Key) string {
	prefix := key.String() + ": "

	for _, issue := range issues {
		if after, ok := strings.CutPrefix(issue, prefix); ok {
			return after
		}
	}

	return "unknown cause"
}

func printOutcome(o *IO, out vault.RecoveryOutcome) {
	switch out.Method {
	case vault.MethodNone:
		o.Printf("%s: healthy, nothing to do\n", out.Key)
	case vault.MethodRepair:
		o.Printf("%s: recovered by in-place repair\n", out.Key)
	case vault.MethodBackup:
		o.Printf("%s: recovered, %s\n", out.Key, out.Detail)
	case vault.MethodDefault:
		if out.Detail != "" {
			o.Printf("%s: reset to empty default (%s)\n", out.Key, out.Detail)
		} else {
			o.Printf("%s: reset to empty default\n", out.Key)
		}
	default:
		o.Printf("%s: still corrupted\n", out.Key)
	}

	if out.State == vault.StateUnrecoverable {
		o.Warn(
			fmt.Sprintf("user data for %s could not be recovered", out.Key),
			"run 'inkvault quarantine "+out.Key.String()+"' to inspect the original bytes",
		)
	}
}
