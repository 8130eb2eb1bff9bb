package cli

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
)

// AuditCmd returns the audit command.
func AuditCmd(cfg *Config) *Command {
	flags := flag.NewFlagSet("audit", flag.ContinueOnError)
	limit := flags.IntP("limit", "n", 20, "Number of entries to show (0 for all)")

	return &Command{
		Flags: flags,
		Usage: "audit",
		Short: "Show the tail of the audit trail",
		Long: "Print the most recent audit entries, oldest first: every save,\n" +
			"delete and recovery run the vault has performed.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			s, err := openVault(ctx, cfg, o.ErrWriter(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			return execAudit(o, s, *limit)
		},
	}
}

func execAudit(o *IO, s *session, limit int) error {
	entries := s.Engine.AuditTail(limit)
	if len(entries) == 0 {
		o.Println("Audit trail is empty")

		return nil
	}

	for _, e := range entries {
		o.Printf("%s  %-18s  %-10s  %s\n",
			e.Timestamp.UTC().Format(time.RFC3339), e.Action, e.Key, formatDetail(e.Detail))
	}

	return nil
}

// formatDetail renders a detail map as sorted key=value pairs.
func formatDetail(detail map[string]string) string {
	if len(detail) == 0 {
		return ""
	}

	pairs := make([]string, 0, len(detail))
	for _, k := range slices.Sorted(maps.Keys(detail)) {
		pairs = append(pairs, k+"="+detail[k])
	}

	return strings.Join(pairs, " ")
}
