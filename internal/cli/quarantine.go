package cli

import (
	"bytes"
	"context"
	"time"

	"github.com/natefinch/atomic"

	"github.com/inkvault/inkvault/internal/document"

	flag "github.com/spf13/pflag"
)

// QuarantineCmd returns the quarantine command.
func QuarantineCmd(cfg *Config) *Command {
	flags := flag.NewFlagSet("quarantine", flag.ContinueOnError)
	dump := flags.String("dump", "", "Print the raw bytes of a quarantined slot")
	output := flags.StringP("output", "o", "", "With --dump, write the bytes to a file instead of stdout")

	return &Command{
		Flags: flags,
		Usage: "quarantine [key]",
		Short: "List or dump quarantined blobs",
		Long: "List the corrupted blobs recovery set aside, for one key or all of\n" +
			"them. --dump writes the verbatim bytes of a slot to stdout, or to a\n" +
			"file with -o, for manual salvage.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			s, err := openVault(ctx, cfg, o.ErrWriter(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			if *dump != "" {
				blob, err := s.Engine.QuarantinedBlob(ctx, *dump)
				if err != nil {
					return err
				}

				if *output != "" {
					return atomic.WriteFile(*output, bytes.NewReader(blob))
				}

				o.Printf("%s", blob)

				return nil
			}

			keys := document.Keys()

			if len(args) > 0 {
				key, err := document.ParseKey(args[0])
				if err != nil {
					return err
				}

				keys = []document.Key{key}
			}

			total := 0

			for _, key := range keys {
				infos, err := s.Engine.Quarantined(ctx, key)
				if err != nil {
					return err
				}

				for _, info := range infos {
					if total == 0 {
						o.Printf("%-25s %8s  %s\n", "TIMESTAMP", "SIZE", "SLOT")
					}

					o.Printf("%-25s %8d  %s\n",
						info.Timestamp.UTC().Format(time.RFC3339), info.Size, info.Slot)

					total++
				}
			}

			if total == 0 {
				o.Println("Quarantine is empty")
			}

			return nil
		},
	}
}
