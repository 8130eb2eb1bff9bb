package cli

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/natefinch/atomic"

	"github.com/inkvault/inkvault/internal/document"

	flag "github.com/spf13/pflag"
)

// GetCmd returns the get command.
func GetCmd(cfg *Config) *Command {
	flags := flag.NewFlagSet("get", flag.ContinueOnError)
	output := flags.StringP("output", "o", "", "Write the document to a file instead of stdout")
	autoRecover := flags.Bool("recover", false, "Recover the document first if it is corrupted")

	return &Command{
		Flags: flags,
		Usage: "get <key>",
		Short: "Print a stored document as JSON",
		Long: "Load a document and print it as indented JSON. Missing documents\n" +
			"print as their empty defaults. With --recover, a corrupted document\n" +
			"is repaired, restored or reset before it is printed.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return ErrKeyRequired
			}

			key, err := document.ParseKey(args[0])
			if err != nil {
				return err
			}

			s, err := openVault(ctx, cfg, o.ErrWriter(), *autoRecover)
			if err != nil {
				return err
			}
			defer s.Close()

			doc, err := s.Engine.Load(ctx, key)
			if err != nil {
				return err
			}

			blob, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}

			if *output != "" {
				return atomic.WriteFile(*output, bytes.NewReader(append(blob, '\n')))
			}

			o.Println(string(blob))

			return nil
		},
	}
}
