package cli

import (
	"context"
	"io"
	"os"

	"github.com/inkvault/inkvault/internal/document"

	flag "github.com/spf13/pflag"
)

// PutCmd returns the put command.
func PutCmd(cfg *Config, in io.Reader) *Command {
	return &Command{
		Flags: flag.NewFlagSet("put", flag.ContinueOnError),
		Usage: "put <key> [file]",
		Short: "Validate and save a document",
		Long: "Read a JSON document from a file (or stdin when the file is omitted\n" +
			"or \"-\"), validate it against the schema for <key>, and save it.\n" +
			"The previous contents are backed up first.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return ErrKeyRequired
			}

			key, err := document.ParseKey(args[0])
			if err != nil {
				return err
			}

			var raw []byte

			if len(args) > 1 && args[1] != "-" {
				raw, err = os.ReadFile(args[1])
			} else {
				if in == nil {
					return ErrNoInput
				}

				raw, err = io.ReadAll(in)
			}

			if err != nil {
				return err
			}

			// Decode before opening the vault: a document that does not
			// parse or fit the schema never touches the store.
			doc, err := document.Decode(key, raw)
			if err != nil {
				return err
			}

			s, err := openVault(ctx, cfg, o.ErrWriter(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Engine.Save(ctx, doc); err != nil {
				return err
			}

			o.Printf("Saved %s (%d bytes)\n", key, len(raw))

			return nil
		},
	}
}
