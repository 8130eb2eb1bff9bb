package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/inkvault/inkvault/internal/document"
	"github.com/inkvault/inkvault/internal/vault"

	flag "github.com/spf13/pflag"
)

// ShellCmd returns the shell command.
func ShellCmd(cfg *Config, _ io.Reader) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell",
		Short: "Interactive vault session",
		Long: "Open the vault once and work on it interactively. The session holds\n" +
			"the medium lock until you exit, so saves and recoveries do not pay\n" +
			"the open/close cost per command.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			s, err := openVault(ctx, cfg, o.ErrWriter(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			r := &REPL{s: s, o: o, cfg: cfg}

			return r.Run(ctx)
		},
	}
}

// REPL is the interactive command loop.
type REPL struct {
	s     *session
	o     *IO
	cfg   *Config
	liner *liner.State
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".inkvault_history")
}

// Run starts the REPL loop.
func (r *REPL) Run(ctx context.Context) error {
	// Set up liner for readline-style input
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	// Configure liner
	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	// Load history
	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	r.o.Println("inkvault shell -", r.cfg.DataDirAbs)
	r.o.Println("Type 'help' for available commands.")
	r.o.Println()

	for {
		line, err := r.liner.Prompt("inkvault> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				r.o.Println("\nBye!")

				break
			}

			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Add to history
		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		if cmd == "exit" || cmd == "quit" || cmd == "q" {
			r.o.Println("Bye!")

			break
		}

		if err := r.dispatch(ctx, cmd, args, line); err != nil {
			r.o.ErrPrintln("error:", err)
		}
	}

	r.saveHistory()

	return nil
}

func (r *REPL) dispatch(ctx context.Context, cmd string, args []string, line string) error {
	switch cmd {
	case "help", "?":
		r.printHelp()

		return nil

	case "get":
		return r.cmdGet(ctx, args)

	case "put":
		return r.cmdPut(ctx, line)

	case "del", "delete":
		return r.cmdDelete(ctx, args)

	case "recover":
		return r.cmdRecover(ctx, args)

	case "restore":
		return r.cmdRestore(ctx, args)

	case "backups":
		key, err := argKey(args)
		if err != nil {
			return err
		}

		return execBackups(ctx, r.o, r.s, key)

	case "status":
		return execStatus(ctx, r.o, r.s)

	case "audit":
		limit := 20
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}

			limit = n
		}

		return execAudit(r.o, r.s, limit)

	case "clear", "cls":
		r.o.Printf("\033[H\033[2J")

		return nil

	default:
		r.o.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)

		return nil
	}
}

func argKey(args []string) (document.Key, error) {
	if len(args) == 0 {
		return "", ErrKeyRequired
	}

	return document.ParseKey(args[0])
}

func (r *REPL) cmdGet(ctx context.Context, args []string) error {
	key, err := argKey(args)
	if err != nil {
		return err
	}

	doc, err := r.s.Engine.Load(ctx, key)
	if err != nil {
		return err
	}

	blob, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	r.o.Println(string(blob))

	return nil
}

// cmdPut takes the document JSON from the rest of the line:
//
//	put notes [{"id": "n1", "title": "hello"}]
func (r *REPL) cmdPut(ctx context.Context, line string) error {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "put"))

	keyStr, jsonText, _ := strings.Cut(rest, " ")
	if keyStr == "" {
		return ErrKeyRequired
	}

	key, err := document.ParseKey(keyStr)
	if err != nil {
		return err
	}

	doc, err := document.Decode(key, []byte(strings.TrimSpace(jsonText)))
	if err != nil {
		return err
	}

	if err := r.s.Engine.Save(ctx, doc); err != nil {
		return err
	}

	r.o.Println("Saved", key.String())

	return nil
}

func (r *REPL) cmdDelete(ctx context.Context, args []string) error {
	key, err := argKey(args)
	if err != nil {
		return err
	}

	if err := r.s.Engine.Delete(ctx, key); err != nil {
		return err
	}

	r.o.Println("Deleted", key.String())

	return nil
}

func (r *REPL) cmdRecover(ctx context.Context, args []string) error {
	key, err := argKey(args)
	if err != nil {
		return err
	}

	out, err := r.s.Engine.Recover(ctx, key, vault.DefaultRecoverOptions())
	if err != nil {
		return err
	}

	printOutcome(r.o, out)

	return nil
}

func (r *REPL) cmdRestore(ctx context.Context, args []string) error {
	key, err := argKey(args)
	if err != nil {
		return err
	}

	ok, err := r.s.Engine.RestoreLatestBackup(ctx, key)
	if err != nil {
		return err
	}

	if !ok {
		r.o.Println("No valid backup for", key.String())

		return nil
	}

	r.o.Println("Restored", key.String())

	return nil
}

// saveHistory persists command history to disk.
func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

// completer provides tab completion for commands and document keys.
func (r *REPL) completer(line string) []string {
	commands := []string{
		"get", "put", "del", "delete",
		"recover", "restore", "backups",
		"status", "audit", "clear", "cls",
		"help", "exit", "quit", "q",
	}

	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (r *REPL) printHelp() {
	r.o.Println("Commands:")
	r.o.Println("  get <key>              Print a document as JSON")
	r.o.Println("  put <key> <json>       Validate and save a document")
	r.o.Println("  del <key>              Delete a document")
	r.o.Println("  recover <key>          Run the full recovery ladder")
	r.o.Println("  restore <key>          Reinstate the newest valid backup")
	r.o.Println("  backups <key>          List backups")
	r.o.Println("  status                 Check every document")
	r.o.Println("  audit [n]              Show the audit trail tail")
	r.o.Println("  help                   Show this help")
	r.o.Println("  exit / quit / q        Exit")
	r.o.Println()
	r.o.Println("Keys:", keyList())
}

func keyList() string {
	keys := document.Keys()
	names := make([]string, len(keys))

	for i, k := range keys {
		names[i] = k.String()
	}

	return strings.Join(names, ", ")
}
