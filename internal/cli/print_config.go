package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(cfg *Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return execPrintConfig(o, cfg)
		},
	}
}

func execPrintConfig(o *IO, cfg *Config) error {
	o.Println("effective_cwd=" + cfg.EffectiveCwd)
	o.Println("data_dir=" + cfg.DataDirAbs)
	o.Println("medium=" + cfg.Medium)

	if cfg.MaxBackups != 0 {
		o.Printf("max_backups=%d\n", cfg.MaxBackups)
	}

	if cfg.BackupRateLimit != "" {
		o.Println("backup_rate_limit=" + cfg.BackupRateLimit)
	}

	if cfg.MaxQuarantine != 0 {
		o.Printf("max_quarantine=%d\n", cfg.MaxQuarantine)
	}

	if cfg.MaxAuditEntries != 0 {
		o.Printf("max_audit_entries=%d\n", cfg.MaxAuditEntries)
	}

	o.Println("")
	o.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		o.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			o.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			o.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}
