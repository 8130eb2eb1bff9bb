package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/inkvault/inkvault/internal/cli"
)

func Test_Config_Defaults_When_No_Files(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "data_dir="+c.DataDir())
	cli.AssertContains(t, stdout, "medium=file")
	cli.AssertContains(t, stdout, "(defaults only)")
}

func Test_Config_Project_File_Overrides_Defaults(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteConfig(`{"data_dir": "vaultdata", "max_backups": 3}`)

	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "data_dir="+filepath.Join(c.Dir, "vaultdata"))
	cli.AssertContains(t, stdout, "max_backups=3")
	cli.AssertContains(t, stdout, "project_config="+filepath.Join(c.Dir, cli.ConfigFileName))
}

func Test_Config_Supports_JSONC(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteConfig(`{
		// keep more history than the default
		"max_backups": 9,
	}`)

	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "max_backups=9")
}

func Test_Config_Global_File_Applies(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	xdg := t.TempDir()
	c.Env["XDG_CONFIG_HOME"] = xdg

	globalDir := filepath.Join(xdg, "inkvault")
	if err := os.MkdirAll(globalDir, 0o755); err != nil {
		t.Fatal(err)
	}

	globalPath := filepath.Join(globalDir, "config.json")
	if err := os.WriteFile(globalPath, []byte(`{"max_backups": 7}`), 0o600); err != nil {
		t.Fatal(err)
	}

	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "max_backups=7")
	cli.AssertContains(t, stdout, "global_config="+globalPath)
}

func Test_Config_Project_Overrides_Global(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	xdg := t.TempDir()
	c.Env["XDG_CONFIG_HOME"] = xdg

	globalDir := filepath.Join(xdg, "inkvault")
	if err := os.MkdirAll(globalDir, 0o755); err != nil {
		t.Fatal(err)
	}

	err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(`{"max_backups": 7}`), 0o600)
	if err != nil {
		t.Fatal(err)
	}

	c.WriteConfig(`{"max_backups": 2}`)

	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "max_backups=2")
}

func Test_Config_CLI_Flag_Wins_Over_Files(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteConfig(`{"data_dir": "from-file"}`)

	stdout := c.MustRun("--data-dir", "from-flag", "print-config")

	cli.AssertContains(t, stdout, "data_dir="+filepath.Join(c.Dir, "from-flag"))
}

func Test_Config_Explicit_File_Must_Exist(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("-c", "nope.json", "print-config")

	cli.AssertContains(t, stderr, "config file not found")
	cli.AssertContains(t, stderr, "nope.json")
}

func Test_Config_Rejects_Empty_Data_Dir(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteConfig(`{"data_dir": ""}`)

	stderr := c.MustFail("print-config")

	cli.AssertContains(t, stderr, "data-dir cannot be empty")
}

func Test_Config_Rejects_Unknown_Medium(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteConfig(`{"medium": "floppy"}`)

	stderr := c.MustFail("print-config")

	cli.AssertContains(t, stderr, "unknown medium")
	cli.AssertContains(t, stderr, "floppy")
}

func Test_Config_Rejects_Malformed_Rate_Limit(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteConfig(`{"backup_rate_limit": "fast"}`)

	stderr := c.MustFail("print-config")

	cli.AssertContains(t, stderr, "backup_rate_limit is not a duration")
}

func Test_Config_Rejects_Negative_Limits(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteConfig(`{"max_backups": -1}`)

	stderr := c.MustFail("print-config")

	cli.AssertContains(t, stderr, "limit cannot be negative")
	cli.AssertContains(t, stderr, "max_backups")
}

func Test_Config_Rejects_Invalid_JSON(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteConfig(`{"data_dir": `)

	stderr := c.MustFail("print-config")

	cli.AssertContains(t, stderr, "invalid config file")
}
