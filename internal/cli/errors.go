package cli

import "errors"

// Error variables for CLI and config handling.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrDataDirEmpty       = errors.New("data-dir cannot be empty")
	ErrUnknownMedium      = errors.New("unknown medium (want file or badger)")
	ErrRateLimitInvalid   = errors.New("backup_rate_limit is not a duration")
	ErrLimitNegative      = errors.New("limit cannot be negative")
	ErrFlagRequiresArg    = errors.New("flag requires an argument")
	ErrUnknownFlag        = errors.New("unknown flag")
	ErrKeyRequired        = errors.New("document key is required")
	ErrNoValidBackup      = errors.New("no valid backup to restore")
	ErrNoInput            = errors.New("no input available on stdin")
)
