// Package config resolves booktracker settings from defaults, an optional
// .env file, BOOKTRACKER_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"booktracker/logging"
	"booktracker/plugins/workbook"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "BOOKTRACKER"

// Keys double as flag names.
const (
	KeyDB              = "db"
	KeyImportFile      = "import-file"
	KeySpreadsheetID   = "spreadsheet-id"
	KeyCredentialsFile = "credentials-file"
	KeyLogLevel        = "log-level"
	KeyLogFile         = "log-file"
	KeyDebug           = "debug"
	KeyMaxBackups      = "max-backups"
)

const (
	DefaultDBPath     = "booktracker.db"
	DefaultLogLevel   = "info"
	DefaultMaxBackups = 5
)

type Config struct {
	DBPath          string
	ImportFile      string
	SpreadsheetID   string
	CredentialsFile string
	LogLevel        string
	LogFile         string
	Debug           bool
	MaxBackups      int
}

// LoadDotEnv loads variables from the given files (default .env) without
// overriding the environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDB, DefaultDBPath)
	v.SetDefault(KeyImportFile, workbook.DefaultFileName)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyMaxBackups, DefaultMaxBackups)
}

// Load reads the configuration from v. Flags must already be bound to v.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		DBPath:          strings.TrimSpace(v.GetString(KeyDB)),
		ImportFile:      strings.TrimSpace(v.GetString(KeyImportFile)),
		SpreadsheetID:   strings.TrimSpace(v.GetString(KeySpreadsheetID)),
		CredentialsFile: strings.TrimSpace(v.GetString(KeyCredentialsFile)),
		LogLevel:        strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogFile:         strings.TrimSpace(v.GetString(KeyLogFile)),
		Debug:           v.GetBool(KeyDebug),
		MaxBackups:      v.GetInt(KeyMaxBackups),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("config: %s must not be empty", KeyDB)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: invalid %s %q", KeyLogLevel, c.LogLevel)
	}
	if c.MaxBackups <= 0 {
		return fmt.Errorf("config: %s must be positive, got %d", KeyMaxBackups, c.MaxBackups)
	}
	if c.SpreadsheetID != "" && c.CredentialsFile == "" {
		return fmt.Errorf("config: %s requires %s", KeySpreadsheetID, KeyCredentialsFile)
	}
	return nil
}

// ImportSource is the Google Sheet when a spreadsheet id is configured,
// otherwise the .xlsx file looked up through the default candidate paths.
func (c *Config) ImportSource() workbook.Source {
	if c.SpreadsheetID != "" {
		return &workbook.SheetsSource{SpreadsheetID: c.SpreadsheetID, CredentialsFile: c.CredentialsFile}
	}
	return workbook.NewFileSource(c.ImportFile)
}

func (c *Config) LogOptions() logging.Options {
	return logging.Options{Level: c.LogLevel, File: c.LogFile, Debug: c.Debug}
}
