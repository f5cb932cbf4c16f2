// Package config loads opsdash settings from defaults, an optional config
// file, a .env file, OPSDASH_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Dicklesworthstone/opsdash/internal/model"
	"github.com/Dicklesworthstone/opsdash/internal/sortstate"
)

// Intervals is the polling cadence per resource.
type Intervals struct {
	Stats           time.Duration `mapstructure:"stats" validate:"gt=0"`
	CurrentUsers    time.Duration `mapstructure:"current_users" validate:"gt=0"`
	Processes       time.Duration `mapstructure:"processes" validate:"gt=0"`
	Logs            time.Duration `mapstructure:"system_logs" validate:"gt=0"`
	LastLoggedUsers time.Duration `mapstructure:"last_logged_users" validate:"gt=0"`
	Uptime          time.Duration `mapstructure:"uptime" validate:"gt=0"`
}

// For returns the interval configured for r, or zero for unknown resources.
func (i Intervals) For(r model.Resource) time.Duration {
	switch r {
	case model.ResourceStats:
		return i.Stats
	case model.ResourceCurrentUsers:
		return i.CurrentUsers
	case model.ResourceProcesses:
		return i.Processes
	case model.ResourceLogs:
		return i.Logs
	case model.ResourceLastLoggedUsers:
		return i.LastLoggedUsers
	case model.ResourceUptime:
		return i.Uptime
	}
	return 0
}

// Config carries runtime options for opsdash.
type Config struct {
	BaseURL            string        `mapstructure:"base_url" validate:"omitempty,url"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" validate:"gte=0"`
	StateDir           string        `mapstructure:"state_dir" validate:"required"`
	// Local samples this host instead of talking to a backend.
	Local bool `mapstructure:"local"`
	// Sort is the process column applied to the first list shown.
	Sort      string    `mapstructure:"sort"`
	Intervals Intervals `mapstructure:"intervals"`
}

func Default() Config {
	return Config{
		BaseURL:            "https://localhost:8765",
		InsecureSkipVerify: true,
		RequestTimeout:     10 * time.Second,
		StateDir:           defaultStateDir(),
		Intervals: Intervals{
			Stats:           3 * time.Second,
			CurrentUsers:    5 * time.Second,
			Processes:       5 * time.Second,
			Logs:            30 * time.Second,
			LastLoggedUsers: 10 * time.Second,
			Uptime:          time.Second,
		},
	}
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "opsdash")
	}
	return ".opsdash"
}

// Flags registers the command-line overrides on fs.
func Flags(fs *pflag.FlagSet) {
	def := Default()
	fs.String("config", "", "config file (default ./opsdash.yaml or $HOME/.opsdash/opsdash.yaml)")
	fs.String("base-url", def.BaseURL, "backend origin")
	fs.Bool("insecure", def.InsecureSkipVerify, "skip TLS certificate verification")
	fs.Duration("timeout", def.RequestTimeout, "per-request timeout, 0 for none")
	fs.String("state-dir", def.StateDir, "directory for the session file and log")
	fs.Bool("local", def.Local, "sample this host instead of a backend")
	fs.String("sort", def.Sort, "initial process sort column: pid|name|cpu|memory")
}

var flagKeys = map[string]string{
	"base-url":  "base_url",
	"insecure":  "insecure_skip_verify",
	"timeout":   "request_timeout",
	"state-dir": "state_dir",
	"local":     "local",
	"sort":      "sort",
}

// Load builds the configuration. fs may be nil.
func Load(fs *pflag.FlagSet) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	def := Default()
	v.SetDefault("base_url", def.BaseURL)
	v.SetDefault("insecure_skip_verify", def.InsecureSkipVerify)
	v.SetDefault("request_timeout", def.RequestTimeout)
	v.SetDefault("state_dir", def.StateDir)
	v.SetDefault("local", def.Local)
	v.SetDefault("sort", def.Sort)
	v.SetDefault("intervals.stats", def.Intervals.Stats)
	v.SetDefault("intervals.current_users", def.Intervals.CurrentUsers)
	v.SetDefault("intervals.processes", def.Intervals.Processes)
	v.SetDefault("intervals.system_logs", def.Intervals.Logs)
	v.SetDefault("intervals.last_logged_users", def.Intervals.LastLoggedUsers)
	v.SetDefault("intervals.uptime", def.Intervals.Uptime)

	var file string
	if fs != nil {
		file, _ = fs.GetString("config")
	}
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("opsdash")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.opsdash")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("OPSDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("binding flag %s: %w", flag, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and that a backend is set unless local.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !c.Local && c.BaseURL == "" {
		return errors.New("invalid config: base_url is required unless local is set")
	}
	if _, err := c.SortColumn(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SortColumn parses Sort. An empty Sort yields an empty column.
func (c Config) SortColumn() (sortstate.Column, error) {
	if c.Sort == "" {
		return "", nil
	}
	return sortstate.ParseColumn(c.Sort)
}

// LogPath is where log output goes while the dashboard owns the terminal.
func (c Config) LogPath() string { return filepath.Join(c.StateDir, "opsdash.log") }
