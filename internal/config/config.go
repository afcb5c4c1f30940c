// Package config handles configuration loading and defaults.
package config

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// AppName is the application directory name.
const AppName = "tdc"

// Default values.
const (
	DefaultAPIURL               = "http://localhost:5000"
	DefaultErrorBannerTimeout   = 5 * time.Second
	DefaultSuccessBannerTimeout = 3 * time.Second
	DefaultHistorySize          = 50
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

// Config holds the full configuration for tdc.
type Config struct {
	// Task API
	APIURL         string        `toml:"api_url" yaml:"api_url" env:"API_URL"`
	APIToken       string        `toml:"api_token" yaml:"api_token" env:"API_TOKEN"`
	RequestTimeout time.Duration `toml:"request_timeout" yaml:"request_timeout" env:"REQUEST_TIMEOUT"` // 0 = transport default

	// Banners
	ErrorBannerTimeout   time.Duration `toml:"error_banner_timeout" yaml:"error_banner_timeout" env:"ERROR_BANNER_TIMEOUT"`
	SuccessBannerTimeout time.Duration `toml:"success_banner_timeout" yaml:"success_banner_timeout" env:"SUCCESS_BANNER_TIMEOUT"`

	// Cron expression for background reloads, empty disables them
	RefreshSchedule string `toml:"refresh_schedule" yaml:"refresh_schedule" env:"REFRESH_SCHEDULE"`

	// Local store
	DataDir     string `toml:"data_dir" yaml:"data_dir" env:"DATA_DIR"`
	HistorySize int    `toml:"history_size" yaml:"history_size" env:"HISTORY_SIZE"`

	// Logging
	LogFile   string `toml:"log_file" yaml:"log_file" env:"LOG_FILE"`
	LogLevel  string `toml:"log_level" yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `toml:"log_format" yaml:"log_format" env:"LOG_FORMAT"`

	// Path of the last config file applied (computed)
	File string `toml:"-" yaml:"-"`
}

// flagValues holds CLI flags until every other layer has been applied
type flagValues struct {
	configFile string
	apiURL     string
	apiToken   string
	timeout    time.Duration
	refresh    string
	dataDir    string
	logFile    string
	logLevel   string
}

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. User config file ($XDG_CONFIG_HOME/tdc/config.toml or config.yaml)
// 3. Project config file (tdc.toml, .tdc.toml or tdc.yaml in the current
//    directory), or the file named by -config
// 4. Environment variables (TDC_*)
// 5. CLI flags
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	fv := &flagValues{}
	registerFlags(fs, fv)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	cfg := &Config{}
	setDefaults(cfg)

	if userFile := findUserConfigFile(); userFile != "" {
		if err := loadConfigFile(cfg, userFile); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", userFile, err)
		}
	}

	projectFile := fv.configFile
	if projectFile == "" {
		projectFile = findProjectConfigFile()
	}
	if projectFile != "" {
		if err := loadConfigFile(cfg, projectFile); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", projectFile, err)
		}
	}

	if err := loadFromEnv(cfg, EnvPrefix); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	applyFlags(cfg, fs, fv)
	finalizeConfig(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func registerFlags(fs *flag.FlagSet, fv *flagValues) {
	fs.StringVar(&fv.configFile, "config", "", "path to a config file (toml or yaml)")
	fs.StringVar(&fv.apiURL, "api-url", "", "Task API base URL")
	fs.StringVar(&fv.apiToken, "token", "", "bearer token for the Task API")
	fs.DurationVar(&fv.timeout, "timeout", 0, "per-request timeout (0 = none)")
	fs.StringVar(&fv.refresh, "refresh", "", "cron schedule for background reloads, e.g. \"@every 1m\"")
	fs.StringVar(&fv.dataDir, "data-dir", "", "directory for the local database and log")
	fs.StringVar(&fv.logFile, "log-file", "", "log file path")
	fs.StringVar(&fv.logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// applyFlags copies only the flags that were set on the command line
func applyFlags(cfg *Config, fs *flag.FlagSet, fv *flagValues) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "api-url":
			cfg.APIURL = fv.apiURL
		case "token":
			cfg.APIToken = fv.apiToken
		case "timeout":
			cfg.RequestTimeout = fv.timeout
		case "refresh":
			cfg.RefreshSchedule = fv.refresh
		case "data-dir":
			cfg.DataDir = fv.dataDir
		case "log-file":
			cfg.LogFile = fv.logFile
		case "log-level":
			cfg.LogLevel = fv.logLevel
		}
	})
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	cfg.APIURL = DefaultAPIURL
	cfg.ErrorBannerTimeout = DefaultErrorBannerTimeout
	cfg.SuccessBannerTimeout = DefaultSuccessBannerTimeout
	cfg.HistorySize = DefaultHistorySize
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
}

// finalizeConfig fills in values derived from other fields
func finalizeConfig(cfg *Config) {
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	cfg.DataDir = expandHome(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	cfg.LogFile = expandHome(cfg.LogFile)
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.DataDir, AppName+".log")
	}
}

// Validate checks the values that would otherwise fail at first use
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: api_url %q must be an http(s) URL", ErrInvalidConfig, c.APIURL)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("%w: request_timeout must not be negative", ErrInvalidConfig)
	}
	if c.ErrorBannerTimeout <= 0 || c.SuccessBannerTimeout <= 0 {
		return fmt.Errorf("%w: banner timeouts must be positive", ErrInvalidConfig)
	}
	if c.HistorySize < 0 {
		return fmt.Errorf("%w: history_size must not be negative", ErrInvalidConfig)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Schedule(); err != nil {
		return err
	}
	return nil
}

// Schedule parses RefreshSchedule. It returns nil when refreshing is disabled.
func (c *Config) Schedule() (cron.Schedule, error) {
	spec := strings.TrimSpace(c.RefreshSchedule)
	if spec == "" {
		return nil, nil
	}
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: refresh_schedule %q: %v", ErrInvalidConfig, spec, err)
	}
	return s, nil
}

// DBPath returns the path of the local SQLite database
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, AppName+".db")
}

// DefaultDataDir returns the data directory, using XDG_DATA_HOME when set
func DefaultDataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return AppName
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, AppName)
}

// findProjectConfigFile looks for a config file in the current directory.
func findProjectConfigFile() string {
	for _, name := range []string{"tdc.toml", ".tdc.toml", "tdc.yaml", ".tdc.yaml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// findUserConfigFile looks for a user-level config file.
func findUserConfigFile() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	for _, name := range []string{"config.toml", "config.yaml", "config.yml"} {
		path := filepath.Join(dir, AppName, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadConfigFile decodes a TOML or YAML file over cfg, picked by extension.
func loadConfigFile(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return err
		}
	default:
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return err
		}
	}
	cfg.File = path
	return nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
