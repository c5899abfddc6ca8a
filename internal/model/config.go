package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ServerConfig describes how to reach the download server.
type ServerConfig struct {
	// BaseURL is the root URL of the server (e.g., http://localhost:8000).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds every request except the progress stream.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// TokenEnv names the environment variable that may hold the API
	// token. It takes precedence over the keyring.
	TokenEnv string `mapstructure:"token_env" yaml:"token_env"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	// ConvergeDelayMs is how long after a completed job the progress bar
	// is forced to 100%.
	ConvergeDelayMs int `mapstructure:"converge_delay_ms" yaml:"converge_delay_ms"`
}

// LogConfig controls where log output goes while the TUI is running.
type LogConfig struct {
	// File is the log destination. Empty discards log output.
	File string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// Timeout returns the request timeout as a duration.
func (c ServerConfig) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// ConvergeDelay returns the progress bar convergence delay.
func (c DisplayConfig) ConvergeDelay() time.Duration {
	if c.ConvergeDelayMs < 0 {
		return 0
	}
	return time.Duration(c.ConvergeDelayMs) * time.Millisecond
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/attachdl/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "attachdl", "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			BaseURL:    "http://localhost:8000",
			TimeoutSec: 30,
			TokenEnv:   "ATTACHDL_TOKEN",
		},
		Display: DisplayConfig{
			ConvergeDelayMs: 500,
		},
	}
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"server":   "server.base_url",
	"log-file": "log.file",
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file is not an error. Values from ATTACHDL_* environment
// variables and from flags that were set on the command line override
// the file. flags may be nil.
func LoadConfig(path string, flags *pflag.FlagSet) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ATTACHDL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values and so
	// AutomaticEnv knows every key.
	def := DefaultAppConfig()
	v.SetDefault("server.base_url", def.Server.BaseURL)
	v.SetDefault("server.timeout_sec", def.Server.TimeoutSec)
	v.SetDefault("server.token_env", def.Server.TokenEnv)
	v.SetDefault("display.converge_delay_ms", def.Display.ConvergeDelayMs)
	v.SetDefault("log.file", def.Log.File)

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag --%s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")
	if cfg.Server.BaseURL == "" {
		return nil, fmt.Errorf("parsing config %s: server.base_url is empty", path)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server.base_url", cfg.Server.BaseURL)
	v.Set("server.timeout_sec", cfg.Server.TimeoutSec)
	v.Set("server.token_env", cfg.Server.TokenEnv)
	v.Set("display.converge_delay_ms", cfg.Display.ConvergeDelayMs)
	v.Set("log.file", cfg.Log.File)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
