// Package config handles configuration loading and management for featuregate.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ProjectConfigName is the project-level settings file.
const ProjectConfigName = ".featuregate.yaml"

// EnvPrefix is the prefix for environment overrides, e.g. FEATUREGATE_LOG_LEVEL.
const EnvPrefix = "FEATUREGATE"

// Config holds all engine settings for one project.
type Config struct {
	Ledger     LedgerConfig `mapstructure:"ledger"`
	TestConfig string       `mapstructure:"test_config"`
	ResultsDir string       `mapstructure:"results_dir"`
	StateDB    string       `mapstructure:"state_db"`
	Log        LogConfig    `mapstructure:"log"`
	Watch      WatchConfig  `mapstructure:"watch"`
	TUI        TUIConfig    `mapstructure:"tui"`
}

// LedgerConfig names the ledger files, relative to the project directory.
type LedgerConfig struct {
	Features         string `mapstructure:"features"`
	Contracts        string `mapstructure:"contracts"`
	IntegrationTests string `mapstructure:"integration_tests"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `mapstructure:"level"`
	// Format is console or json.
	Format string `mapstructure:"format"`
	// File enables the per-project log file.
	File bool `mapstructure:"file"`
	// Dir is where log files are written, relative to the project directory.
	Dir string `mapstructure:"dir"`
}

// WatchConfig holds ledger watcher settings.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// TUIConfig holds board display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration for the project in projectDir.
// Precedence (highest to lowest):
// 1. Environment variables (FEATUREGATE_*)
// 2. Project config (.featuregate.yaml in projectDir)
// 3. User config (~/.config/featuregate/config.yaml)
// 4. Built-in defaults
func Load(projectDir string) (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := filepath.Join(projectDir, ProjectConfigName)
	if _, err := os.Stat(projectConfig); err == nil {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config: %w", err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

// Save writes cfg as the project config of projectDir.
func Save(projectDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(filepath.Join(projectDir, ProjectConfigName))

	v.Set("ledger.features", cfg.Ledger.Features)
	v.Set("ledger.contracts", cfg.Ledger.Contracts)
	v.Set("ledger.integration_tests", cfg.Ledger.IntegrationTests)
	v.Set("test_config", cfg.TestConfig)
	v.Set("results_dir", cfg.ResultsDir)
	v.Set("state_db", cfg.StateDB)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)
	v.Set("log.file", cfg.Log.File)
	v.Set("log.dir", cfg.Log.Dir)
	v.Set("watch.debounce", cfg.Watch.Debounce.String())
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ledger.features", "features.json")
	v.SetDefault("ledger.contracts", "interface_contracts.json")
	v.SetDefault("ledger.integration_tests", "integration_tests.json")

	v.SetDefault("test_config", "test_config.json")
	v.SetDefault("results_dir", "test_results")
	v.SetDefault("state_db", filepath.Join(".featuregate", "state.db"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", false)
	v.SetDefault("log.dir", filepath.Join(".featuregate", "logs"))

	v.SetDefault("watch.debounce", "200ms")
	v.SetDefault("tui.refresh_rate", "2s")
}

// getUserConfigDir returns the XDG config directory for featuregate.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "featuregate")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "featuregate")
	}
	return filepath.Join(home, ".config", "featuregate")
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Ledger: LedgerConfig{
			Features:         "features.json",
			Contracts:        "interface_contracts.json",
			IntegrationTests: "integration_tests.json",
		},
		TestConfig: "test_config.json",
		ResultsDir: "test_results",
		StateDB:    filepath.Join(".featuregate", "state.db"),
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Dir:    filepath.Join(".featuregate", "logs"),
		},
		Watch: WatchConfig{Debounce: 200 * time.Millisecond},
		TUI:   TUIConfig{RefreshRate: 2 * time.Second},
	}
}

// Resolve returns path joined to projectDir unless it is already absolute.
func Resolve(projectDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectDir, path)
}
