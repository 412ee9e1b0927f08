package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// TestConfig controls the three test tiers. It is stored as JSON in the
// project (test_config.json by default).
type TestConfig struct {
	TestFramework string            `mapstructure:"test_framework" json:"test_framework"`
	Smoke         SmokeConfig       `mapstructure:"smoke_tests" json:"smoke_tests"`
	Integration   IntegrationConfig `mapstructure:"integration_tests" json:"integration_tests"`
	Regression    RegressionConfig  `mapstructure:"regression_tests" json:"regression_tests"`
}

// SmokeConfig is the smoke tier.
type SmokeConfig struct {
	Enabled        bool `mapstructure:"enabled" json:"enabled"`
	TimeoutSeconds int  `mapstructure:"timeout_seconds" json:"timeout_seconds"`
	// MaxParallel bounds concurrently running checks; values below 2 run sequentially.
	MaxParallel int          `mapstructure:"max_parallel" json:"max_parallel"`
	Tests       []SmokeCheck `mapstructure:"tests" json:"tests"`
}

// SmokeCheck is one configured smoke command.
type SmokeCheck struct {
	ID               string `mapstructure:"id" json:"id"`
	Name             string `mapstructure:"name" json:"name"`
	Command          string `mapstructure:"command" json:"command"`
	ExpectedExitCode int    `mapstructure:"expected_exit_code" json:"expected_exit_code"`
}

// IntegrationConfig is the integration tier.
type IntegrationConfig struct {
	Enabled        bool   `mapstructure:"enabled" json:"enabled"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" json:"timeout_seconds"`
	TestDirectory  string `mapstructure:"test_directory" json:"test_directory"`
	// Command runs the suite; {test_dir} is replaced by TestDirectory.
	Command string `mapstructure:"command" json:"command"`
	// Filter is appended when the run is scoped to features; {pattern} is
	// replaced by the feature markers joined with "|".
	Filter string `mapstructure:"filter" json:"filter"`
	// FeatureMarker names the tests of one feature; {id} is the feature id.
	FeatureMarker string `mapstructure:"feature_marker" json:"feature_marker"`
}

// RegressionConfig is the regression tier.
type RegressionConfig struct {
	Enabled        bool `mapstructure:"enabled" json:"enabled"`
	TimeoutSeconds int  `mapstructure:"timeout_seconds" json:"timeout_seconds"`
	// RunAllOnChange runs the whole integration suite instead of the
	// changed feature and its direct dependents.
	RunAllOnChange bool `mapstructure:"run_all_on_change" json:"run_all_on_change"`
}

// DefaultTestConfig returns the configuration written for new projects.
func DefaultTestConfig() *TestConfig {
	return &TestConfig{
		TestFramework: "go",
		Smoke: SmokeConfig{
			Enabled:        true,
			TimeoutSeconds: 30,
			MaxParallel:    1,
			Tests: []SmokeCheck{
				{
					ID:               "SMOKE001",
					Name:             "Project builds successfully",
					Command:          "echo 'Build check placeholder'",
					ExpectedExitCode: 0,
				},
				{
					ID:               "SMOKE002",
					Name:             "Core dependencies available",
					Command:          "echo 'Dependency check placeholder'",
					ExpectedExitCode: 0,
				},
			},
		},
		Integration: IntegrationConfig{
			Enabled:        true,
			TimeoutSeconds: 120,
			TestDirectory:  "tests/integration",
			Command:        "go test -v ./{test_dir}/...",
			Filter:         "-run '{pattern}'",
			FeatureMarker:  "Feature_{id}",
		},
		Regression: RegressionConfig{
			Enabled:        true,
			TimeoutSeconds: 300,
			RunAllOnChange: false,
		},
	}
}

// setTestDefaults configures scalar defaults. The smoke check list is
// deliberately absent: an existing file without checks runs none.
func setTestDefaults(v *viper.Viper) {
	d := DefaultTestConfig()

	v.SetDefault("test_framework", d.TestFramework)

	v.SetDefault("smoke_tests.enabled", d.Smoke.Enabled)
	v.SetDefault("smoke_tests.timeout_seconds", d.Smoke.TimeoutSeconds)
	v.SetDefault("smoke_tests.max_parallel", d.Smoke.MaxParallel)

	v.SetDefault("integration_tests.enabled", d.Integration.Enabled)
	v.SetDefault("integration_tests.timeout_seconds", d.Integration.TimeoutSeconds)
	v.SetDefault("integration_tests.test_directory", d.Integration.TestDirectory)
	v.SetDefault("integration_tests.command", d.Integration.Command)
	v.SetDefault("integration_tests.filter", d.Integration.Filter)
	v.SetDefault("integration_tests.feature_marker", d.Integration.FeatureMarker)

	v.SetDefault("regression_tests.enabled", d.Regression.Enabled)
	v.SetDefault("regression_tests.timeout_seconds", d.Regression.TimeoutSeconds)
	v.SetDefault("regression_tests.run_all_on_change", d.Regression.RunAllOnChange)
}

// LoadTestConfig reads the test configuration at path. A missing file is
// replaced by DefaultTestConfig, which is written back to path.
func LoadTestConfig(path string) (*TestConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := DefaultTestConfig()
		if err := SaveTestConfig(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	v := viper.New()
	setTestDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading test config from %s: %w", path, err)
	}

	cfg := &TestConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling test config: %w", err)
	}
	return cfg, nil
}

// SaveTestConfig writes cfg to path as JSON.
func SaveTestConfig(path string, cfg *TestConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating test config directory: %w", err)
	}

	tests := make([]map[string]any, 0, len(cfg.Smoke.Tests))
	for _, t := range cfg.Smoke.Tests {
		tests = append(tests, map[string]any{
			"id":                 t.ID,
			"name":               t.Name,
			"command":            t.Command,
			"expected_exit_code": t.ExpectedExitCode,
		})
	}

	v := viper.New()
	v.SetConfigType("json")
	v.Set("test_framework", cfg.TestFramework)
	v.Set("smoke_tests.enabled", cfg.Smoke.Enabled)
	v.Set("smoke_tests.timeout_seconds", cfg.Smoke.TimeoutSeconds)
	v.Set("smoke_tests.max_parallel", cfg.Smoke.MaxParallel)
	v.Set("smoke_tests.tests", tests)
	v.Set("integration_tests.enabled", cfg.Integration.Enabled)
	v.Set("integration_tests.timeout_seconds", cfg.Integration.TimeoutSeconds)
	v.Set("integration_tests.test_directory", cfg.Integration.TestDirectory)
	v.Set("integration_tests.command", cfg.Integration.Command)
	v.Set("integration_tests.filter", cfg.Integration.Filter)
	v.Set("integration_tests.feature_marker", cfg.Integration.FeatureMarker)
	v.Set("regression_tests.enabled", cfg.Regression.Enabled)
	v.Set("regression_tests.timeout_seconds", cfg.Regression.TimeoutSeconds)
	v.Set("regression_tests.run_all_on_change", cfg.Regression.RunAllOnChange)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing test config to %s: %w", path, err)
	}
	return nil
}
