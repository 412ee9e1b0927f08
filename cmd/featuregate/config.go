package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/featuregate/internal/config"
	"github.com/ShayCichocki/featuregate/internal/ledger"
	"github.com/ShayCichocki/featuregate/pkg/models"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View or initialize featuregate configuration.

Settings are read from ~/.config/featuregate/config.yaml, then from
.featuregate.yaml in the project, then from FEATUREGATE_* environment
variables. Test tiers are configured in test_config.json.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write default settings, test configuration and empty ledgers",
	Long: `Write default settings, test configuration and empty feature and contract
ledgers. Existing files are left untouched.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	dir, err := projectDir()
	if err != nil {
		return err
	}
	cfg, err := loadSettings(dir)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if configFlag != "" {
		fmt.Printf("# settings: %s\n", configFlag)
	} else {
		fmt.Printf("# user settings: %s\n", config.GetUserConfigPath())
		fmt.Printf("# project settings: %s\n", filepath.Join(dir, config.ProjectConfigName))
	}
	displayAllConfig(cfg)
	return nil
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("ledger.features: %s\n", cfg.Ledger.Features)
	fmt.Printf("ledger.contracts: %s\n", cfg.Ledger.Contracts)
	fmt.Printf("ledger.integration_tests: %s\n", cfg.Ledger.IntegrationTests)
	fmt.Printf("test_config: %s\n", cfg.TestConfig)
	fmt.Printf("results_dir: %s\n", cfg.ResultsDir)
	fmt.Printf("state_db: %s\n", cfg.StateDB)
	fmt.Printf("log.level: %s\n", cfg.Log.Level)
	fmt.Printf("log.format: %s\n", cfg.Log.Format)
	fmt.Printf("log.file: %t\n", cfg.Log.File)
	fmt.Printf("log.dir: %s\n", cfg.Log.Dir)
	fmt.Printf("watch.debounce: %s\n", cfg.Watch.Debounce)
	fmt.Printf("tui.refresh_rate: %s\n", cfg.TUI.RefreshRate)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	dir, err := projectDir()
	if err != nil {
		return err
	}

	settingsPath := filepath.Join(dir, config.ProjectConfigName)
	if exists(settingsPath) {
		printStatus("-", config.ProjectConfigName+" exists", color.FgYellow)
	} else {
		if err := config.Save(dir, config.Default()); err != nil {
			return fmt.Errorf("write settings: %w", err)
		}
		printStatus("✓", "Created "+config.ProjectConfigName, color.FgGreen)
	}

	cfg, err := loadSettings(dir)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	testConfigPath := config.Resolve(dir, cfg.TestConfig)
	if exists(testConfigPath) {
		printStatus("-", cfg.TestConfig+" exists", color.FgYellow)
	} else {
		if _, err := config.LoadTestConfig(testConfigPath); err != nil {
			return fmt.Errorf("write test config: %w", err)
		}
		printStatus("✓", "Created "+cfg.TestConfig+" with default smoke checks", color.FgGreen)
	}

	store := ledger.NewFileStore(dir, ledger.Paths{
		Features:         cfg.Ledger.Features,
		Contracts:        cfg.Ledger.Contracts,
		IntegrationTests: cfg.Ledger.IntegrationTests,
	})
	if exists(store.FeaturesPath()) {
		printStatus("-", cfg.Ledger.Features+" exists", color.FgYellow)
	} else {
		if err := store.SaveFeatures([]models.Feature{}); err != nil {
			return fmt.Errorf("write feature ledger: %w", err)
		}
		printStatus("✓", "Created empty "+cfg.Ledger.Features, color.FgGreen)
	}
	if exists(store.ContractsPath()) {
		printStatus("-", cfg.Ledger.Contracts+" exists", color.FgYellow)
	} else {
		if err := store.SaveContracts(map[string]*models.InterfaceContract{}); err != nil {
			return fmt.Errorf("write contract ledger: %w", err)
		}
		printStatus("✓", "Created empty "+cfg.Ledger.Contracts, color.FgGreen)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
