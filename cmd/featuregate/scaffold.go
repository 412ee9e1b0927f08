package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/featuregate/internal/config"
	"github.com/ShayCichocki/featuregate/internal/scaffold"
)

var (
	scaffoldID          string
	scaffoldName        string
	scaffoldDescription string
	scaffoldFeatures    []string
	scaffoldDir         string
)

var scaffoldCmd = &cobra.Command{
	Use:   "scaffold-test",
	Short: "Generate an integration test skeleton for a set of features",
	Long: `Generate an integration test skeleton for a set of features.

The test function name carries one marker per feature, so the integration
tier selects it whenever one of those features is tested. The file is
written to the configured integration test directory and never overwrites
an existing file.`,
	Example: `  featuregate scaffold-test --id INT001 --name "Login and profile" --features F001,F002`,
	Args:    cobra.NoArgs,
	RunE:    runScaffold,
}

func init() {
	scaffoldCmd.Flags().StringVar(&scaffoldID, "id", "", "Test id, e.g. INT001")
	scaffoldCmd.Flags().StringVar(&scaffoldName, "name", "", "Human-readable test name")
	scaffoldCmd.Flags().StringVar(&scaffoldDescription, "description", "", "What the test verifies")
	scaffoldCmd.Flags().StringSliceVar(&scaffoldFeatures, "features", nil, "Feature ids covered by the test")
	scaffoldCmd.Flags().StringVar(&scaffoldDir, "dir", "", "Output directory (default: integration test directory)")
	scaffoldCmd.MarkFlagRequired("id")
	scaffoldCmd.MarkFlagRequired("features")
}

func runScaffold(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	tc := s.engine.Runner().Config()
	dir := scaffoldDir
	if dir == "" {
		dir = tc.Integration.TestDirectory
	}

	path, err := scaffold.Write(config.Resolve(s.dir, dir), scaffold.Spec{
		ID:          scaffoldID,
		Name:        scaffoldName,
		Description: scaffoldDescription,
		Features:    scaffoldFeatures,
		Marker:      tc.Integration.FeatureMarker,
	})
	if err != nil {
		return err
	}
	printStatus("✓", fmt.Sprintf("Created %s", path), color.FgGreen)
	return nil
}
