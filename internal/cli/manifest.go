package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	apperrors "github.com/blackwell-systems/gcp-bootstrap/internal/errors"
	"github.com/blackwell-systems/gcp-bootstrap/internal/manifest"
	"github.com/blackwell-systems/gcp-bootstrap/internal/pipeline"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Work with resource manifest files",
}

var manifestValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a manifest file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		m, err := manifest.Load(args[0])
		if err != nil {
			return apperrors.Config("failed to load manifest", err)
		}

		result := m.Validate(cfg.Bucket.Location)
		if !result.Valid {
			for _, msg := range result.Errors {
				color.Red("✗ %s", msg)
			}
			return apperrors.Config(fmt.Sprintf("manifest %s has %d error(s)", args[0], len(result.Errors)), nil)
		}

		color.Green("✓ %s is valid (%d buckets, %d datasets, %d topics)",
			args[0], len(m.Buckets), len(m.Datasets), len(m.Topics))
		return nil
	},
}

var manifestInitCmd = &cobra.Command{
	Use:   "init <file>",
	Short: "Write the configured resources to a manifest file",
	Long: `Write the configured bucket, dataset and topic to a manifest file.
The project id is taken from --project or the credential file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		projectID := localProjectID(cfg)
		if projectID == "" {
			projectID = "<project-id>"
		}

		m := manifest.FromDescriptors(pipeline.Descriptors(cfg, projectID, nil))
		if err := manifest.Save(m, args[0]); err != nil {
			return apperrors.Config("failed to write manifest", err)
		}

		color.Green("✓ Wrote %s", args[0])
		return nil
	},
}

func init() {
	manifestCmd.AddCommand(manifestValidateCmd, manifestInitCmd)
}
