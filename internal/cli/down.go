package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	apperrors "github.com/blackwell-systems/gcp-bootstrap/internal/errors"
	"github.com/blackwell-systems/gcp-bootstrap/internal/stack"
)

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop the stack",
	Long: `Stop the docker-compose stack. Volumes, the bucket, the dataset and the
topic are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		color.Cyan("Stopping data-analysis stack...")

		if err := stack.Stop(cmd.Context(), stackOptions(cfg)); err != nil {
			color.Red("✗ Failed to stop stack: %v", err)
			return apperrors.Launch("failed to stop stack", err)
		}

		color.Green("✓ Stack stopped successfully")
		return nil
	},
}
