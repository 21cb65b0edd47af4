package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/gcp-bootstrap/internal/config"
	apperrors "github.com/blackwell-systems/gcp-bootstrap/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long: `Show the configuration after merging flags, GCP_BOOTSTRAP_* environment
variables, the config file and defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := config.Display()
		if err != nil {
			return apperrors.Config("invalid configuration", err)
		}
		fmt.Print(out)
		return nil
	},
}
