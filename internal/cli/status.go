package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/gcp-bootstrap/internal/stack"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the health of the app",
	Long:  `Probe the app's health endpoint once and list the services of the compose file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		status, err := stack.Status(cmd.Context(), stackOptions(cfg))
		if err != nil {
			color.Red("✗ Failed to get status: %v", err)
			return err
		}

		color.Cyan("Endpoint                               Status")
		color.Cyan("──────────────────────────────────────────────")
		printServiceStatus(status.URL, status.App)

		if len(status.Services) > 0 {
			color.Cyan("\nCompose services: %s", strings.Join(status.Services, ", "))
		}

		return nil
	},
}

func printServiceStatus(name string, status stack.ServiceStatus) {
	var statusText string
	switch status {
	case stack.ServiceUp:
		statusText = color.GreenString("✓ UP")
	case stack.ServiceDown:
		statusText = color.RedString("✗ DOWN")
	default:
		statusText = color.RedString("✗ UNKNOWN")
	}

	fmt.Printf("%-38s %s\n", name, statusText)
}
