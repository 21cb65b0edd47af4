package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/gcp-bootstrap/internal/pipeline"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Enable APIs and create cloud resources without starting the stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		color.Cyan("Provisioning project resources...")

		clients, closeClients := pipeline.GCPClients(cfg)
		defer closeClients()

		result, err := pipeline.Run(cmd.Context(), pipeline.Request{
			Config:     cfg,
			Clients:    clients,
			SkipLaunch: true,
		})
		printResult(result)
		return err
	},
}
