package cli

import (
	"context"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blackwell-systems/gcp-bootstrap/internal/pipeline"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Provision cloud resources and start the stack",
	Long: `Run the full bootstrap: verify the credential, enable the required APIs,
create the bucket, dataset and topic, then start the docker-compose stack
and wait for its health endpoint.

With --attach the command stays in the foreground and stops the stack on
Ctrl+C. Cloud resources are never deleted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		noBuild, _ := cmd.Flags().GetBool("no-build")
		if noBuild {
			cfg.Stack.Build = false
		}
		pull, _ := cmd.Flags().GetBool("pull")
		attach, _ := cmd.Flags().GetBool("attach")

		color.Cyan("Bootstrapping data-analysis stack...")

		clients, closeClients := pipeline.GCPClients(cfg)
		defer closeClients()

		result, err := pipeline.Run(cmd.Context(), pipeline.Request{
			Config:  cfg,
			Clients: clients,
			Pull:    pull,
		})
		printResult(result)
		if err != nil {
			return err
		}

		if !attach {
			color.Cyan("\nRun 'gcp-bootstrap down' to stop the stack")
			return nil
		}

		color.Cyan("\n→ Attached, press Ctrl+C to stop the stack")
		<-interrupted.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := result.Stack.Shutdown(ctx); err != nil {
			color.Red("✗ Failed to stop stack: %v", err)
			return err
		}

		color.Green("✓ Stack stopped (cloud resources kept)")
		return nil
	},
}

func init() {
	upCmd.Flags().Bool("no-build", false, "Do not rebuild images before starting")
	upCmd.Flags().Bool("pull", false, "Pull latest images before starting")
	upCmd.Flags().Bool("attach", false, "Stay in the foreground and stop the stack on interrupt")
	upCmd.Flags().Duration("health-timeout", 0, "How long to wait for the app health endpoint")
	upCmd.Flags().Int("port", 0, "Host port of the app")

	viper.BindPFlag("health-timeout", upCmd.Flags().Lookup("health-timeout"))
	viper.BindPFlag("port", upCmd.Flags().Lookup("port"))
}
