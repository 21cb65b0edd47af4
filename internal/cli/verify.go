package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/gcp-bootstrap/internal/credential"
	"github.com/blackwell-systems/gcp-bootstrap/internal/pipeline"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the service-account key file",
	Long: `Check that the service-account key file exists and names a project and a
client email. No remote call is made.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		cred, err := credential.Verify(cfg.CredentialsFile)
		if err != nil {
			return err
		}

		color.Green("✓ Credential %s is valid", cred.Path)
		color.Cyan("  Project:      %s", pipeline.ProjectID(cfg, cred))
		color.Cyan("  Client email: %s", cred.ClientEmail)
		if cred.Type != "" && cred.Type != credential.ServiceAccountType {
			color.Yellow("⚠ Key type is %q, expected %q", cred.Type, credential.ServiceAccountType)
		}
		return nil
	},
}
