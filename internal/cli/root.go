// Package cli implements the gcp-bootstrap commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apperrors "github.com/blackwell-systems/gcp-bootstrap/internal/errors"
	"github.com/blackwell-systems/gcp-bootstrap/internal/logger"
)

var (
	timeout       string
	timeoutCancel context.CancelFunc

	// interrupted is done on SIGINT/SIGTERM only, never on the run timeout.
	interrupted context.Context
	stopSignals context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "gcp-bootstrap",
	Short: "Provision Google Cloud prerequisites and launch the app stack",
	Long: `gcp-bootstrap verifies the service-account key, enables the required
Google Cloud APIs, creates the bucket, BigQuery dataset and Pub/Sub topic the
application needs, and then starts its docker-compose stack.

Every step is idempotent: re-running against a prepared project only checks
what already exists.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, err := logger.ParseLevel(viper.GetString("log-level"))
		if err != nil {
			return apperrors.Config("invalid --log-level", err)
		}
		logger.Initialize(viper.GetString("log-format"), level)

		interrupted, stopSignals = signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		ctx := interrupted

		if timeout != "0" {
			d, err := parseTimeout(timeout)
			if err != nil {
				return apperrors.Config("invalid --timeout", err)
			}
			ctx, timeoutCancel = context.WithTimeout(ctx, d)
		}

		cmd.SetContext(ctx)
		return nil
	},
}

// Execute runs the root command and prints failures with their hint.
func Execute(version string) error {
	rootCmd.Version = version

	err := rootCmd.ExecuteContext(context.Background())
	if timeoutCancel != nil {
		timeoutCancel()
	}
	if stopSignals != nil {
		stopSignals()
	}

	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&timeout, "timeout", "30m", "Deadline for the whole run (e.g. 10m, 600; 0 disables)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text|json)")
	rootCmd.PersistentFlags().String("credentials", "", "Path to the service-account key file")
	rootCmd.PersistentFlags().String("project", "", "Project id (defaults to the credential's project_id)")
	rootCmd.PersistentFlags().StringP("file", "f", "", "docker-compose file")
	rootCmd.PersistentFlags().String("manifest", "", "Manifest file with extra buckets, datasets and topics")

	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("credentials-file", rootCmd.PersistentFlags().Lookup("credentials"))
	viper.BindPFlag("project-id", rootCmd.PersistentFlags().Lookup("project"))
	viper.BindPFlag("compose-file", rootCmd.PersistentFlags().Lookup("file"))
	viper.BindPFlag("manifest-file", rootCmd.PersistentFlags().Lookup("manifest"))

	rootCmd.AddCommand(upCmd, provisionCmd, downCmd, statusCmd, verifyCmd, configCmd, manifestCmd, versionCmd)
}

// parseTimeout accepts a duration ("10m") or a number of seconds ("600").
func parseTimeout(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	seconds, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout format: %s (use duration like '10m' or seconds like '600')", s)
	}
	return time.Duration(seconds) * time.Second, nil
}

func printError(err error) {
	fmt.Fprintln(os.Stderr, color.RedString("✗ %v", err))
	if hint := apperrors.GetHint(err); hint != "" {
		fmt.Fprintln(os.Stderr, color.YellowString("→ %s", hint))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintln(os.Stderr, color.YellowString("→ raise --timeout for slow projects"))
	}
}
