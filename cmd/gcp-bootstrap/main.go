package main

import (
	"fmt"
	"os"

	"github.com/blackwell-systems/gcp-bootstrap/internal/cli"
	"github.com/blackwell-systems/gcp-bootstrap/internal/config"
	apperrors "github.com/blackwell-systems/gcp-bootstrap/internal/errors"
)

var version = "dev"

func main() {
	// Initialize configuration
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(apperrors.ExitCode(apperrors.Config("config file", err)))
	}

	// Execute root command
	if err := cli.Execute(version); err != nil {
		os.Exit(apperrors.ExitCode(err))
	}
}
