package cli

import (
	"github.com/fatih/color"

	"github.com/blackwell-systems/gcp-bootstrap/internal/config"
	"github.com/blackwell-systems/gcp-bootstrap/internal/credential"
	apperrors "github.com/blackwell-systems/gcp-bootstrap/internal/errors"
	"github.com/blackwell-systems/gcp-bootstrap/internal/pipeline"
	"github.com/blackwell-systems/gcp-bootstrap/internal/provision"
	"github.com/blackwell-systems/gcp-bootstrap/internal/stack"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, apperrors.Config("invalid configuration", err)
	}
	return cfg, nil
}

// localProjectID resolves the project id without any remote call. Empty
// when neither the config nor a readable credential names one.
func localProjectID(cfg *config.Config) string {
	if cfg.ProjectID != "" {
		return cfg.ProjectID
	}
	if cred, err := credential.Verify(cfg.CredentialsFile); err == nil {
		return cred.ProjectID
	}
	return ""
}

// stackOptions describes the stack for commands that do not run the
// pipeline. The secret key is not resolved.
func stackOptions(cfg *config.Config) stack.Options {
	opts := pipeline.StackOptions(cfg)
	opts.Env = pipeline.StackEnv(cfg, localProjectID(cfg), "")
	return opts
}

// printResult reports every stage that completed.
func printResult(result *pipeline.Result) {
	if result == nil || result.Credential == nil {
		return
	}

	color.Green("✓ Credential %s (%s)", result.Credential.Path, result.Credential.ClientEmail)
	color.Cyan("  Project: %s", result.ProjectID)

	if result.Services != nil && len(result.Services.Missing()) == 0 {
		color.Green("✓ Services enabled (%d)", len(result.Services))
	}

	for _, h := range result.Resources {
		switch h.Outcome {
		case provision.Created:
			color.Green("✓ Created %s", h)
		default:
			color.Green("✓ Exists  %s", h)
		}
	}

	if result.Stack != nil {
		color.Green("✓ Stack healthy")
		color.Cyan("  App:      %s", result.Stack.URL)
		color.Cyan("  Services: %v", result.Stack.Services)
	}
}
