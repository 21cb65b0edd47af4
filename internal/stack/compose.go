// Package stack starts, checks and stops the application's docker-compose
// stack. Stopping a stack never touches the cloud resources it uses.
package stack

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, env []string, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(cmd.Environ(), env...)
	return cmd.CombinedOutput()
}

// Options describes the stack and how to reach it.
type Options struct {
	ComposeFile string
	ProjectName string
	// Command is the compose binary, e.g. "docker-compose" or "docker compose".
	Command string
	Build   bool
	Pull    bool

	Port           int
	HealthPath     string
	HealthTimeout  time.Duration
	HealthInterval time.Duration
	// HealthURL overrides the URL derived from Port and HealthPath.
	HealthURL string

	// Env is injected into the compose process.
	Env map[string]string

	Runner     Runner
	HTTPClient *http.Client
}

func (o Options) runner() Runner {
	if o.Runner != nil {
		return o.Runner
	}
	return ExecRunner{}
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: 2 * time.Second}
}

func (o Options) healthURL() string {
	if o.HealthURL != "" {
		return o.HealthURL
	}
	return fmt.Sprintf("http://localhost:%d%s", o.Port, o.HealthPath)
}

// environ renders Env as sorted KEY=VALUE pairs.
func (o Options) environ() []string {
	keys := make([]string, 0, len(o.Env))
	for k := range o.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, o.Env[k]))
	}
	return env
}

// compose runs the compose command with the file/project selectors and args.
func (o Options) compose(ctx context.Context, args ...string) error {
	command := o.Command
	if command == "" {
		command = "docker-compose"
	}
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return fmt.Errorf("compose command is empty")
	}

	full := append([]string{}, parts[1:]...)
	full = append(full, "-f", o.ComposeFile)
	if o.ProjectName != "" {
		full = append(full, "-p", o.ProjectName)
	}
	full = append(full, args...)

	output, err := o.runner().Run(ctx, o.environ(), parts[0], full...)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w\n%s", command, args[0], err, output)
	}
	return nil
}

// Up starts the stack in the background
func Up(ctx context.Context, opts Options) error {
	args := []string{"up", "-d"}
	if opts.Build {
		args = append(args, "--build")
	}
	return opts.compose(ctx, args...)
}

// Stop stops the stack. Volumes are kept.
func Stop(ctx context.Context, opts Options) error {
	return opts.compose(ctx, "down")
}

// Pull pulls the latest images
func Pull(ctx context.Context, opts Options) error {
	return opts.compose(ctx, "pull")
}
