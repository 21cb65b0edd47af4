package stack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/compose-spec/compose-go/loader"
	"github.com/compose-spec/compose-go/types"
)

var invalidProjectChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// Inspect parses the compose file with the injected environment and
// returns its service names.
func Inspect(ctx context.Context, opts Options) ([]string, error) {
	path, err := filepath.Abs(opts.ComposeFile)
	if err != nil {
		return nil, fmt.Errorf("resolve compose file: %w", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compose file: %w", err)
	}

	workingDir := filepath.Dir(path)
	project, err := loader.LoadWithContext(ctx, types.ConfigDetails{
		WorkingDir: workingDir,
		ConfigFiles: []types.ConfigFile{{
			Filename: path,
			Content:  content,
		}},
		Environment: opts.Env,
	}, func(options *loader.Options) {
		options.SetProjectName(projectName(opts.ProjectName, workingDir), true)
		options.SkipNormalization = true
		options.SkipConsistencyCheck = true
	})
	if err != nil {
		return nil, fmt.Errorf("parse compose file %s: %w", opts.ComposeFile, err)
	}

	names := project.ServiceNames()
	if len(names) == 0 {
		return nil, fmt.Errorf("compose file %s defines no services", opts.ComposeFile)
	}
	return names, nil
}

func projectName(explicit, workingDir string) string {
	name := explicit
	if name == "" {
		name = filepath.Base(workingDir)
	}
	name = invalidProjectChars.ReplaceAllString(strings.ToLower(name), "")
	if name == "" {
		return "gcp-bootstrap"
	}
	return name
}
