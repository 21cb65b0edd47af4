// Package credential verifies the service-account key file before any remote
// call is attempted.
package credential

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	apperrors "github.com/blackwell-systems/gcp-bootstrap/internal/errors"
)

// ServiceAccountType is the "type" field of a service-account key.
const ServiceAccountType = "service_account"

// Artifact is the parsed identity document.
type Artifact struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
	PrivateKeyID string `json:"private_key_id"`

	// Path is where the artifact was read from.
	Path string `json:"-"`
}

// Verify reads and validates the credential file at path.
// The file is opened read-only and never modified.
func Verify(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.MissingCredential(path, err)
		}
		return nil, apperrors.MalformedCredential(path, "file is not readable", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, apperrors.MalformedCredential(path, "invalid JSON", err)
	}

	if strings.TrimSpace(artifact.ProjectID) == "" {
		return nil, apperrors.MalformedCredential(path, "project_id is missing", nil)
	}
	if strings.TrimSpace(artifact.ClientEmail) == "" {
		return nil, apperrors.MalformedCredential(path, "client_email is missing", nil)
	}

	if artifact.Type != "" && artifact.Type != ServiceAccountType {
		slog.Warn("credential is not a service-account key", "path", path, "type", artifact.Type)
	}

	artifact.Path = path
	return &artifact, nil
}
