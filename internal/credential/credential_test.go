package credential

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/blackwell-systems/gcp-bootstrap/internal/errors"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "service-account.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantCode string
	}{
		{
			name:    "valid service account",
			content: `{"type":"service_account","project_id":"demo","client_email":"x@demo.iam.gserviceaccount.com"}`,
		},
		{
			name:    "minimal document",
			content: `{"project_id":"demo","client_email":"x@demo.iam.gserviceaccount.com"}`,
		},
		{
			name:     "missing project id",
			content:  `{"client_email":"x@demo.iam.gserviceaccount.com"}`,
			wantCode: apperrors.CodeMalformedCredential,
		},
		{
			name:     "blank project id",
			content:  `{"project_id":"  ","client_email":"x@demo.iam.gserviceaccount.com"}`,
			wantCode: apperrors.CodeMalformedCredential,
		},
		{
			name:     "missing client email",
			content:  `{"project_id":"demo"}`,
			wantCode: apperrors.CodeMalformedCredential,
		},
		{
			name:     "not json",
			content:  `project_id: demo`,
			wantCode: apperrors.CodeMalformedCredential,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.content)

			artifact, err := Verify(path)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, apperrors.GetErrorCode(err))
				assert.Nil(t, artifact)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "demo", artifact.ProjectID)
			assert.Equal(t, "x@demo.iam.gserviceaccount.com", artifact.ClientEmail)
			assert.Equal(t, path, artifact.Path)
		})
	}
}

func TestVerify_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")

	_, err := Verify(path)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMissingCredential))
	assert.Contains(t, apperrors.GetHint(err), path)
}

func TestVerify_DoesNotModifyFile(t *testing.T) {
	content := `{"project_id":"demo","client_email":"x@demo.iam.gserviceaccount.com"}`
	path := writeFile(t, content)
	before, err := os.Stat(path)
	require.NoError(t, err)

	_, err = Verify(path)
	require.NoError(t, err)

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}
