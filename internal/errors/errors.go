// Package errors provides the failure taxonomy for gcp-bootstrap.
//
// Every failure surfaced by a bootstrap stage is an *AppError carrying a
// stable code, the stage it originated from, an actionable hint for the
// operator and the underlying remote error.
package errors

import (
	"errors"
	"fmt"
)

// Stage names a step of the bootstrap pipeline.
type Stage string

const (
	StageConfig     Stage = "config"
	StageCredential Stage = "credential"
	StageServices   Stage = "services"
	StageResources  Stage = "resources"
	StageStack      Stage = "stack"
)

// Error codes.
const (
	CodeMissingCredential   = "MISSING_CREDENTIAL"
	CodeMalformedCredential = "MALFORMED_CREDENTIAL"
	CodeAuthFailure         = "AUTH_FAILURE"
	CodeServiceEnable       = "SERVICE_ENABLE_ERROR"
	// CodeResourceConflict is absorbed by the provisioner and never aborts a run.
	CodeResourceConflict = "RESOURCE_CONFLICT"
	CodeProvision        = "PROVISION_ERROR"
	CodeLaunch           = "LAUNCH_ERROR"
	CodeConfig           = "CONFIG_ERROR"
)

// AppError is a classified bootstrap failure.
type AppError struct {
	// Code is the stable failure kind
	Code string
	// Stage is where the failure originated
	Stage Stage
	// Message is a short description of what failed
	Message string
	// Hint tells the operator what to do about it
	Hint string
	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is to match on the error code.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Code != "" && e.Code == t.Code
	}
	return false
}

// Sentinels usable with errors.Is.
var (
	ErrMissingCredential   = &AppError{Code: CodeMissingCredential}
	ErrMalformedCredential = &AppError{Code: CodeMalformedCredential}
	ErrAuthFailure         = &AppError{Code: CodeAuthFailure}
	ErrServiceEnable       = &AppError{Code: CodeServiceEnable}
	ErrResourceConflict    = &AppError{Code: CodeResourceConflict}
	ErrProvision           = &AppError{Code: CodeProvision}
	ErrLaunch              = &AppError{Code: CodeLaunch}
	ErrConfig              = &AppError{Code: CodeConfig}
)

// MissingCredential reports that no credential file exists at path.
func MissingCredential(path string, cause error) *AppError {
	return &AppError{
		Code:    CodeMissingCredential,
		Stage:   StageCredential,
		Message: fmt.Sprintf("credential file not found at %s", path),
		Hint: fmt.Sprintf(`Create a service-account key and save it at %s:
  1. Open https://console.cloud.google.com/iam-admin/serviceaccounts
  2. Select (or create) the service account for this project
  3. Keys > Add key > Create new key > JSON
  4. Move the downloaded file to %s`, path, path),
		Cause: cause,
	}
}

// MalformedCredential reports a credential file that cannot be used.
func MalformedCredential(path, reason string, cause error) *AppError {
	return &AppError{
		Code:    CodeMalformedCredential,
		Stage:   StageCredential,
		Message: fmt.Sprintf("credential file %s is malformed: %s", path, reason),
		Hint:    "Download a fresh JSON key for the service account; the file must contain project_id and client_email.",
		Cause:   cause,
	}
}

// AuthFailure reports that the project's service listing could not be read.
func AuthFailure(projectID string, cause error) *AppError {
	return &AppError{
		Code:    CodeAuthFailure,
		Stage:   StageServices,
		Message: fmt.Sprintf("cannot list enabled services for project %s", projectID),
		Hint:    "Re-authenticate (gcloud auth login / gcloud auth application-default login) and check that the credential belongs to this project.",
		Cause:   cause,
	}
}

// ServiceEnable reports one or more services that failed to enable.
func ServiceEnable(projectID string, failed []string, cause error) *AppError {
	return &AppError{
		Code:    CodeServiceEnable,
		Stage:   StageServices,
		Message: fmt.Sprintf("failed to enable %d service(s) in project %s: %v", len(failed), projectID, failed),
		Hint:    "Check that billing is enabled and the account has roles/serviceusage.serviceUsageAdmin.",
		Cause:   cause,
	}
}

// ResourceConflict reports that a resource already exists.
func ResourceConflict(kind, name string, cause error) *AppError {
	return &AppError{
		Code:    CodeResourceConflict,
		Stage:   StageResources,
		Message: fmt.Sprintf("%s %s already exists", kind, name),
		Cause:   cause,
	}
}

// Provision reports a failed resource creation.
func Provision(kind, name string, cause error) *AppError {
	return &AppError{
		Code:    CodeProvision,
		Stage:   StageResources,
		Message: fmt.Sprintf("failed to create %s %s", kind, name),
		Hint:    "Check the resource name, location and quota; bucket names are global and may be taken by another project.",
		Cause:   cause,
	}
}

// Launch reports a stack that could not be started or never became healthy.
func Launch(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeLaunch,
		Stage:   StageStack,
		Message: message,
		Hint:    "Inspect the container logs (docker-compose logs) and check that the configured port is free.",
		Cause:   cause,
	}
}

// Cancelled reports a stage interrupted by the caller's context. It is not
// an AppError, so it maps to the generic exit status.
func Cancelled(stage Stage, cause error) error {
	return fmt.Errorf("%s stage cancelled: %w", stage, cause)
}

// Config reports invalid configuration.
func Config(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeConfig,
		Stage:   StageConfig,
		Message: message,
		Hint:    "Fix the value in config.yaml, the GCP_BOOTSTRAP_* environment or the command flags.",
		Cause:   cause,
	}
}

var exitCodes = map[string]int{
	CodeConfig:              2,
	CodeMissingCredential:   3,
	CodeMalformedCredential: 4,
	CodeAuthFailure:         5,
	CodeServiceEnable:       6,
	CodeProvision:           7,
	CodeLaunch:              8,
}

// ExitCode maps an error to a process exit status.
// Returns 0 for nil and 1 for errors that are not classified.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		if code, ok := exitCodes[appErr.Code]; ok {
			return code
		}
	}
	return 1
}

// GetErrorCode extracts the error code from an error.
// Returns empty string if the error is not an AppError.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetHint extracts the actionable hint from an error.
func GetHint(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Hint
	}
	return ""
}
