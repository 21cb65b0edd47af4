// Package gcpbootstrap prepares a Google Cloud project for the data-analysis
// web application and starts the application's docker-compose stack.
//
// # Overview
//
// A run goes through four stages, strictly in order:
//   - credential: the service-account key file must exist and name a project
//   - services: storage, BigQuery and Pub/Sub APIs are enabled when missing
//   - resources: the upload bucket, the BigQuery dataset and the Pub/Sub topic are created
//   - stack: docker-compose starts the app and its /healthz endpoint must answer 200
//
// Every stage is idempotent. Resources that already exist are reported and
// left alone, and nothing is ever deleted.
//
// # Installation
//
//	go install github.com/blackwell-systems/gcp-bootstrap/cmd/gcp-bootstrap@latest
//
// # Quick Start
//
//	gcp-bootstrap verify
//	gcp-bootstrap up
//	gcp-bootstrap status
//	gcp-bootstrap down
//
// # Configuration
//
// Flags, GCP_BOOTSTRAP_* environment variables and config.yaml (in
// $HOME/.gcp-bootstrap or the working directory) are merged in that order
// of precedence. Run "gcp-bootstrap config" to see the result.
//
// # Exit codes
//
//	0 success
//	1 unclassified failure
//	2 invalid configuration
//	3 credential file missing
//	4 credential file malformed
//	5 authentication failure
//	6 API enablement failure
//	7 resource provisioning failure
//	8 stack launch failure
package gcpbootstrap
