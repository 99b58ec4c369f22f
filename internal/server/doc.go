// Package server implements the read-only HTTP status endpoint of fdep.
//
// It serves the deployment targets from deploy.json together with the run
// history recorded in the local SQLite database:
//   - GET /health lists targets and the latest run of each
//   - GET /status/{target} returns the latest and recent runs of one target
//   - GET /runs returns the most recent runs across all targets
//
// Requests are logged with slog and rate limited per client address.
package server
