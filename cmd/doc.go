// Package cmd implements the command-line interface for the r2db2 database
// server. It provides a hierarchical command structure with operations for
// running the server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the r2db2 server
//   - query: Commands for executing SQL against a running server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See r2db2 -help for a list of all commands.
package cmd
