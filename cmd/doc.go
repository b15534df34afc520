// Package cmd implements the command-line interface of iodmap. It provides a
// hierarchical command structure with operations for running the server and
// working with maps as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Command for starting and configuring the iodmap server
//   - kvmap: Commands for map operations (create, open, set, get, count, exists,
//     delete, close, info) and a benchmark (perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as environment variable IODMAP_<FLAG> (dashes become
// underscores) or in a .env / .env.local file.
//
// See iodmap -help for a list of all commands.
package cmd
