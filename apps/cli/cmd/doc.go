// Package cmd implements the contractkit CLI commands using Cobra.
//
// Available commands:
//   - run: Execute the scenarios of one or more suite files
//   - validate: Build suites and check variable references without sending requests
//   - list: Display the scenarios and rows a suite would run
//   - history: Show recorded runs and flaky rows
//   - init: Create an example suite and config
//   - version: Show version information
//
// Flags fall back to CONTRACTKIT_* environment variables, then to the
// config file, then to built-in defaults.
package cmd
