// Package config handles configuration loading and management for contractkit.
//
// It provides functionality for:
//   - Loading configuration from .contractkit.yaml, contractkit.yaml or .contractkit.json files
//   - Default configuration values
//   - Merging file configuration with command line overrides
//
// It also defines FatalError, the error every package returns for
// non-retryable configuration problems such as an unreadable schema or a
// malformed base specification.
package config
