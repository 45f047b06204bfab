// Package config handles configuration loading and management for hitsuite.
//
// It provides functionality for:
//   - Loading configuration from .hitsuite.json or .hitsuite.yaml files
//   - Default configuration values
//   - Merging file settings with command line overrides
package config
