// Package cmd implements the hitsuite CLI commands using Cobra.
//
// Available commands:
//   - run: Execute the specs in suite files, optionally in watch mode
//   - validate: Check suite files against the document schema
//   - list: Display the spec tree without running it
//   - init: Create a config file and an example suite
//   - version: Show hitsuite version information
//
// Flags default from HITSUITE_* environment variables and override the
// values read from .hitsuite.yaml.
package cmd
