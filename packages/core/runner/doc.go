// Package runner executes suite trees and collects their results.
//
// It provides functionality for:
//   - Choosing the run order (random with a reproducible seed, declared, alphabetical)
//   - Selecting specs by name, pattern, tag and partition
//   - Throttling spec starts
//   - Stopping at the first failure
//   - Timing specs and reporting percentiles
//
// Listeners must be attached to a tree when it is built, so the runner
// hands out its Listeners before the tree is loaded.
package runner
