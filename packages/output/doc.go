// Package output provides formatters for displaying run results.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Newline-delimited JSON, one object per message
//   - TAP: Test Anything Protocol version 13
//   - JUnit: JUnit XML format for CI integration
//   - HTML: A standalone report page
//
// Formatters receive the messages of a run as they are produced and the
// final runner.RunResult. Formats that accumulate results before writing
// implement Flushable.
package output
