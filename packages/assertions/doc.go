// Package assertions checks the output of a spec command.
//
// Supported subjects:
//   - exit_code: the process exit status
//   - stdout, stderr: captured output as text
//   - lines: stdout split into lines
//   - duration: wall time in milliseconds
//   - json, json.<path>: stdout parsed as JSON, queried with gjson paths
//
// Assertions support various operators: equals, contains, exists, matches,
// length, type, schema and more. A failing set of results is turned into a
// *Failure error that becomes the reason of the spec report.
package assertions
