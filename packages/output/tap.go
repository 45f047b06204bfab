package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/hitsuite/packages/core/runner"
	"github.com/abdul-hamid-achik/hitsuite/packages/core/suite"
)

// TAPFormatter streams TAP version 13. The plan line comes last because
// failing hooks add test points beyond the planned specs.
type TAPFormatter struct {
	writer    io.Writer
	testCount int
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatMessage(msg suite.Message) {
	switch m := msg.(type) {
	case *suite.Plan:
		f.testCount = 0
		fmt.Fprintf(f.writer, "TAP version 13\n")
	case *suite.Report:
		f.testCount++
		f.formatReport(m)
	case *suite.Summary:
		fmt.Fprintf(f.writer, "1..%d\n", f.testCount)
	}
}

func (f *TAPFormatter) formatReport(r *suite.Report) {
	rec := newRecord(r)
	name := escapeDescription(r.Description)

	if rec.Skipped && rec.Passed {
		fmt.Fprintf(f.writer, "ok %d - %s # SKIP\n", f.testCount, name)
		return
	}
	if rec.Passed {
		fmt.Fprintf(f.writer, "ok %d - %s\n", f.testCount, name)
		return
	}

	fmt.Fprintf(f.writer, "not ok %d - %s\n", f.testCount, name)
	fmt.Fprintf(f.writer, "  ---\n")
	if len(rec.Failures) > 0 {
		fmt.Fprintf(f.writer, "  failures:\n")
		for _, a := range rec.Failures {
			fmt.Fprintf(f.writer, "    - %s\n", escapeYAML(fmt.Sprintf(
				"%s %s: expected %v, got %v", a.Subject, a.Operator, a.Expected, a.Actual)))
		}
	} else {
		fmt.Fprintf(f.writer, "  message: %s\n", escapeYAML(rec.Error))
		fmt.Fprintf(f.writer, "  severity: fail\n")
	}
	if rec.Elapsed > 0 {
		fmt.Fprintf(f.writer, "  duration_ms: %d\n", rec.Elapsed.Milliseconds())
	}
	fmt.Fprintf(f.writer, "  ...\n")
}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	if result.Bailed {
		fmt.Fprintf(f.writer, "Bail out! Stopped after the first failure\n")
	}
	if result.Seed != 0 {
		fmt.Fprintf(f.writer, "# seed %d\n", result.Seed)
	}
}

func (f *TAPFormatter) FormatError(err error) {
	fmt.Fprintf(f.writer, "Bail out! %s\n", strings.ReplaceAll(err.Error(), "\n", " "))
}

func (f *TAPFormatter) FormatHeader(version string) {
	// The version line is written with the plan
}

// escapeDescription keeps a description from being read as a directive.
func escapeDescription(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "#", "\\#")
}

func escapeYAML(s string) string {
	// Simple YAML escaping - wrap in quotes if contains special chars
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		return "\"" + s + "\""
	}
	return s
}
