package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/hitsuite/packages/core/runner"
	"github.com/abdul-hamid-achik/hitsuite/packages/core/suite"
)

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatMessage(msg suite.Message) {
	switch m := msg.(type) {
	case *suite.Plan:
		faint := color.New(color.Faint).SprintFunc()
		fmt.Fprintf(f.writer, "\n%s\n\n", faint(fmt.Sprintf("Running %d of %d specs", m.Planned, m.Total)))
	case *suite.Report:
		f.formatReport(m)
	}
}

func (f *ConsoleFormatter) formatReport(r *suite.Report) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	rec := newRecord(r)
	switch {
	case rec.Skipped && rec.Passed:
		fmt.Fprintf(f.writer, "  %s %s\n", yellow("-"), r.Description)
		return
	case rec.Hook:
		fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), r.Description, red(fmt.Sprintf("(%s)", rec.Error)))
		return
	}

	symbol := green("✓")
	if !rec.Passed {
		symbol = red("✗")
	}
	fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, r.Description, cyan(fmt.Sprintf("(%dms)", rec.Elapsed.Milliseconds())))

	if rec.Passed {
		return
	}
	if len(rec.Failures) == 0 {
		fmt.Fprintf(f.writer, "    %s %s\n", red("→"), rec.Error)
		return
	}
	for _, a := range rec.Failures {
		fmt.Fprintf(f.writer, "    %s %s %s\n", red("→"), a.Subject, a.Operator)
		fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(a.Expected, 100))
		fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(a.Actual, 100))
		if a.Message != "" {
			fmt.Fprintf(f.writer, "      %s\n", a.Message)
		}
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	s := result.Summary
	passed := s.OK - s.Skipped
	fmt.Fprintf(f.writer, "\n")
	if result.Bailed {
		fmt.Fprintf(f.writer, "%s\n", yellow("Stopped after the first failure"))
	}
	fmt.Fprintf(f.writer, "Specs: ")
	if passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", passed)))
	}
	if s.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", s.Failed)))
	}
	if s.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", s.Skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", s.Completed)
	fmt.Fprintf(f.writer, "Time:  %dms\n", result.Duration.Milliseconds())
	if result.Seed != 0 {
		fmt.Fprintf(f.writer, "Seed:  %d\n", result.Seed)
	}

	if f.verbose && result.Timing.Count > 0 {
		t := result.Timing
		fmt.Fprintf(f.writer, "Latency: p50=%dms p95=%dms p99=%dms max=%dms\n",
			t.P50.Milliseconds(), t.P95.Milliseconds(), t.P99.Milliseconds(), t.Max.Milliseconds())
		if len(result.Slowest) > 0 {
			fmt.Fprintf(f.writer, "Slowest:\n")
			for _, sample := range result.Slowest {
				fmt.Fprintf(f.writer, "  %6dms  %s\n", sample.Elapsed.Milliseconds(), sample.Description)
			}
		}
	}
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("hitsuite"), version)
}
