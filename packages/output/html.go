package output

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitsuite/packages/core/runner"
	"github.com/abdul-hamid-achik/hitsuite/packages/core/suite"
)

//go:embed report.html.tmpl
var htmlTemplate string

// HTMLOutput represents the complete HTML output structure
type HTMLOutput struct {
	Version        string
	RunID          string
	Seed           uint64
	Summary        HTMLSummary
	Groups         []*HTMLGroup
	Slowest        []HTMLSlow
	Duration       float64
	Time           string
	PassedPercent  float64
	FailedPercent  float64
	SkippedPercent float64
}

// HTMLSummary represents the run summary for HTML output
type HTMLSummary struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// HTMLGroup holds the specs of one group in report order.
type HTMLGroup struct {
	Name  string
	Specs []HTMLSpec
}

// HTMLSpec represents a single report for HTML output
type HTMLSpec struct {
	Name        string
	Duration    int64
	Error       string
	StatusClass string
	Assertions  []HTMLAssertion
}

// HTMLAssertion represents a failed expectation for HTML output
type HTMLAssertion struct {
	Subject     string
	Operator    string
	ExpectedStr string
	ActualStr   string
	Message     string
}

type HTMLSlow struct {
	Name     string
	Duration int64
}

// HTMLFormatter formats run results as a standalone HTML page
type HTMLFormatter struct {
	writer  io.Writer
	groups  []*HTMLGroup
	byName  map[string]*HTMLGroup
	summary HTMLSummary
	result  *runner.RunResult
	version string
}

// HTMLOption is a functional option for HTMLFormatter
type HTMLOption func(*HTMLFormatter)

// NewHTMLFormatter creates a new HTML formatter
func NewHTMLFormatter(opts ...HTMLOption) *HTMLFormatter {
	f := &HTMLFormatter{
		writer: os.Stdout,
		byName: make(map[string]*HTMLGroup),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// HTMLWithWriter sets the output writer
func HTMLWithWriter(w io.Writer) HTMLOption {
	return func(f *HTMLFormatter) {
		f.writer = w
	}
}

func (f *HTMLFormatter) FormatMessage(msg suite.Message) {
	report, ok := msg.(*suite.Report)
	if !ok {
		return
	}
	rec := newRecord(report)

	spec := HTMLSpec{
		Name:     rec.Name,
		Duration: rec.Elapsed.Milliseconds(),
		Error:    rec.Error,
	}
	f.summary.Total++
	switch {
	case rec.Skipped && rec.Passed:
		spec.StatusClass = "skipped"
		f.summary.Skipped++
	case rec.Passed:
		spec.StatusClass = "passed"
		f.summary.Passed++
	default:
		spec.StatusClass = "failed"
		f.summary.Failed++
	}
	for _, a := range rec.Failures {
		spec.Assertions = append(spec.Assertions, HTMLAssertion{
			Subject:     a.Subject,
			Operator:    a.Operator,
			ExpectedStr: formatValue(a.Expected, 200),
			ActualStr:   formatValue(a.Actual, 200),
			Message:     a.Message,
		})
	}

	group := f.byName[rec.Group]
	if group == nil {
		group = &HTMLGroup{Name: rec.Group}
		f.byName[rec.Group] = group
		f.groups = append(f.groups, group)
	}
	group.Specs = append(group.Specs, spec)
}

// FormatResult keeps the run metadata for the report header
func (f *HTMLFormatter) FormatResult(result *runner.RunResult) {
	f.result = result
}

// FormatError handles errors (no-op for HTML, errors are in spec results)
func (f *HTMLFormatter) FormatError(err error) {
	// Errors are included in individual spec results
}

// FormatHeader captures the version for the HTML report
func (f *HTMLFormatter) FormatHeader(version string) {
	f.version = version
}

// Flush writes the accumulated HTML output
func (f *HTMLFormatter) Flush(totalDuration time.Duration) error {
	total := f.summary.Total
	var passedPct, failedPct, skippedPct float64
	if total > 0 {
		passedPct = float64(f.summary.Passed) / float64(total) * 100
		failedPct = float64(f.summary.Failed) / float64(total) * 100
		skippedPct = float64(f.summary.Skipped) / float64(total) * 100
	}

	output := HTMLOutput{
		Version:        f.version,
		Summary:        f.summary,
		Groups:         f.groups,
		Duration:       float64(totalDuration.Milliseconds()),
		Time:           time.Now().Format("2006-01-02 15:04:05"),
		PassedPercent:  passedPct,
		FailedPercent:  failedPct,
		SkippedPercent: skippedPct,
	}
	if f.result != nil {
		output.RunID = f.result.ID
		output.Seed = f.result.Seed
		for _, s := range f.result.Slowest {
			output.Slowest = append(output.Slowest, HTMLSlow{Name: s.Description, Duration: s.Elapsed.Milliseconds()})
		}
	}

	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}

	return tmpl.Execute(f.writer, output)
}
