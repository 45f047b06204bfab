package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitsuite/packages/core/runner"
	"github.com/abdul-hamid-achik/hitsuite/packages/core/suite"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite holds the test cases of one group.
type JUnitTestSuite struct {
	XMLName    xml.Name         `xml:"testsuite"`
	Name       string           `xml:"name,attr"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	Properties *JUnitProperties `xml:"properties,omitempty"`
	TestCases  []JUnitTestCase  `xml:"testcase"`
}

type JUnitProperties struct {
	Properties []JUnitProperty `xml:"property"`
}

type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// JUnitTestCase represents a single test case
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a test failure
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitError represents a test error
type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitSkipped represents a skipped test
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter formats run results as JUnit XML, one testsuite per group.
// Failing hooks are reported as errors.
type JUnitFormatter struct {
	writer     io.Writer
	testSuites []*JUnitTestSuite
	byName     map[string]*JUnitTestSuite
	properties []JUnitProperty
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer: os.Stdout,
		byName: make(map[string]*JUnitTestSuite),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

func (f *JUnitFormatter) FormatMessage(msg suite.Message) {
	report, ok := msg.(*suite.Report)
	if !ok {
		return
	}
	rec := newRecord(report)

	group := rec.Group
	if group == "" {
		group = "hitsuite"
	}
	ts := f.byName[group]
	if ts == nil {
		ts = &JUnitTestSuite{Name: group, Timestamp: time.Now().Format(time.RFC3339)}
		f.byName[group] = ts
		f.testSuites = append(f.testSuites, ts)
	}

	tc := JUnitTestCase{
		Name:      rec.Name,
		ClassName: group,
		Time:      rec.Elapsed.Seconds(),
	}
	switch {
	case rec.Skipped && rec.Passed:
		ts.Skipped++
		tc.Skipped = &JUnitSkipped{}
	case rec.Hook:
		ts.Errors++
		tc.Error = &JUnitError{Message: rec.Error, Type: "HookError"}
	case !rec.Passed && len(rec.Failures) > 0:
		ts.Failures++
		var failureMsg strings.Builder
		for _, a := range rec.Failures {
			fmt.Fprintf(&failureMsg, "%s %s: expected %v, got %v. %s\n",
				a.Subject, a.Operator, a.Expected, a.Actual, a.Message)
		}
		tc.Failure = &JUnitFailure{
			Message: "Assertion failed",
			Type:    "AssertionError",
			Content: failureMsg.String(),
		}
	case !rec.Passed:
		ts.Failures++
		tc.Failure = &JUnitFailure{Message: rec.Error, Type: "Failure"}
	}

	ts.Tests++
	ts.Time += tc.Time
	ts.TestCases = append(ts.TestCases, tc)
}

func (f *JUnitFormatter) FormatResult(result *runner.RunResult) {
	f.properties = []JUnitProperty{
		{Name: "run", Value: result.ID},
		{Name: "order", Value: result.Order},
	}
	if result.Seed != 0 {
		f.properties = append(f.properties, JUnitProperty{Name: "seed", Value: strconv.FormatUint(result.Seed, 10)})
	}
}

func (f *JUnitFormatter) FormatError(err error) {
	// Errors are included in individual test cases
}

func (f *JUnitFormatter) FormatHeader(version string) {
	// No header needed for JUnit XML
}

// Flush writes the accumulated JUnit XML output
func (f *JUnitFormatter) Flush(totalDuration time.Duration) error {
	suites := JUnitTestSuites{
		Name:      "hitsuite",
		Time:      totalDuration.Seconds(),
		Timestamp: time.Now().Format(time.RFC3339),
	}
	for _, ts := range f.testSuites {
		suites.Tests += ts.Tests
		suites.Failures += ts.Failures
		suites.Errors += ts.Errors
		suites.Skipped += ts.Skipped
		if len(f.properties) > 0 {
			ts.Properties = &JUnitProperties{Properties: f.properties}
		}
		suites.TestSuites = append(suites.TestSuites, *ts)
	}

	fmt.Fprintf(f.writer, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	if err := encoder.Encode(suites); err != nil {
		return err
	}
	_, err := fmt.Fprintln(f.writer)
	return err
}
