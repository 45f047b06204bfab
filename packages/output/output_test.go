package output

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitsuite/packages/assertions"
	"github.com/abdul-hamid-achik/hitsuite/packages/core/runner"
	"github.com/abdul-hamid-achik/hitsuite/packages/core/suite"
)

type formatter interface {
	FormatMessage(msg suite.Message)
	FormatResult(result *runner.RunResult)
}

func pass(context.Context) error { return nil }

func failExpectation(context.Context) error {
	out := &assertions.Output{Stdout: []byte("hello")}
	return assertions.Check(out, []*assertions.Assertion{
		{Subject: "stdout", Operator: assertions.OpContains, Expected: "bye"},
	})
}

// runWith runs a fixed tree: a pass, an expectation failure, a skipped
// spec and a group whose before-all hook fails.
func runWith(t *testing.T, f formatter) *runner.RunResult {
	t.Helper()
	r := runner.NewRunner(&runner.Config{Order: "declared", Seed: 7})
	root := suite.New("api", suite.WithListeners(r.Listeners()))
	root.It("passes", pass)
	root.It("fails", failExpectation)
	root.XIt("skipped", pass)
	root.Describe("db", func(g *suite.Group) {
		g.BeforeAll(func(context.Context) error { return errors.New("no database") })
		g.It("queries", pass)
	})

	result, err := r.Run(context.Background(), root, f.FormatMessage)
	require.NoError(t, err)
	f.FormatResult(result)
	return result
}

func TestConsoleFormatter(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithVerbose(true), WithNoColor(true))

	f.FormatHeader("1.0.0")
	runWith(t, f)
	f.FormatError(errors.New("something broke"))
	out := buf.String()

	assert.Contains(t, out, "hitsuite 1.0.0")
	assert.Contains(t, out, "Running 4 of 4 specs")
	assert.Contains(t, out, "✓ api passes")
	assert.Contains(t, out, "✗ api fails")
	assert.Contains(t, out, "→ stdout contains")
	assert.Contains(t, out, "Expected: bye")
	assert.Contains(t, out, "Actual:   hello")
	assert.Contains(t, out, "- api skipped")
	assert.Contains(t, out, "x before-all: db (no database)")
	assert.Contains(t, out, "Specs: 1 passed, 2 failed, 1 skipped, 4 total")
	assert.NotContains(t, out, "Seed:", "declared order has no seed")
	assert.Contains(t, out, "Latency: p50=")
	assert.Contains(t, out, "Slowest:")
	assert.Contains(t, out, "Error: something broke")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))
	result := runWith(t, f)
	require.NoError(t, f.Err())

	var lines []map[string]any
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}

	var types []string
	for _, l := range lines {
		types = append(types, l["type"].(string))
	}
	assert.Equal(t, []string{"plan", "report", "report", "report", "report", "summary", "result"}, types)

	plan := lines[0]["data"].(map[string]any)
	assert.Equal(t, float64(4), plan["planned"])

	passed := lines[1]["data"].(map[string]any)
	assert.Equal(t, "api passes", passed["description"])
	assert.Equal(t, true, passed["ok"])
	assert.Contains(t, passed, "elapsed", "listener fields are flattened")

	failed := lines[2]["data"].(map[string]any)
	assert.Equal(t, false, failed["ok"])
	assert.Contains(t, failed["reason"], "expected 'hello' to contain 'bye'")

	summary := lines[5]["data"].(map[string]any)
	assert.Equal(t, float64(2), summary["failed"])

	res := lines[6]["data"].(map[string]any)
	assert.Equal(t, result.ID, res["id"])
	assert.Equal(t, "declared", res["order"])
	assert.Equal(t, false, res["passed"])
	assert.Contains(t, res, "timing")
}

func TestTAPFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewTAPFormatter(TAPWithWriter(&buf))
	runWith(t, f)
	lines := strings.Split(buf.String(), "\n")

	assert.Equal(t, "TAP version 13", lines[0])
	assert.Equal(t, "ok 1 - api passes", lines[1])
	assert.Equal(t, "not ok 2 - api fails", lines[2])
	assert.Contains(t, buf.String(), "  failures:\n    - \"stdout contains: expected bye, got hello\"\n")
	assert.Contains(t, buf.String(), "ok 3 - api skipped # SKIP\n")
	assert.Contains(t, buf.String(), "not ok 4 - before-all: db\n")
	assert.Contains(t, buf.String(), "  message: no database\n")
	assert.True(t, strings.HasSuffix(buf.String(), "1..4\n"))
}

func TestTAPFormatter_Escaping(t *testing.T) {
	assert.Equal(t, `issue \#12`, escapeDescription("issue #12"))
	assert.Equal(t, "plain", escapeYAML("plain"))
	assert.Equal(t, `"a: \"b\"\nc"`, escapeYAML("a: \"b\"\nc"))
}

func TestJUnitFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJUnitFormatter(JUnitWithWriter(&buf))
	result := runWith(t, f)
	require.NoError(t, f.Flush(time.Second))

	assert.True(t, strings.HasPrefix(buf.String(), `<?xml version="1.0" encoding="UTF-8"?>`))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))
	assert.Equal(t, 4, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 1, suites.Errors)
	assert.Equal(t, 1, suites.Skipped)
	assert.Equal(t, 1.0, suites.Time)

	require.Len(t, suites.TestSuites, 2)
	api := suites.TestSuites[0]
	assert.Equal(t, "api", api.Name)
	require.Len(t, api.TestCases, 3)
	assert.Equal(t, "passes", api.TestCases[0].Name)
	require.NotNil(t, api.TestCases[1].Failure)
	assert.Equal(t, "AssertionError", api.TestCases[1].Failure.Type)
	assert.NotNil(t, api.TestCases[2].Skipped)

	require.NotNil(t, api.Properties)
	assert.Contains(t, api.Properties.Properties, JUnitProperty{Name: "run", Value: result.ID})

	db := suites.TestSuites[1]
	assert.Equal(t, "api db", db.Name)
	require.Len(t, db.TestCases, 1)
	require.NotNil(t, db.TestCases[0].Error)
	assert.Equal(t, "no database", db.TestCases[0].Error.Message)
}

func TestHTMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewHTMLFormatter(HTMLWithWriter(&buf))
	f.FormatHeader("1.0.0")
	result := runWith(t, f)
	require.NoError(t, f.Flush(result.Duration))

	out := buf.String()
	assert.Contains(t, out, "<!DOCTYPE html>")
	assert.Contains(t, out, "hitsuite 1.0.0")
	assert.Contains(t, out, "run "+result.ID)
	assert.Contains(t, out, `<div class="spec failed">`)
	assert.Contains(t, out, "<td>stdout</td><td>contains</td><td>bye</td><td>hello</td>")
	assert.Contains(t, out, "no database")
	assert.Contains(t, out, "<span>4 total</span>")
	assert.Contains(t, out, "<span>2 failed</span>")
	assert.Contains(t, out, "Slowest specs")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "[array with 2 items]", formatValue([]any{1, 2}, 10))
	assert.Equal(t, "{object with 1 keys}", formatValue(map[string]any{"a": 1}, 10))
	assert.Equal(t, "abc...", formatValue("abcdef", 3))
	assert.Equal(t, "42", formatValue(42, 10))
}
