package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/hitsuite/packages/core/config"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("HITSUITE_TEST_STRING", "value")
	t.Setenv("HITSUITE_TEST_BOOL", "yes")
	t.Setenv("HITSUITE_TEST_INT", "12")
	t.Setenv("HITSUITE_TEST_UINT", "42")
	t.Setenv("HITSUITE_TEST_FLOAT", "2.5")
	t.Setenv("HITSUITE_TEST_BAD", "nope")

	assert.Equal(t, "value", getEnvString("HITSUITE_TEST_STRING", "default"))
	assert.Equal(t, "default", getEnvString("HITSUITE_TEST_MISSING", "default"))
	assert.True(t, getEnvBool("HITSUITE_TEST_BOOL", false))
	assert.False(t, getEnvBool("HITSUITE_TEST_BAD", false))
	assert.Equal(t, 12, getEnvInt("HITSUITE_TEST_INT", 0))
	assert.Equal(t, 3, getEnvInt("HITSUITE_TEST_BAD", 3))
	assert.Equal(t, uint64(42), getEnvUint("HITSUITE_TEST_UINT", 0))
	assert.Equal(t, uint64(7), getEnvUint("HITSUITE_TEST_BAD", 7))
	assert.Equal(t, 2.5, getEnvFloat("HITSUITE_TEST_FLOAT", 0))
	assert.Equal(t, 1.5, getEnvFloat("HITSUITE_TEST_BAD", 1.5))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"smoke", "!slow"}, splitList(" smoke, ,!slow "))
	assert.Empty(t, splitList(""))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCode(nil))
	assert.Equal(t, ExitTestFailure, exitCode(errors.New("boom")))
	assert.Equal(t, ExitParseError, exitCode(&exitError{code: ExitParseError, err: errors.New("bad")}))

	wrapped := errors.Join(errors.New("context"), &exitError{code: ExitConfigError})
	assert.Equal(t, ExitConfigError, exitCode(wrapped))
	assert.Equal(t, "exit status 3", (&exitError{code: ExitConfigError}).Error())
}

func TestSettingsLogger_VerboseShowsInfo(t *testing.T) {
	quiet := &settings{config: config.DefaultConfig()}
	assert.False(t, quiet.logger().Core().Enabled(zap.InfoLevel))

	loud := &settings{config: config.DefaultConfig()}
	loud.config.Verbose = config.BoolPtr(true)
	assert.True(t, loud.logger().Core().Enabled(zap.InfoLevel))
}

func TestWatchDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))
	file := filepath.Join(dir, "nested", "a.suite.yaml")
	require.NoError(t, os.WriteFile(file, []byte("specs: []"), 0644))

	assert.ElementsMatch(t, []string{dir, filepath.Join(dir, "nested")}, watchDirs([]string{dir}))
	assert.Equal(t, []string{filepath.Join(dir, "nested")}, watchDirs([]string{file}))
}

func TestProjectWorkflow(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	stdout, _, err := execute(t, "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, stdout, "example.suite.yaml")
	assert.FileExists(t, filepath.Join(dir, ".hitsuite.yaml"))

	forceInit = false
	_, _, err = execute(t, "init")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))

	stdout, _, err = execute(t, "validate", ".")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Valid: example.suite.yaml")

	listFlat = false
	stdout, _, err = execute(t, "list", ".")
	require.NoError(t, err)
	assert.Contains(t, stdout, "example\n")
	assert.Contains(t, stdout, "  - greets\n")
	assert.Contains(t, stdout, "  json output\n")

	stdout, _, err = execute(t, "list", "--flat", ".")
	require.NoError(t, err)
	assert.Contains(t, stdout, "example json output prints an object  [smoke]")

	report := filepath.Join(dir, "out.ndjson")
	_, _, err = execute(t, "run", ".", "--order", "declared", "--output", "json", "--output-file", report)
	require.NoError(t, err)

	f, err := os.Open(report)
	require.NoError(t, err)
	defer f.Close()
	var kinds []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		kinds = append(kinds, line.Type)
	}
	require.NotEmpty(t, kinds)
	assert.Equal(t, "plan", kinds[0])
	assert.Equal(t, "result", kinds[len(kinds)-1])

	assert.FileExists(t, filepath.Join(dir, "reports", "hitsuite.xml"))
}

func TestValidate_Invalid(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "broken.suite.yaml")
	require.NoError(t, os.WriteFile(file, []byte("specs:\n  - run: echo hi\n"), 0644))

	_, stderr, err := execute(t, "validate", file)
	require.Error(t, err)
	assert.Equal(t, ExitParseError, exitCode(err))
	assert.Contains(t, stderr, "broken.suite.yaml")
}
