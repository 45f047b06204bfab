package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSuiteFile(t *testing.T) {
	assert.True(t, IsSuiteFile("a.suite.yaml"))
	assert.True(t, IsSuiteFile("dir/b.suite.yml"))
	assert.False(t, IsSuiteFile("config.yaml"))
	assert.False(t, IsSuiteFile("suite.yaml"))
}

func TestSuiteName(t *testing.T) {
	assert.Equal(t, "users", SuiteName("/x/users.suite.yaml"))
	assert.Equal(t, "orders", SuiteName("orders.suite.yml"))
	assert.Equal(t, "plain", SuiteName("plain.yaml"))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"a.suite.yaml",
		"nested/b.suite.yml",
		"nested/notes.txt",
		".hidden/c.suite.yaml",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}
	explicit := filepath.Join(dir, "nested", "notes.txt")

	files, err := Discover([]string{dir, explicit})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.suite.yaml"),
		filepath.Join(dir, "nested", "b.suite.yml"),
		explicit,
	}, files)

	_, err = Discover([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}
