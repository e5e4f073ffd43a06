package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandHome("~/.tokenkeeper.json")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".tokenkeeper.json"), got)

	got, err = ExpandHome("/etc/state.json")
	require.NoError(t, err)
	require.Equal(t, "/etc/state.json", got)

	got, err = ExpandHome("~user/x")
	require.NoError(t, err)
	require.Equal(t, "~user/x", got)
}

func TestWritePrivate_CreatesFileWithMode0600(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	require.NoError(t, WritePrivate(path, []byte(`{"a":1}`)))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(b))

	if runtime.GOOS != "windows" {
		fi, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

		di, err := os.Stat(filepath.Dir(path))
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o700), di.Mode().Perm()&0o700)
	}
}

func TestWritePrivate_ReplacesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	require.NoError(t, WritePrivate(path, []byte("one")))
	require.NoError(t, WritePrivate(path, []byte("two")))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "two", string(b))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasPrefix(e.Name(), ".state.json."), "temp file left behind: %s", e.Name())
	}
}

func TestWritePrivate_FailsWhenParentIsFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	err := WritePrivate(filepath.Join(blocker, "state.json"), []byte("y"))
	require.Error(t, err)
}
