package tab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	got, ok, err := Load(filepath.Join(t.TempDir(), "nonexistent.json"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Tab{}, got)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "INSTALL_RECEIPT.json")
	want := Tab{
		UsedOptions:      []string{"universal", "with-tests"},
		Compiler:         "clang",
		Tap:              "homebrew/core",
		PouredFromBottle: true,
	}

	require.NoError(t, Save(path, want))

	got, ok, err := Load(path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestSaveLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "INSTALL_RECEIPT.json")
	require.NoError(t, Save(path, Tab{Compiler: "gcc"}))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "tmp file should not exist once Save has returned")
}
