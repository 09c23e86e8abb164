package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default("/usr/local")
	assert.Equal(t, "/usr/local", c.Prefix)
	assert.Equal(t, "/usr/local/Cellar", c.Cellar)
}

func TestLoadDecodesTOMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cellar.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
cellar = "/opt/brew/Cellar"

[build]
interpreter = "/usr/bin/ruby"
load_path = "/opt/brew/Library"
script = "build.rb"

[sandbox]
available = true
`), 0o644))

	c, err := Load(path, "/usr/local")
	require.NoError(t, err)
	assert.Equal(t, "/usr/local", c.Prefix, "prefix falls back to the default when unset in TOML")
	assert.Equal(t, "/opt/brew/Cellar", c.Cellar)
	assert.Equal(t, "/usr/bin/ruby", c.Build.Interpreter)
	assert.True(t, c.Sandbox.Available)
}

func TestLoadWithoutPathUsesDefaultsOnly(t *testing.T) {
	c, err := Load("", "/usr/local")
	require.NoError(t, err)
	assert.Equal(t, Default("/usr/local"), c)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("HOMEBREW_INSTALL_BADGE", ":beer:")
	t.Setenv("HOMEBREW_NO_EMOJI", "1")

	c, err := Load("", "/usr/local")
	require.NoError(t, err)
	assert.Equal(t, ":beer:", c.InstallBadge)
	assert.True(t, c.NoEmoji)
}
