package bottle

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsbuffalo/cellar/pkg/formula"
	"github.com/vsbuffalo/cellar/pkg/tab"
)

func writeBottleArchive(t *testing.T, entries map[string]string) string {
	path := filepath.Join(t.TempDir(), "bottle.tar.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for name, content := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return path
}

func TestPourStagesArchiveAndRewritesTab(t *testing.T) {
	cellar := t.TempDir()
	prefix := t.TempDir()
	archive := writeBottleArchive(t, map[string]string{
		"bin/sqlite3": "#!/bin/sh\necho sqlite\n",
	})

	keg := formula.Keg{Cellar: cellar, Prefix: prefix, Name: "sqlite", Version: "3.40"}
	f := &fakeFormula{name: "sqlite", hasBottle: true, pourPermitted: true, bottle: formula.Bottle{Cellar: ":any", LocalPath: archive}}

	p := &Pourer{}
	result, err := p.Pour(f, keg, "", "", nil, "homebrew/core")
	require.NoError(t, err)
	assert.Equal(t, keg.KegPrefix(), result.KegPrefix)

	data, err := os.ReadFile(filepath.Join(keg.KegPrefix(), "bin", "sqlite3"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "echo sqlite")

	tb, ok, err := tab.Load(keg.TabPath())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, tb.PouredFromBottle)
	assert.Equal(t, "homebrew/core", tb.Tap)
}

func TestPourRejectsPathTraversalInArchive(t *testing.T) {
	cellar := t.TempDir()
	prefix := t.TempDir()
	archive := writeBottleArchive(t, map[string]string{
		"../../etc/passwd": "pwned",
	})

	keg := formula.Keg{Cellar: cellar, Prefix: prefix, Name: "evil", Version: "1.0"}
	f := &fakeFormula{name: "evil", hasBottle: true, pourPermitted: true, bottle: formula.Bottle{Cellar: ":any", LocalPath: archive}}

	p := &Pourer{}
	_, err := p.Pour(f, keg, "", "", nil, "homebrew/core")
	assert.Error(t, err)
}

func TestPourRelocatesEtcVarWithoutOverwritingExisting(t *testing.T) {
	cellar := t.TempDir()
	prefix := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(prefix, "etc", "sqlite"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(prefix, "etc", "sqlite", "sqliterc"), []byte("user-edited"), 0o644))

	archive := writeBottleArchive(t, map[string]string{
		"etc/sqlite/sqliterc": "default-config",
		"bin/sqlite3":         "bin",
	})

	keg := formula.Keg{Cellar: cellar, Prefix: prefix, Name: "sqlite", Version: "3.40"}
	f := &fakeFormula{name: "sqlite", hasBottle: true, pourPermitted: true, bottle: formula.Bottle{Cellar: ":any", LocalPath: archive}}

	p := &Pourer{}
	_, err := p.Pour(f, keg, "", "", nil, "homebrew/core")
	require.NoError(t, err)

	existing, err := os.ReadFile(filepath.Join(prefix, "etc", "sqlite", "sqliterc"))
	require.NoError(t, err)
	assert.Equal(t, "user-edited", string(existing), "an existing config file is never overwritten")

	defaulted, err := os.ReadFile(filepath.Join(prefix, "etc", "sqlite", "sqliterc.default"))
	require.NoError(t, err)
	assert.Equal(t, "default-config", string(defaulted))
}
