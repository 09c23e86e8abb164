package formula

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKegPathDerivation(t *testing.T) {
	k := Keg{Cellar: "/usr/local/Cellar", Prefix: "/usr/local", Name: "sqlite", Version: "3.40"}

	assert.Equal(t, filepath.Join("/usr/local/Cellar", "sqlite"), k.Rack())
	assert.Equal(t, filepath.Join("/usr/local/Cellar", "sqlite", "3.40"), k.KegPrefix())
	assert.Equal(t, filepath.Join("/usr/local", "opt", "sqlite"), k.OptPrefix())
	assert.Equal(t, filepath.Join("/usr/local/Cellar", "sqlite", ".linked"), k.LinkedKeg())
	assert.Equal(t, filepath.Join("/usr/local/Cellar", "sqlite", "3.40", ".bottle"), k.BottlePrefix())
	assert.Equal(t, filepath.Join("/usr/local", "Logs", "sqlite"), k.Logs())
	assert.Equal(t, filepath.Join("/usr/local", "var"), k.Var())
	assert.Equal(t, filepath.Join("/usr/local", "etc"), k.Etc())
	assert.Equal(t, filepath.Join("/usr/local/Cellar", "sqlite", "3.40", "INSTALL_RECEIPT.json"), k.TabPath())
}

func TestDependencyHasTag(t *testing.T) {
	d := Dependency{Name: "readline", Tags: []Tag{TagRun, TagOptional}}
	assert.True(t, d.HasTag(TagRun))
	assert.True(t, d.HasTag(TagOptional))
	assert.False(t, d.HasTag(TagBuild))
}
