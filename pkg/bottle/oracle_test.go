package bottle

import (
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/vsbuffalo/cellar/pkg/formula"
	"github.com/vsbuffalo/cellar/pkg/option"
)

type fakeFormula struct {
	name            string
	bottle          formula.Bottle
	hasBottle       bool
	locallyModified bool
	pourPermitted   bool
}

func (f *fakeFormula) FullName() string                     { return f.name }
func (f *fakeFormula) Version() string                      { return "1.0" }
func (f *fakeFormula) Deps() []formula.Dependency           { return nil }
func (f *fakeFormula) Requirements() []formula.Requirement  { return nil }
func (f *fakeFormula) DeclaredOptions() []string            { return nil }
func (f *fakeFormula) Conflicts() []string                  { return nil }
func (f *fakeFormula) Bottle() (formula.Bottle, bool)       { return f.bottle, f.hasBottle }
func (f *fakeFormula) PlistContent() (string, bool)         { return "", false }
func (f *fakeFormula) KegOnly() bool                        { return false }
func (f *fakeFormula) HasPostInstall() bool                 { return false }
func (f *fakeFormula) LocallyModified() bool                { return f.locallyModified }
func (f *fakeFormula) RequiresUniversalDeps() bool          { return false }
func (f *fakeFormula) Satisfied(option.Options) bool        { return false }
func (f *fakeFormula) PourBottlePermitted() bool            { return f.pourPermitted }
func (f *fakeFormula) Cellar() string                       { return "/usr/local/Cellar" }
func (f *fakeFormula) Prefix() string                       { return "/usr/local" }
func (f *fakeFormula) Tap() string                          { return "homebrew/core" }
func (f *fakeFormula) FormulaPath() string                  { return "/formulae/" + f.name + ".rb" }
func (f *fakeFormula) EnvIsStandard() bool                  { return false }
func (f *fakeFormula) Head() bool                           { return false }
func (f *fakeFormula) Devel() bool                          { return false }
func (f *fakeFormula) DeprecatedOptions() map[string]string { return nil }

func emptyBuild() option.BuildOptions {
	return option.NewBuildOptions(option.NewOptions(), option.NewOptions())
}

func TestPourBottleBaseCase(t *testing.T) {
	o := NewOracle("/usr/local/Cellar", Gates{}, nil)
	f := &fakeFormula{name: "sqlite", hasBottle: true, pourPermitted: true, bottle: formula.Bottle{Cellar: ":any"}}
	assert.True(t, o.PourBottle(f, emptyBuild(), false))
}

func TestPourBottleNoBottleDeclared(t *testing.T) {
	o := NewOracle("/usr/local/Cellar", Gates{}, nil)
	f := &fakeFormula{name: "sqlite", hasBottle: false}
	assert.False(t, o.PourBottle(f, emptyBuild(), false))
}

func TestPourBottleNegativeGates(t *testing.T) {
	f := &fakeFormula{name: "sqlite", hasBottle: true, pourPermitted: true, bottle: formula.Bottle{Cellar: ":any"}}

	for _, gates := range []Gates{
		{PourFailed: true},
		{BuildFromSource: true},
		{BuildBottle: true},
		{Interactive: true},
	} {
		o := NewOracle("/usr/local/Cellar", gates, nil)
		assert.False(t, o.PourBottle(f, emptyBuild(), false), "%+v", gates)
	}
}

func TestPourBottleNonEmptyOptionsBlocksPour(t *testing.T) {
	o := NewOracle("/usr/local/Cellar", Gates{}, nil)
	f := &fakeFormula{name: "sqlite", hasBottle: true, pourPermitted: true, bottle: formula.Bottle{Cellar: ":any"}}
	build := option.NewBuildOptions(option.NewOptions("with-tests"), option.NewOptions("with-tests"))
	assert.False(t, o.PourBottle(f, build, false))
}

func TestPourBottleLocallyModifiedBlocksUnlessLocalBottlePath(t *testing.T) {
	o := NewOracle("/usr/local/Cellar", Gates{}, nil)
	modified := &fakeFormula{name: "sqlite", hasBottle: true, pourPermitted: true, locallyModified: true, bottle: formula.Bottle{Cellar: ":any"}}
	assert.False(t, o.PourBottle(modified, emptyBuild(), false))

	withLocalPath := &fakeFormula{name: "sqlite", hasBottle: true, pourPermitted: true, locallyModified: true, bottle: formula.Bottle{Cellar: ":any", LocalPath: "/tmp/sqlite.bottle.tar.gz"}}
	assert.True(t, o.PourBottle(withLocalPath, emptyBuild(), false))
}

func TestPourBottlePermittedOverrideBlocks(t *testing.T) {
	o := NewOracle("/usr/local/Cellar", Gates{}, nil)
	f := &fakeFormula{name: "sqlite", hasBottle: true, pourPermitted: false, bottle: formula.Bottle{Cellar: ":any"}}
	assert.False(t, o.PourBottle(f, emptyBuild(), false))
}

func TestPourBottleCellarMismatchBlocks(t *testing.T) {
	o := NewOracle("/usr/local/Cellar", Gates{}, nil)
	f := &fakeFormula{name: "sqlite", hasBottle: true, pourPermitted: true, bottle: formula.Bottle{Cellar: "/opt/other/Cellar"}}
	assert.False(t, o.PourBottle(f, emptyBuild(), false))
}

func TestPourBottleForceBottleOverridesNegativeGates(t *testing.T) {
	o := NewOracle("/usr/local/Cellar", Gates{BuildFromSource: true, ForceBottle: true}, nil)
	f := &fakeFormula{name: "sqlite", hasBottle: true, pourPermitted: true, bottle: formula.Bottle{Cellar: ":any"}}
	assert.True(t, o.PourBottle(f, emptyBuild(), false))
}

func TestWillPourNeverWarns(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	o := NewOracle("/usr/local/Cellar", Gates{}, log)
	f := &fakeFormula{name: "sqlite", hasBottle: true, pourPermitted: true, bottle: formula.Bottle{Cellar: "/other/Cellar"}}
	assert.False(t, o.WillPour(f, emptyBuild()))
	assert.Empty(t, hook.AllEntries(), "a cellar mismatch seen through WillPour logs no warning")
}

func TestHookClaimsDecision(t *testing.T) {
	o := NewOracle("/usr/local/Cellar", Gates{BuildFromSource: true}, nil)
	o.Hook = func(formula.Formula) (bool, bool) { return true, true }
	f := &fakeFormula{name: "sqlite"}
	assert.True(t, o.PourBottle(f, emptyBuild(), false), "a claiming hook overrides every other gate")
}
