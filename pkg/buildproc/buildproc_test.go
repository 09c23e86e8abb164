package buildproc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsbuffalo/cellar/pkg/formula"
	"github.com/vsbuffalo/cellar/pkg/option"
)

func TestSanitizedArgsOrderAndDerivedEnv(t *testing.T) {
	args := SanitizedArgs(Flags{
		IgnoreDependencies: true,
		BuildBottle:        true,
		BottleArch:         "haswell",
		Git:                true,
		Verbose:            true,
		UserOptions:        []string{"with-tests"},
	}, true)

	assert.Equal(t, []string{
		"--ignore-dependencies",
		"--build-bottle",
		"--bottle-arch=haswell",
		"--git",
		"--verbose",
		"--env=std",
		"with-tests",
	}, args)
}

func TestSanitizedArgsExplicitEnvWins(t *testing.T) {
	args := SanitizedArgs(Flags{Env: "super"}, true)
	assert.Contains(t, args, "--env=super")
	assert.NotContains(t, args, "--env=std")
}

func TestSanitizedArgsHeadBeatsDevel(t *testing.T) {
	args := SanitizedArgs(Flags{HEAD: true, Devel: true}, false)
	assert.Contains(t, args, "--HEAD")
	assert.NotContains(t, args, "--devel")
}

func TestArgvShape(t *testing.T) {
	argv := Argv("ruby", "/load/path", "/build.rb", "/formula/sqlite.rb", Flags{}, false)
	assert.Equal(t, []string{"nice", "ruby", "-W0", "-I", "/load/path", "--", "/build.rb", "/formula/sqlite.rb"}, argv)
}

func TestQuoteArgvQuotesElementsWithSpaces(t *testing.T) {
	quoted, err := QuoteArgv([]string{"nice", "ruby", "--env=std with spaces"})
	require.NoError(t, err)
	assert.Contains(t, quoted, "nice ruby")
	assert.Contains(t, quoted, `"--env=std with spaces"`)
}

type fakeFormula struct{ name string }

func (f *fakeFormula) FullName() string                     { return f.name }
func (f *fakeFormula) Version() string                      { return "1.0" }
func (f *fakeFormula) Deps() []formula.Dependency           { return nil }
func (f *fakeFormula) Requirements() []formula.Requirement  { return nil }
func (f *fakeFormula) DeclaredOptions() []string            { return nil }
func (f *fakeFormula) Conflicts() []string                  { return nil }
func (f *fakeFormula) Bottle() (formula.Bottle, bool)       { return formula.Bottle{}, false }
func (f *fakeFormula) PlistContent() (string, bool)         { return "", false }
func (f *fakeFormula) KegOnly() bool                        { return false }
func (f *fakeFormula) HasPostInstall() bool                 { return false }
func (f *fakeFormula) LocallyModified() bool                { return false }
func (f *fakeFormula) RequiresUniversalDeps() bool          { return false }
func (f *fakeFormula) Satisfied(option.Options) bool        { return false }
func (f *fakeFormula) PourBottlePermitted() bool            { return true }
func (f *fakeFormula) Cellar() string                       { return "/usr/local/Cellar" }
func (f *fakeFormula) Prefix() string                       { return "/usr/local" }
func (f *fakeFormula) Tap() string                          { return "homebrew/core" }
func (f *fakeFormula) FormulaPath() string                  { return "/formulae/" + f.name + ".rb" }
func (f *fakeFormula) EnvIsStandard() bool                  { return false }
func (f *fakeFormula) Head() bool                           { return false }
func (f *fakeFormula) Devel() bool                          { return false }
func (f *fakeFormula) DeprecatedOptions() map[string]string { return nil }

func TestRunCleansUpFailedPrefix(t *testing.T) {
	cellar := t.TempDir()
	keg := formula.Keg{Cellar: cellar, Prefix: t.TempDir(), Name: "sqlite", Version: "3.40"}
	require.NoError(t, os.MkdirAll(keg.KegPrefix(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(keg.KegPrefix(), "partial"), []byte("x"), 0o644))

	d := &Driver{Interpreter: "/bin/false", LoadPath: "/nope", BuildScript: "/nope"}
	_, err := d.Run(context.Background(), &fakeFormula{name: "sqlite"}, "/formulae/sqlite.rb", keg, Flags{}, false, nil, "")
	require.Error(t, err)

	_, statErr := os.Stat(keg.KegPrefix())
	assert.True(t, os.IsNotExist(statErr), "a failed build must remove the partial prefix")
	_, rackErr := os.Stat(keg.Rack())
	assert.True(t, os.IsNotExist(rackErr), "an empty rack must be removed too")
}

func TestDirEmptyOrMissing(t *testing.T) {
	dir := t.TempDir()
	empty, err := DirEmptyOrMissing(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.True(t, empty)

	empty, err = DirEmptyOrMissing(dir)
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644))
	empty, err = DirEmptyOrMissing(dir)
	require.NoError(t, err)
	assert.False(t, empty)
}
