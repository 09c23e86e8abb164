package installer

import (
	"github.com/vsbuffalo/cellar/pkg/formula"
	"github.com/vsbuffalo/cellar/pkg/option"
	"github.com/vsbuffalo/cellar/pkg/tab"
)

// Loader loads a formula by its full name (spec.md §1, external
// collaborator). Satisfied by whatever recipe/tap reader a caller wires
// in; also satisfies pkg/depgraph.Loader.
type Loader interface {
	Load(name string) (formula.Formula, error)
}

// AutoTapper adds a tap on demand, the single retry the prelude attempts
// before surfacing a TapFormulaUnavailableError (§4.3).
type AutoTapper interface {
	Tap(name string) error
}

// KegFinder answers the two installed-state questions the installer needs
// outside of the dependency graph itself: which version (if any) of a
// formula is currently installed, and which version (if any) is linked.
// Both are out-of-scope external collaborators (spec.md §1): the actual
// Cellar/opt scan lives outside this module.
type KegFinder interface {
	// InstalledKeg returns the currently installed keg for fullName, if
	// any exists on disk.
	InstalledKeg(fullName string) (formula.Keg, bool)
	// IsLinked reports the version currently linked for fullName, if
	// any.
	IsLinked(fullName string) (version string, linked bool)
}

// Linker performs the symlink mechanics §4.8 drives: linking a keg into
// the shared prefix, opt-linking a keg-only formula, unlinking, and (on
// Darwin, for every install; pouredFromBottle tells it whether placeholder
// tokens also need relocating) rewriting install names. Out of scope
// (spec.md §1) — a caller supplies the concrete implementation.
//
// Link should return a *LinkConflictError or *LinkError (not a
// bare error) for the finisher's non-fatal branches to recognize; any
// other error is treated as unexpected and re-raised after an
// interrupt-masked unlink attempt (§4.8 step 2).
type Linker interface {
	Link(keg formula.Keg) error
	LinkDryRunOverwrite(keg formula.Keg) (conflicts []string, err error)
	Unlink(keg formula.Keg) error
	Optlink(keg formula.Keg) error
	FixInstallNames(keg formula.Keg, pouredFromBottle bool) error
}

// PlistInstaller installs a formula's service-definition content into the
// filesystem (§4.8 step 1). Out of scope.
type PlistInstaller interface {
	Install(content string, keg formula.Keg) error
}

// PostInstallRunner runs a formula's post-install hook (§4.8 step 4). Out
// of scope.
type PostInstallRunner interface {
	Run(f formula.Formula) error
}

// Cleaner strips build artifacts from a freshly built keg (§4.4 step 10,
// "clean"). Out of scope.
type Cleaner interface {
	Clean(f formula.Formula, keg formula.Keg) error
}

// TabStore is the installer-level extension of pkg/depgraph.TabOptions:
// besides answering used_options lookups for dependency expansion, it
// loads and saves the tab for the installer's own target keg.
type TabStore interface {
	UsedOptions(fullName string) (option.Options, bool)
	Load(keg formula.Keg) (tab.Tab, bool, error)
	Save(keg formula.Keg, t tab.Tab) error
}
