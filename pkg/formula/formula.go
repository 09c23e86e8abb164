// Package formula declares the external collaborators this installer core
// consumes but does not implement: formula loading/parsing, requirement
// satisfaction, and dependency-edge shape. Per spec.md §1 these are
// "out of scope (external collaborators, interfaces only)" — callers of
// pkg/installer supply concrete implementations (typically backed by a
// tap/recipe loader this module never sees).
package formula

import (
	"path/filepath"

	"github.com/vsbuffalo/cellar/pkg/option"
)

// Tag marks a dependency edge or requirement with the role it plays in a
// build (§3 "Dependency edge").
type Tag string

const (
	TagBuild       Tag = "build"
	TagRun         Tag = "run"
	TagOptional    Tag = "optional"
	TagRecommended Tag = "recommended"
	TagUniversal   Tag = "universal"
)

// Dependency is one edge in a formula's dependency graph: a target name,
// the tags it carries, and the options to pass the target's build.
type Dependency struct {
	Name    string
	Tags    []Tag
	Options []string
}

// HasTag reports whether d carries tag.
func (d Dependency) HasTag(tag Tag) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Requirement is a named precondition a formula declares, independent of
// the dependency graph proper (§3 "Requirement").
type Requirement interface {
	// Name identifies the requirement for logging/error messages.
	Name() string
	// Satisfied reports whether the requirement already holds on the
	// current system.
	Satisfied() bool
	// Fatal reports whether an unsatisfied instance of this requirement
	// should abort installation.
	Fatal() bool
	// Tags returns the requirement's tags (run/build/etc).
	Tags() []Tag
	// DefaultFormula reports whether this requirement can be satisfied by
	// installing a formula, and if so its name and ok=true.
	DefaultFormula() (name string, ok bool)
	// ToDependency projects a defaulted requirement into a dependency
	// edge; only called when DefaultFormula reports ok.
	ToDependency() Dependency
}

// Bottle describes a formula's prebuilt binary artifact descriptor (§3).
// Its download/verification mechanics are out of scope; this struct only
// carries what the eligibility oracle (§4.1) needs to decide.
type Bottle struct {
	// Cellar is the cellar path layout the bottle was built against
	// (e.g. "/usr/local/Cellar" or ":any" for a relocatable bottle).
	Cellar string
	// LocalPath, if non-empty, is a path to an already-downloaded bottle
	// archive, bypassing the "formula file locally modified" gate (§4.1).
	LocalPath string
	// DigestAlgorithm/DigestHex identify the expected checksum of the
	// bottle archive, consulted by the pour driver before staging.
	DigestAlgorithm string
	DigestHex       string
}

// Formula is the package descriptor this installer orchestrates the
// install of. Formula loading/parsing lives outside this module; this
// interface is the minimal surface the installer core reads.
type Formula interface {
	// FullName identifies the formula, e.g. "homebrew/core/sqlite".
	FullName() string
	// Version is the version string of the candidate being installed.
	Version() string

	Deps() []Dependency
	Requirements() []Requirement
	DeclaredOptions() []string

	// Conflicts lists the full names of formulae this formula cannot
	// coexist with when linked (§4.3 check_conflicts).
	Conflicts() []string

	// Bottle returns the formula's bottle descriptor and whether one is
	// declared at all.
	Bottle() (Bottle, bool)

	// PlistContent returns the plist/service-definition content to
	// install, and whether one is declared (§4.8).
	PlistContent() (string, bool)

	KegOnly() bool
	HasPostInstall() bool
	// LocallyModified reports whether the on-disk formula file differs
	// from its tap's recorded content (§4.1 negative gate).
	LocallyModified() bool

	// RequiresUniversalDeps reports whether this formula forces the
	// "universal" option onto its non-build deps regardless of whether
	// the root requested it (§4.2 universal-option propagation).
	RequiresUniversalDeps() bool

	// Satisfied reports whether this formula is already installed in a
	// way that satisfies dependents under the given inherited options,
	// so dependency expansion can skip reinstalling it (§4.2).
	Satisfied(inherited option.Options) bool

	// PourBottlePermitted is the formula-level override the bottle
	// eligibility oracle consults (§4.1): some formulae refuse to be
	// poured from a bottle under any circumstance (e.g. they require a
	// local compiler probe at install time).
	PourBottlePermitted() bool

	// Cellar is the root directory housing all of this formula's kegs
	// (HOMEBREW_CELLAR, §6).
	Cellar() string
	// Prefix is the shared filesystem root kegs are linked into
	// (HOMEBREW_PREFIX, §6).
	Prefix() string

	// Tap identifies the formula's source tap, recorded into the tab on
	// install/pour (§3 "Tab").
	Tap() string
	// FormulaPath is the on-disk recipe path passed to the build child
	// (§4.6 argv).
	FormulaPath() string
	// EnvIsStandard reports whether this formula's build wants the
	// standard build environment, one of the two conditions §4.6 uses to
	// derive an implicit --env=std.
	EnvIsStandard() bool
	// Head/Devel report which non-stable channel, if any, is requested
	// for this install (§3 "head?/devel? channel selectors").
	Head() bool
	Devel() bool
	// DeprecatedOptions maps a deprecated option name to its replacement
	// (empty string if the option was simply removed), consulted by the
	// installer to warn about options still in use (§4.4 step 6).
	DeprecatedOptions() map[string]string
}

// Keg derives the filesystem layout of one installed version of a formula,
// per spec.md §3/§6. Keg is a pure path-deriving value; the actual
// symlink/relocation mechanics (Keg::link, unlink, optlink) are out of
// scope and live behind the Linker interface in pkg/installer.
type Keg struct {
	Cellar  string // HOMEBREW_CELLAR
	Prefix  string // HOMEBREW_PREFIX
	Name    string // formula full name
	Version string
}

// Rack is the parent directory of all of this formula's versions:
// Cellar/<name>.
func (k Keg) Rack() string {
	return filepath.Join(k.Cellar, k.Name)
}

// KegPrefix is this version's own directory: Cellar/<name>/<version>.
func (k Keg) KegPrefix() string {
	return filepath.Join(k.Rack(), k.Version)
}

// OptPrefix is the stable alias symlink for the active keg: opt/<name>.
func (k Keg) OptPrefix() string {
	return filepath.Join(k.Prefix, "opt", k.Name)
}

// LinkedKeg is the sentinel symlink marking the active version under the
// formula's rack.
func (k Keg) LinkedKeg() string {
	return filepath.Join(k.Rack(), ".linked")
}

// BottlePrefix is the staging subtree inside a freshly extracted bottle,
// kept apart from the keg's own tree until the pour driver relocates
// etc/var content out of it (§4.7).
func (k Keg) BottlePrefix() string {
	return filepath.Join(k.KegPrefix(), ".bottle")
}

// Logs is this formula's log directory: Logs/<name>.
func (k Keg) Logs() string {
	return filepath.Join(k.Prefix, "Logs", k.Name)
}

// Var is the shared var tree: HOMEBREW_PREFIX/var.
func (k Keg) Var() string {
	return filepath.Join(k.Prefix, "var")
}

// Etc is the shared etc tree: HOMEBREW_PREFIX/etc.
func (k Keg) Etc() string {
	return filepath.Join(k.Prefix, "etc")
}

// TabPath is the sidecar metadata file recorded inside a keg (§6).
func (k Keg) TabPath() string {
	return filepath.Join(k.KegPrefix(), "INSTALL_RECEIPT.json")
}
