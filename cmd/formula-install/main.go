// Command formula-install is the CLI entry point wiring pkg/installer to a
// concrete (filesystem-backed, JSON-recipe) set of the external
// collaborators spec.md §1 leaves out of scope: formula loading, keg
// discovery, and link mechanics. Grounded on the teacher's cmd/ layout
// (a thin flag-parsing wrapper around its own engine) and its use of
// spf13/pflag for mode-flag parsing.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/vsbuffalo/cellar/pkg/bottle"
	"github.com/vsbuffalo/cellar/pkg/buildproc"
	"github.com/vsbuffalo/cellar/pkg/checksum"
	"github.com/vsbuffalo/cellar/pkg/config"
	"github.com/vsbuffalo/cellar/pkg/depgraph"
	"github.com/vsbuffalo/cellar/pkg/formula"
	"github.com/vsbuffalo/cellar/pkg/installer"
	"github.com/vsbuffalo/cellar/pkg/option"
)

func main() {
	var (
		prefix          = pflag.String("prefix", "/usr/local", "shared prefix kegs are linked into")
		cellar          = pflag.String("cellar", "", "cellar directory (default: <prefix>/Cellar)")
		configPath      = pflag.String("config", "", "path to a TOML config file")
		formulaDir      = pflag.String("formula-dir", "./formulae", "directory of JSON formula recipes")
		buildFromSource = pflag.Bool("build-from-source", false, "never pour a bottle")
		buildBottle     = pflag.Bool("build-bottle", false, "build a relocatable bottle from this install")
		bottleArch      = pflag.String("bottle-arch", "", "CPU microarchitecture override for --build-bottle")
		forceBottle     = pflag.Bool("force-bottle", false, "install from a bottle even if one would not normally be poured")
		force           = pflag.Bool("force", false, "install despite a declared conflict")
		ignoreDeps      = pflag.Bool("ignore-dependencies", false, "skip dependency computation and installation")
		onlyDeps        = pflag.Bool("only-dependencies", false, "install dependencies, then stop")
		interactive     = pflag.Bool("interactive", false, "drop into an interactive shell instead of building unattended")
		git             = pflag.Bool("git", false, "create a Git repository in the keg after installing")
		verbose         = pflag.Bool("verbose", false, "verbose logging")
		debug           = pflag.Bool("debug", false, "debug logging")
		quieter         = pflag.Bool("quieter", false, "suppress the completion summary")
		developer       = pflag.Bool("developer", false, "re-raise a failed bottle pour instead of falling back to source")
		withOpts        = pflag.StringArray("with", nil, "enable an optional build option (repeatable)")
	)
	pflag.Parse()

	if pflag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: formula-install [flags] <formula>")
		os.Exit(2)
	}
	name := pflag.Arg(0)

	log := logrus.New()
	switch {
	case *debug:
		log.SetLevel(logrus.DebugLevel)
	case *verbose:
		log.SetLevel(logrus.InfoLevel)
	default:
		log.SetLevel(logrus.WarnLevel)
	}

	cfg, err := config.Load(*configPath, *prefix)
	if err != nil {
		log.WithError(err).Fatal("loading config")
	}
	if *cellar != "" {
		cfg.Cellar = *cellar
	}

	loader := &fsLoader{Dir: *formulaDir, CellarDir: cfg.Cellar, PrefixDir: cfg.Prefix}
	kegFinder := &fsKegFinder{Cellar: cfg.Cellar, Prefix: cfg.Prefix}
	tabStore := installer.NewDefaultTabStore(kegFinder)

	target, err := loader.Load(name)
	if err != nil {
		log.WithError(err).Fatalf("loading formula %s", name)
	}

	gates := bottle.Gates{
		BuildFromSource: *buildFromSource,
		BuildBottle:     *buildBottle,
		Interactive:     *interactive,
		ForceBottle:     *forceBottle,
	}
	oracle := bottle.NewOracle(cfg.Cellar, gates, log)
	expander := depgraph.NewExpander(loader, oracle, tabStore)

	verify := checksum.Verifier{}
	pourer := &bottle.Pourer{
		Fetcher: &fsFetcher{},
		Verifier: func(path, algo, wantHex string) error {
			if algo == "" {
				return nil
			}
			return verify.Verify(path, checksum.Expected{Algorithm: algo, Hex: wantHex})
		},
		Compiler: alwaysCompatible{},
		Log:      log,
	}

	buildDriver := &buildproc.Driver{
		Interpreter:      cfg.Build.Interpreter,
		LoadPath:         cfg.Build.LoadPath,
		BuildScript:      cfg.Build.Script,
		SandboxAvailable: cfg.Sandbox.Available,
	}

	kegFor := func(f formula.Formula) formula.Keg {
		return formula.Keg{Cellar: cfg.Cellar, Prefix: cfg.Prefix, Name: f.FullName(), Version: f.Version()}
	}

	flags := installer.Flags{
		BuildFromSource: *buildFromSource,
		BuildBottle:     *buildBottle,
		BottleArch:      *bottleArch,
		ForceBottle:     *forceBottle,
		Force:           *force,
		IgnoreDeps:      *ignoreDeps,
		OnlyDeps:        *onlyDeps,
		Interactive:     *interactive,
		Git:             *git,
		Verbose:         *verbose,
		Debug:           *debug,
		Quieter:         *quieter,
		DeveloperMode:   *developer,
	}

	requested := option.NewOptions(*withOpts...)

	inst := installer.New(target, requested, flags, kegFor, filepath.Join(cfg.Cellar, ".locks"))
	inst.Loader = loader
	inst.Oracle = oracle
	inst.Expander = expander
	inst.Pourer = pourer
	inst.Build = buildDriver
	inst.Linker = &fsLinker{}
	inst.Tabs = tabStore
	inst.KegFinder = kegFinder
	inst.Cleaner = noopCleaner{}
	inst.Plist = noopPlist{}
	inst.PostInstall = noopPostInstall{}
	inst.Log = log
	inst.Badge = cfg.InstallBadge
	inst.NoEmoji = cfg.NoEmoji

	res, err := inst.Install(context.Background())
	for _, w := range res.Warnings {
		log.Warn(w)
	}
	if err != nil {
		log.WithError(err).Fatalf("installing %s", name)
	}
}

// recipe is the on-disk shape of a formula under --formula-dir: a plain
// JSON projection of the formula.Formula surface, standing in for the tap
// reader spec.md §1 leaves out of scope.
type recipe struct {
	FullName          string               `json:"full_name"`
	Version           string               `json:"version"`
	Deps              []formula.Dependency `json:"deps"`
	DeclaredOptions   []string             `json:"declared_options"`
	Conflicts         []string             `json:"conflicts"`
	Bottle            *formula.Bottle      `json:"bottle"`
	PlistContent      string               `json:"plist_content"`
	KegOnly           bool                 `json:"keg_only"`
	PostInstall       bool                 `json:"post_install"`
	LocallyModified   bool                 `json:"locally_modified"`
	RequiresUniversal bool                 `json:"requires_universal"`
	AlreadySatisfied  bool                 `json:"already_satisfied"`
	PourPermitted     bool                 `json:"pour_permitted"`
	Tap               string               `json:"tap"`
	Path              string               `json:"path"`
	EnvStd            bool                 `json:"env_std"`
	HeadFlag          bool                 `json:"head"`
	DevelFlag         bool                 `json:"devel"`
	Deprecated        map[string]string    `json:"deprecated_options"`
}

type fsFormula struct {
	rec            recipe
	cellar, prefix string
}

func (f *fsFormula) FullName() string                    { return f.rec.FullName }
func (f *fsFormula) Version() string                     { return f.rec.Version }
func (f *fsFormula) Deps() []formula.Dependency          { return f.rec.Deps }
func (f *fsFormula) Requirements() []formula.Requirement { return nil }
func (f *fsFormula) DeclaredOptions() []string           { return f.rec.DeclaredOptions }
func (f *fsFormula) Conflicts() []string                 { return f.rec.Conflicts }
func (f *fsFormula) PlistContent() (string, bool) {
	return f.rec.PlistContent, f.rec.PlistContent != ""
}
func (f *fsFormula) KegOnly() bool                        { return f.rec.KegOnly }
func (f *fsFormula) HasPostInstall() bool                 { return f.rec.PostInstall }
func (f *fsFormula) LocallyModified() bool                { return f.rec.LocallyModified }
func (f *fsFormula) RequiresUniversalDeps() bool          { return f.rec.RequiresUniversal }
func (f *fsFormula) Satisfied(option.Options) bool        { return f.rec.AlreadySatisfied }
func (f *fsFormula) PourBottlePermitted() bool            { return f.rec.PourPermitted }
func (f *fsFormula) Cellar() string                       { return f.cellar }
func (f *fsFormula) Prefix() string                       { return f.prefix }
func (f *fsFormula) Tap() string                          { return f.rec.Tap }
func (f *fsFormula) FormulaPath() string                  { return f.rec.Path }
func (f *fsFormula) EnvIsStandard() bool                  { return f.rec.EnvStd }
func (f *fsFormula) Head() bool                           { return f.rec.HeadFlag }
func (f *fsFormula) Devel() bool                          { return f.rec.DevelFlag }
func (f *fsFormula) DeprecatedOptions() map[string]string { return f.rec.Deprecated }

func (f *fsFormula) Bottle() (formula.Bottle, bool) {
	if f.rec.Bottle == nil {
		return formula.Bottle{}, false
	}
	return *f.rec.Bottle, true
}

// fsLoader reads recipes from a flat directory, one "<name>.json" file per
// formula.
type fsLoader struct {
	Dir                  string
	CellarDir, PrefixDir string
}

func (l *fsLoader) Load(name string) (formula.Formula, error) {
	path := filepath.Join(l.Dir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading formula %s: %w", name, err)
	}
	var rec recipe
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing formula %s: %w", name, err)
	}
	if rec.FullName == "" {
		rec.FullName = name
	}
	if rec.Path == "" {
		rec.Path = path
	}
	return &fsFormula{rec: rec, cellar: l.CellarDir, prefix: l.PrefixDir}, nil
}

// fsKegFinder discovers installed/linked state by scanning the cellar
// tree directly, the default (filesystem-backed) implementation of the
// out-of-scope KegFinder collaborator.
type fsKegFinder struct {
	Cellar, Prefix string
}

func (k *fsKegFinder) InstalledKeg(fullName string) (formula.Keg, bool) {
	rack := filepath.Join(k.Cellar, fullName)
	entries, err := os.ReadDir(rack)
	if err != nil {
		return formula.Keg{}, false
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	if len(versions) == 0 {
		return formula.Keg{}, false
	}
	sort.Strings(versions)
	return formula.Keg{Cellar: k.Cellar, Prefix: k.Prefix, Name: fullName, Version: versions[len(versions)-1]}, true
}

func (k *fsKegFinder) IsLinked(fullName string) (string, bool) {
	linked := filepath.Join(k.Cellar, fullName, ".linked")
	target, err := os.Readlink(linked)
	if err != nil {
		return "", false
	}
	return target, true
}

// fsLinker implements keg linking with plain symlinks: every file under a
// keg's top-level subdirectories (bin, lib, share, ...) is symlinked into
// the matching subdirectory of the shared prefix, and a ".linked" sentinel
// records the active version.
type fsLinker struct{}

func (l *fsLinker) Link(keg formula.Keg) error {
	// Re-run in dry-run overwrite mode first, so a conflict is caught
	// before anything is written (§4.8 step 2).
	conflicts, err := l.LinkDryRunOverwrite(keg)
	if err != nil {
		return &installer.LinkError{Err: err}
	}
	if len(conflicts) > 0 {
		return &installer.LinkConflictError{Files: conflicts}
	}

	if _, err := l.walk(keg, true); err != nil {
		return &installer.LinkError{Err: err}
	}
	_ = os.Remove(keg.LinkedKeg())
	if err := os.Symlink(keg.Version, keg.LinkedKeg()); err != nil {
		return &installer.LinkError{Err: err}
	}
	return nil
}

func (l *fsLinker) LinkDryRunOverwrite(keg formula.Keg) ([]string, error) {
	return l.walk(keg, false)
}

func (l *fsLinker) walk(keg formula.Keg, write bool) ([]string, error) {
	top, err := os.ReadDir(keg.KegPrefix())
	if err != nil {
		return nil, err
	}
	var conflicts []string
	for _, t := range top {
		if !t.IsDir() || t.Name() == ".bottle" {
			continue
		}
		srcDir := filepath.Join(keg.KegPrefix(), t.Name())
		subs, err := os.ReadDir(srcDir)
		if err != nil {
			continue
		}
		for _, s := range subs {
			src := filepath.Join(srcDir, s.Name())
			dst := filepath.Join(keg.Prefix, t.Name(), s.Name())
			if target, rerr := os.Readlink(dst); rerr == nil {
				if target == src {
					continue
				}
				conflicts = append(conflicts, dst)
				continue
			}
			if _, serr := os.Lstat(dst); serr == nil {
				conflicts = append(conflicts, dst)
				continue
			}
			if !write {
				continue
			}
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return conflicts, err
			}
			if err := os.Symlink(src, dst); err != nil {
				return conflicts, err
			}
		}
	}
	return conflicts, nil
}

func (l *fsLinker) Unlink(keg formula.Keg) error {
	top, err := os.ReadDir(keg.KegPrefix())
	if err != nil {
		return nil
	}
	for _, t := range top {
		if !t.IsDir() || t.Name() == ".bottle" {
			continue
		}
		srcDir := filepath.Join(keg.KegPrefix(), t.Name())
		subs, err := os.ReadDir(srcDir)
		if err != nil {
			continue
		}
		for _, s := range subs {
			dst := filepath.Join(keg.Prefix, t.Name(), s.Name())
			if target, rerr := os.Readlink(dst); rerr == nil && target == filepath.Join(srcDir, s.Name()) {
				_ = os.Remove(dst)
			}
		}
	}
	if v, err := os.Readlink(keg.LinkedKeg()); err == nil && v == keg.Version {
		_ = os.Remove(keg.LinkedKeg())
	}
	return nil
}

func (l *fsLinker) Optlink(keg formula.Keg) error {
	dst := keg.OptPrefix()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &installer.LinkError{Err: err}
	}
	_ = os.Remove(dst)
	if err := os.Symlink(keg.KegPrefix(), dst); err != nil {
		return &installer.LinkError{Err: err}
	}
	return nil
}

// FixInstallNames is a no-op here: rewriting Mach-O install names is an
// external tool invocation (install_name_tool) this demo wiring does not
// shell out to.
func (l *fsLinker) FixInstallNames(formula.Keg, bool) error { return nil }

// fsFetcher only supports bottles that already carry a local archive
// path; remote bottle download is an out-of-scope external collaborator
// (spec.md §1) this default wiring does not implement.
type fsFetcher struct{}

func (fsFetcher) Fetch(f formula.Formula, b formula.Bottle) (string, error) {
	if b.LocalPath != "" {
		return b.LocalPath, nil
	}
	return "", fmt.Errorf("fsFetcher: no local bottle path for %s and no downloader configured", f.FullName())
}

type alwaysCompatible struct{}

func (alwaysCompatible) Compatible(string, []string) bool { return true }

type noopCleaner struct{}

func (noopCleaner) Clean(formula.Formula, formula.Keg) error { return nil }

type noopPlist struct{}

func (noopPlist) Install(string, formula.Keg) error { return nil }

type noopPostInstall struct{}

func (noopPostInstall) Run(formula.Formula) error { return nil }
