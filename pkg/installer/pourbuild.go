package installer

import (
	"context"
	"path/filepath"

	"github.com/vsbuffalo/cellar/pkg/buildproc"
	"github.com/vsbuffalo/cellar/pkg/option"
	"github.com/vsbuffalo/cellar/pkg/tab"
)

// pour implements §4.4 step 8's "attempt pour": drive pkg/bottle.Pourer
// against the target, recursive dependency compilers gathered from
// already-installed deps' tabs.
func (in *Installer) pour() error {
	keg := in.kegFor(in.Target)
	b, _ := in.Target.Bottle()

	_, err := in.Pourer.Pour(in.Target, keg, b.DigestAlgorithm, b.DigestHex, in.recursiveDepCompilers(), in.Target.Tap())
	return err
}

// recursiveDepCompilers gathers the compiler recorded in each direct
// dependency's tab, the input the bottle pour driver's ABI-compatibility
// check consults (§4.7 step 6).
func (in *Installer) recursiveDepCompilers() []string {
	var out []string
	for _, dep := range in.Target.Deps() {
		keg, ok := in.KegFinder.InstalledKeg(dep.Name)
		if !ok {
			continue
		}
		t, ok, err := tab.Load(keg.TabPath())
		if err != nil || !ok || t.Compiler == "" {
			continue
		}
		out = append(out, t.Compiler)
	}
	return out
}

// build implements §4.4 step 10's "run build, then clean": constructs the
// build child's flags from the installer's own mode flags and invokes
// pkg/buildproc.Driver.
func (in *Installer) build(ctx context.Context) error {
	keg := in.kegFor(in.Target)

	flags := buildproc.Flags{
		IgnoreDependencies: in.Flags.IgnoreDeps,
		BuildBottle:        in.Flags.BuildBottle,
		BottleArch:         in.Flags.BottleArch,
		Git:                in.Flags.Git,
		Interactive:        in.Flags.Interactive,
		Verbose:            in.Flags.Verbose,
		Debug:              in.Flags.Debug,
		HEAD:               in.Target.Head(),
		Devel:              in.Target.Devel(),
		UserOptions:        optionTokens(in.RequestedOptions),
	}

	logPath := filepath.Join(keg.Logs(), "build.log")
	_, err := in.Build.Run(ctx, in.Target, in.Target.FormulaPath(), keg, flags, in.stdEnv(), nil, logPath)
	return err
}

// stdEnv reports whether the build child should fall back to an implicit
// --env=std (§4.6): the formula requests the standard environment, or any
// of its declared deps is scons (scons-built formulae always need the
// plain environment).
func (in *Installer) stdEnv() bool {
	if in.Target.EnvIsStandard() {
		return true
	}
	for _, dep := range in.Target.Deps() {
		if dep.Name == "scons" {
			return true
		}
	}
	return false
}

// optionTokens renders an Options set as "name" / "name=value" command
// line tokens, in insertion order.
func optionTokens(opts option.Options) []string {
	slice := opts.Slice()
	out := make([]string, len(slice))
	for i, o := range slice {
		out[i] = o.String()
	}
	return out
}
