package installer

import (
	"context"
	"fmt"
	"os"

	"github.com/vsbuffalo/cellar/pkg/depgraph"
	"github.com/vsbuffalo/cellar/pkg/formula"
	"github.com/vsbuffalo/cellar/pkg/option"
)

// computeAndInstallDependencies implements §4.4 step 3: expand
// requirements and dependencies via pkg/depgraph, fail fast on any fatal
// unsatisfied requirement, then install the resulting plan in order
// (leaves first). It returns the materialized-dependency map so a
// post-pour-failure recompute (§4.4 step 10) can reuse it.
func (in *Installer) computeAndInstallDependencies(ctx context.Context) (map[string][]formula.Dependency, error) {
	buildFor := func(f formula.Formula) option.BuildOptions {
		if f.FullName() == in.Target.FullName() {
			return in.effectiveBuild()
		}
		return option.NewBuildOptions(option.NewOptions(), option.NewOptions(f.DeclaredOptions()...))
	}

	reqResult, err := in.Expander.ExpandRequirements(in.Target, buildFor, in.Flags.BuildBottle)
	if err != nil {
		return nil, err
	}

	if fatal := fatalUnsatisfied(reqResult.Unsatisfied); len(fatal) > 0 {
		return nil, &UnsatisfiedRequirementsError{Requirements: fatal}
	}
	for dependent, reqs := range reqResult.Unsatisfied {
		for _, req := range reqs {
			if in.Log != nil {
				in.Log.WithField("formula", dependent).Warn("unsatisfied, non-fatal requirement: " + req.Name())
			}
		}
	}

	plan, err := in.Expander.ExpandDependencies(in.Target, in.RequestedOptions, reqResult.Materialized, in.Flags.BuildBottle)
	if err != nil {
		return nil, err
	}

	for _, rd := range plan {
		if err := in.installDependency(ctx, rd); err != nil {
			return reqResult.Materialized, err
		}
	}

	return reqResult.Materialized, nil
}

func fatalUnsatisfied(unsatisfied map[string][]formula.Requirement) map[string][]formula.Requirement {
	out := map[string][]formula.Requirement{}
	for dependent, reqs := range unsatisfied {
		for _, req := range reqs {
			if req.Fatal() {
				out[dependent] = append(out[dependent], req)
			}
		}
	}
	return out
}

// installDependency implements §4.5: unlink the dependency's currently
// linked keg if any, stash its currently installed keg (rename aside) if
// any, run a child installer against it, and either discard the stash on
// success or restore the stashed keg and relink under interrupt masking on
// failure.
func (in *Installer) installDependency(ctx context.Context, rd depgraph.ResolvedDep) error {
	df := rd.Formula

	// The keg to unlink (and relink on failure) is the version currently
	// linked, which may differ from the version about to be installed.
	wasLinked := false
	var linkedKeg formula.Keg
	if linkedVersion, linked := in.KegFinder.IsLinked(df.FullName()); linked {
		wasLinked = true
		linkedKeg = in.kegFor(df)
		linkedKeg.Version = linkedVersion
		if err := in.Linker.Unlink(linkedKeg); err != nil {
			return fmt.Errorf("installer: unlinking %s before upgrade: %w", df.FullName(), err)
		}
	}

	installedKeg, wasInstalled := in.KegFinder.InstalledKeg(df.FullName())
	stashed := false
	var stashPath string
	if wasInstalled {
		stashPath = installedKeg.KegPrefix() + ".tmp"
		if err := os.Rename(installedKeg.KegPrefix(), stashPath); err != nil {
			return fmt.Errorf("installer: stashing %s: %w", df.FullName(), err)
		}
		stashed = true
	}

	child := in.childFor(df, rd.InheritedOptions)
	_, err := child.Install(ctx)

	if err != nil {
		withSignalsMasked(func() {
			if stashed {
				if _, statErr := os.Stat(installedKeg.KegPrefix()); os.IsNotExist(statErr) {
					_ = os.Rename(stashPath, installedKeg.KegPrefix())
				}
			}
			if wasLinked {
				_ = in.Linker.Link(linkedKeg)
			}
		})
		return fmt.Errorf("installer: installing dependency %s: %w", df.FullName(), err)
	}

	if stashed {
		withSignalsMasked(func() {
			_ = os.RemoveAll(stashPath)
		})
	}
	return nil
}

// childFor constructs the nested installer §4.5 runs against a
// dependency: ignore_deps is forced true (the parent's expansion already
// computed the whole closure), options are the tab's previously recorded
// used_options unioned with the options this dependency inherited from
// its dependent's universal-option propagation, and the shared Context
// (attempt registry + lock manager) is passed through rather than
// recreated.
func (in *Installer) childFor(df formula.Formula, inherited option.Options) *Installer {
	tabOpts, _ := in.Tabs.UsedOptions(df.FullName())
	effective := tabOpts.Union(inherited)

	return &Installer{
		Target:           df,
		RequestedOptions: effective,
		Flags: Flags{
			IgnoreDeps:      true,
			BuildFromSource: in.Flags.BuildFromSource,
			Verbose:         in.Flags.Verbose,
			Debug:           in.Flags.Debug,
			DeveloperMode:   in.Flags.DeveloperMode,
			Quieter:         in.Flags.Quieter,
		},
		State: StateNew,

		Loader:      in.Loader,
		AutoTap:     in.AutoTap,
		Oracle:      in.Oracle,
		Expander:    in.Expander,
		Pourer:      in.Pourer,
		Build:       in.Build,
		Linker:      in.Linker,
		Tabs:        in.Tabs,
		KegFinder:   in.KegFinder,
		Cleaner:     in.Cleaner,
		Plist:       in.Plist,
		PostInstall: in.PostInstall,
		Log:         in.Log,
		Badge:       in.Badge,
		NoEmoji:     in.NoEmoji,

		kegFor: in.kegFor,
		ctx:    in.ctx,

		// A non-root dependency installer observes the shared lock
		// manager already owns a lock set and performs no lock work of
		// its own (§5).
		HoldLocks: true,
	}
}
