// Package installer implements the formula installer core of spec.md
// §3-§4: the per-instance Installer, its 12-step Install orchestration,
// the crash-safe dependency installer, and the finisher.
package installer

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vsbuffalo/cellar/pkg/bottle"
	"github.com/vsbuffalo/cellar/pkg/buildproc"
	"github.com/vsbuffalo/cellar/pkg/depgraph"
	"github.com/vsbuffalo/cellar/pkg/formula"
	"github.com/vsbuffalo/cellar/pkg/option"
)

// Flags carries the per-install mode switches of spec.md §3's "Installer
// state (per instance)" (immutable once the Installer starts running).
type Flags struct {
	BuildFromSource bool
	BuildBottle     bool
	BottleArch      string
	ForceBottle     bool
	Force           bool // overrides a conflict abort (§4.3 check_conflicts)
	IgnoreDeps      bool
	OnlyDeps        bool
	Interactive     bool
	Git             bool
	Verbose         bool
	Debug           bool
	Quieter         bool
	// DeveloperMode re-raises a failed bottle pour instead of silently
	// falling back to a source build (§4.4 step 8, §7 PourFailed).
	DeveloperMode bool
}

// Result summarizes one completed (or partially completed) install, the
// information a caller needs after Install returns without inspecting
// Installer's private mutable state.
type Result struct {
	Poured      bool
	Built       bool
	FailureFlag bool
	Warnings    []string
}

// Installer orchestrates the install of exactly one formula. Per spec.md
// §5 "Shared-resource policy", installs within one process run strictly
// sequentially — an Installer is not meant to be driven concurrently from
// multiple goroutines.
type Installer struct {
	// Immutable install parameters.
	Target           formula.Formula
	RequestedOptions option.Options
	Flags            Flags

	// Mutable, per-instance state (§3).
	ShowHeader         bool
	ShowSummaryHeading bool
	PouredBottle       bool
	PourFailed         bool
	StartTime          time.Time
	HoldLocks          bool
	ownsLocks          bool
	EtcVarPreinstall   []string
	State              State

	// Collaborators.
	Loader      Loader
	AutoTap     AutoTapper
	Oracle      *bottle.Oracle
	Expander    *depgraph.Expander
	Pourer      *bottle.Pourer
	Build       *buildproc.Driver
	Linker      Linker
	Tabs        TabStore
	KegFinder   KegFinder
	Cleaner     Cleaner
	Plist       PlistInstaller
	PostInstall PostInstallRunner
	Log         *logrus.Logger

	// Badge/NoEmoji mirror pkg/config.Config's summary presentation
	// fields, threaded through at construction rather than reread from
	// config mid-install.
	Badge   string
	NoEmoji bool

	// kegFor derives the Keg for any formula this installer touches
	// (target, or a dependency during recursion). Threaded through
	// rather than reconstructed per call so root and child installers
	// agree on layout.
	kegFor func(formula.Formula) formula.Keg

	ctx *Context
}

// New constructs a root Installer. lockDir roots the per-process lock
// manager (§5); kegFor derives filesystem layout for any formula this
// install or its dependencies touch.
func New(target formula.Formula, requested option.Options, flags Flags, kegFor func(formula.Formula) formula.Keg, lockDir string) *Installer {
	return &Installer{
		Target:           target,
		RequestedOptions: requested,
		Flags:            flags,
		State:            StateNew,
		kegFor:           kegFor,
		ctx:              NewContext(lockDir),
	}
}

// effectiveBuild resolves the BuildOptions the oracle and build child see
// for the target: requested options merged over its declared set.
func (in *Installer) effectiveBuild() option.BuildOptions {
	return option.NewBuildOptions(in.RequestedOptions, option.NewOptions(in.Target.DeclaredOptions()...))
}

// Install runs the full 12-step sequence of spec.md §4.4.
func (in *Installer) Install(ctx context.Context) (Result, error) {
	var res Result
	in.StartTime = time.Now()

	if err := in.prelude(); err != nil {
		in.State = StateAbortedPrelude
		return res, err
	}
	in.State = StatePrelued

	// 1. Refuse to run if a different version is already linked.
	if linkedVersion, linked := in.KegFinder.IsLinked(in.Target.FullName()); linked && linkedVersion != in.Target.Version() {
		in.State = StateAbortedPrelude
		return res, &AlreadyLinkedDifferentVersionError{
			Formula:          in.Target.FullName(),
			LinkedVersion:    linkedVersion,
			RequestedVersion: in.Target.Version(),
		}
	}

	// 2. check_conflicts.
	if err := in.checkConflicts(); err != nil {
		in.State = StateAbortedPrelude
		return res, err
	}
	in.State = StateConflictOK

	// 3. compute_and_install_dependencies, unless ignore_deps.
	if !in.Flags.IgnoreDeps {
		_, err := in.computeAndInstallDependencies(ctx)
		if err != nil {
			in.State = StateAbortedDeps
			return res, err
		}
	}
	in.State = StateDepsDone

	// 4. only_deps: stop here, having already installed the dependency
	// closure above.
	if in.Flags.OnlyDeps {
		in.ctx.Enter(in.Target.FullName())
		return res, nil
	}

	// 5. bottle-arch override check.
	if in.Flags.BuildBottle && in.Flags.BottleArch != "" {
		if err := validateBottleArch(in.Flags.BottleArch); err != nil {
			return res, err
		}
	}

	// 6. warn about deprecated option flags in effect.
	in.warnDeprecatedOptions(&res)

	// 7. add to the attempt registry.
	if already := in.ctx.Enter(in.Target.FullName()); already {
		return res, &AlreadyAttemptedError{Formula: in.Target.FullName()}
	}

	build := in.effectiveBuild()

	// 8. pour_bottle?(warn=true): attempt a pour, falling back to source
	// unless developer mode demands the failure surface.
	if in.Oracle.PourBottle(in.Target, build, true) {
		in.State = StatePouring
		if err := in.pour(); err != nil {
			if in.Flags.DeveloperMode {
				in.State = StateAbortedPour
				return res, &PourFailedError{Formula: in.Target.FullName(), Err: err}
			}
			in.PourFailed = true
			in.Oracle.Gates.PourFailed = true
			msg := fmt.Sprintf("pouring a bottle for %s failed, building from source instead: %v", in.Target.FullName(), err)
			res.Warnings = append(res.Warnings, msg)
			if in.Log != nil {
				in.Log.WithField("formula", in.Target.FullName()).Warn(msg)
			}
		} else {
			in.PouredBottle = true
			in.State = StatePoured
			res.Poured = true
		}
	}

	// 9. snapshot etc/var before a from-source build, if packaging a
	// bottle from this install.
	if in.Flags.BuildBottle {
		snap, err := snapshotEtcVar(in.kegFor(in.Target))
		if err != nil {
			return res, err
		}
		in.EtcVarPreinstall = snap
	}

	// 10. build from source unless a bottle was poured.
	if !in.PouredBottle {
		if in.Target.LocallyModified() && !in.Flags.BuildFromSource && in.Log != nil {
			in.Log.WithField("formula", in.Target.FullName()).
				Info("formula file has local modifications; pass --build-from-source to silence this")
		}

		if in.PourFailed && !in.Flags.IgnoreDeps {
			if _, err := in.computeAndInstallDependencies(ctx); err != nil {
				in.State = StateAbortedDeps
				return res, err
			}
		}

		in.State = StateBuilding
		if err := in.build(ctx); err != nil {
			in.State = StateAbortedBuild
			return res, &BuildFailedError{Formula: in.Target.FullName(), Err: err}
		}
		in.State = StateBuilt
		res.Built = true

		if in.Cleaner != nil {
			if err := in.Cleaner.Clean(in.Target, in.kegFor(in.Target)); err != nil {
				res.FailureFlag = true
				in.ShowSummaryHeading = true
				res.Warnings = append(res.Warnings, fmt.Sprintf("cleaning %s failed: %v", in.Target.FullName(), err))
			}
		}
		in.State = StateCleaned
	}

	// 11. mirror newly created etc/var files into the bottle staging
	// subtree, if packaging a bottle.
	if in.Flags.BuildBottle {
		if err := mirrorNewEtcVar(in.kegFor(in.Target), in.EtcVarPreinstall); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("mirroring etc/var into bottle staging failed: %v", err))
		}
	}

	// 12. warn if nothing ended up installed.
	if empty, _ := buildproc.DirEmptyOrMissing(in.kegFor(in.Target).KegPrefix()); empty {
		res.Warnings = append(res.Warnings, "nothing was installed to "+in.kegFor(in.Target).KegPrefix())
	}

	in.State = StateFinishing
	if err := in.finish(&res); err != nil {
		return res, err
	}
	in.State = StateDone
	return res, nil
}

// validateBottleArch checks arch against the known CPU-microarchitecture
// names a bottle-arch override may request (§4.4 step 5).
func validateBottleArch(arch string) error {
	known := map[string]bool{
		"armv6": true, "armv8": true, "arm64": true,
		"core2": true, "nehalem": true, "ivybridge": true,
		"haswell": true, "broadwell": true, "skylake": true,
		"x86_64": true,
	}
	if !known[arch] {
		return fmt.Errorf("installer: unknown bottle arch %q", arch)
	}
	return nil
}
