package installer

import (
	"fmt"

	"github.com/vsbuffalo/cellar/pkg/formula"
)

// prelude implements the pre-flight gate of spec.md §4.3: load every
// transitive dependency formula (retrying once through AutoTap on a
// tap-availability failure), acquire locks across the formula and its
// transitive closure in a stable order, refuse to proceed if the formula
// is already attempted, and verify that installed, non-keg-only
// dependencies are linked.
func (in *Installer) prelude() error {
	var names []string
	if !in.Flags.IgnoreDeps {
		var err error
		names, err = in.preloadTransitiveDeps(in.Target, map[string]bool{})
		if err != nil {
			return err
		}
	}

	if !in.HoldLocks {
		if err := in.ctx.Locks.AcquireAll(append([]string{in.Target.FullName()}, names...)); err != nil {
			return err
		}
		in.HoldLocks = true
		in.ownsLocks = true
	}

	if in.ctx.Attempted(in.Target.FullName()) {
		return &AlreadyAttemptedError{Formula: in.Target.FullName()}
	}

	if !in.Flags.IgnoreDeps {
		if unlinked := in.unlinkedInstalledDeps(); len(unlinked) > 0 {
			return &UnlinkedDependenciesError{Names: unlinked}
		}
	}

	return nil
}

// preloadTransitiveDeps walks f's declared dependency edges recursively,
// loading each one through in.Loader and recording its full name, so the
// caller can lock the whole closure up front. A load failure triggers a
// single auto-tap-and-retry (§4.3 "load every transitive dependency
// formula") before surfacing as a TapFormulaUnavailableError.
func (in *Installer) preloadTransitiveDeps(f formula.Formula, seen map[string]bool) ([]string, error) {
	var names []string
	for _, dep := range f.Deps() {
		if seen[dep.Name] {
			continue
		}
		seen[dep.Name] = true
		names = append(names, dep.Name)

		df, err := in.loadWithAutoTapRetry(dep.Name, f.FullName())
		if err != nil {
			return nil, err
		}

		sub, err := in.preloadTransitiveDeps(df, seen)
		if err != nil {
			return nil, err
		}
		names = append(names, sub...)
	}
	return names, nil
}

func (in *Installer) loadWithAutoTapRetry(name, dependent string) (formula.Formula, error) {
	df, err := in.Loader.Load(name)
	if err == nil {
		return df, nil
	}
	if in.AutoTap == nil {
		return nil, &FormulaUnavailableError{Name: name, Dependent: dependent, Err: err}
	}
	if tapErr := in.AutoTap.Tap(name); tapErr != nil {
		return nil, &TapFormulaUnavailableError{Name: name, Dependent: dependent, Err: err}
	}
	df, err = in.Loader.Load(name)
	if err != nil {
		return nil, &TapFormulaUnavailableError{Name: name, Dependent: dependent, Err: err}
	}
	return df, nil
}

// checkConflicts implements §4.3 check_conflicts: abort if any formula
// this formula declares a conflict with is currently linked, unless Force
// is set.
func (in *Installer) checkConflicts() error {
	if in.Flags.Force {
		return nil
	}
	var linked []string
	for _, name := range in.Target.Conflicts() {
		if _, ok := in.KegFinder.IsLinked(name); ok {
			linked = append(linked, name)
		}
	}
	if len(linked) > 0 {
		return &ConflictError{Formula: in.Target.FullName(), With: linked}
	}
	return nil
}

// unlinkedInstalledDeps returns the full names of this formula's direct
// dependencies that are installed but not linked and not keg-only (§4.3
// step 4).
func (in *Installer) unlinkedInstalledDeps() []string {
	var unlinked []string
	for _, dep := range in.Target.Deps() {
		if _, installed := in.KegFinder.InstalledKeg(dep.Name); !installed {
			continue
		}
		if _, linked := in.KegFinder.IsLinked(dep.Name); linked {
			continue
		}
		df, err := in.Loader.Load(dep.Name)
		if err == nil && df.KegOnly() {
			continue
		}
		unlinked = append(unlinked, dep.Name)
	}
	return unlinked
}

// warnDeprecatedOptions records a warning for every requested option the
// target formula marks deprecated (§4.4 step 6).
func (in *Installer) warnDeprecatedOptions(res *Result) {
	deprecated := in.Target.DeprecatedOptions()
	if len(deprecated) == 0 {
		return
	}
	for _, opt := range in.RequestedOptions.Slice() {
		replacement, ok := deprecated[opt.Name]
		if !ok {
			continue
		}
		msg := fmt.Sprintf("option %q is deprecated", opt.Name)
		if replacement != "" {
			msg += fmt.Sprintf("; use %q instead", replacement)
		}
		res.Warnings = append(res.Warnings, msg)
		if in.Log != nil {
			in.Log.WithField("formula", in.Target.FullName()).Warn(msg)
		}
	}
}
