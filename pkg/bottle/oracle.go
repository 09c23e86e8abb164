// Package bottle implements the bottle-eligibility oracle (spec.md §4.1)
// and the bottle pour driver (§4.7).
//
// Grounded on the teacher's pkg/dbapi/bintree.go (binary package tree:
// local-path-or-fetch selection, extraction into the cellar, aux-cache/tab
// rewrite after staging) and pkg/binrepo/binrepo.go (remote binhost
// descriptor, the closest analogue to a bottle descriptor).
package bottle

import (
	"github.com/sirupsen/logrus"

	"github.com/vsbuffalo/cellar/pkg/formula"
	"github.com/vsbuffalo/cellar/pkg/option"
)

// Gates carries the per-install mode flags the eligibility oracle's
// negative gates read (spec.md §3 "Installer state", §4.1 "Negative
// gates").
type Gates struct {
	PourFailed      bool
	BuildFromSource bool
	BuildBottle     bool
	Interactive     bool
	ForceBottle     bool
}

// Hook lets an external collaborator claim the pour-bottle decision
// outright (spec.md §4.1 "an external hook claims a bottle"). claimed
// reports whether the hook has an opinion at all; when false, result is
// ignored and the oracle falls through to its own logic.
type Hook func(f formula.Formula) (result bool, claimed bool)

// Oracle decides, per formula, whether a prebuilt bottle will be used
// rather than a source build (spec.md §4.1).
type Oracle struct {
	LocalCellar string
	Gates       Gates
	Hook        Hook
	Log         *logrus.Logger
}

// NewOracle constructs an Oracle for one install, bound to the local
// cellar layout and the installer's mode flags.
func NewOracle(localCellar string, gates Gates, log *logrus.Logger) *Oracle {
	return &Oracle{LocalCellar: localCellar, Gates: gates, Log: log}
}

// PourBottle implements pour_bottle?(warn) (§4.1).
func (o *Oracle) PourBottle(f formula.Formula, build option.BuildOptions, warn bool) bool {
	if o.Hook != nil {
		if result, claimed := o.Hook(f); claimed {
			return result
		}
	}

	b, hasBottle := f.Bottle()

	if o.Gates.ForceBottle && hasBottle {
		return true
	}

	if o.Gates.PourFailed || o.Gates.BuildFromSource || o.Gates.BuildBottle || o.Gates.Interactive {
		return false
	}
	if !build.Empty() {
		return false
	}
	if f.LocallyModified() && b.LocalPath == "" {
		return false
	}
	if !hasBottle {
		return false
	}
	if !f.PourBottlePermitted() {
		return false
	}

	if !cellarCompatible(b.Cellar, o.LocalCellar) {
		if warn && o.Log != nil {
			o.Log.WithField("formula", f.FullName()).Warn("Building source rather than pouring a bottle: cellar path mismatch")
		}
		return false
	}

	return true
}

// WillPour is pour_bottle?(warn=false) for the install's own target,
// exactly as §4.1's rationale describes ("consulted during dependency
// expansion before any install occurs"). InstallBottleFor below is what
// pkg/depgraph actually calls during expansion, for both the target and
// its dependents.
func (o *Oracle) WillPour(f formula.Formula, build option.BuildOptions) bool {
	return o.PourBottle(f, build, false)
}

// InstallBottleFor implements install_bottle_for?(dep, build) (§4.1): for
// the install's own target formula it delegates to PourBottle; for a
// transitive dependency it asks the narrower question of whether that
// dep specifically will come from a bottle.
func (o *Oracle) InstallBottleFor(dep formula.Formula, build option.BuildOptions, isTarget bool) bool {
	if isTarget {
		return o.PourBottle(dep, build, false)
	}

	b, hasBottle := dep.Bottle()
	if !hasBottle {
		return false
	}
	if !dep.PourBottlePermitted() {
		return false
	}
	if !build.Empty() {
		return false
	}
	return cellarCompatible(b.Cellar, o.LocalCellar)
}

// cellarCompatible reports whether a bottle built against bottleCellar can
// be poured into localCellar without relocation it wasn't built to
// support. ":any"/":all" are Homebrew-style relocatable-bottle markers.
func cellarCompatible(bottleCellar, localCellar string) bool {
	if bottleCellar == "" || bottleCellar == ":any" || bottleCellar == ":all" {
		return true
	}
	return bottleCellar == localCellar
}
