package installer

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/vsbuffalo/cellar/pkg/formula"
)

// finish implements the finisher of §4.8: plist install, keg link,
// install-name rewriting, post-install hook, summary, and scoped lock
// release.
func (in *Installer) finish(res *Result) error {
	keg := in.kegFor(in.Target)

	if content, ok := in.Target.PlistContent(); ok && in.Plist != nil {
		if err := in.Plist.Install(content, keg); err != nil {
			res.FailureFlag = true
			in.ShowSummaryHeading = true
			res.Warnings = append(res.Warnings, fmt.Sprintf("installing plist for %s failed: %v", in.Target.FullName(), err))
		}
	}

	if in.Linker != nil {
		if err := in.linkKeg(keg, res); err != nil {
			return err
		}
	}

	in.fixInstallNames(keg, res)

	if !in.Flags.BuildBottle && in.Target.HasPostInstall() && in.PostInstall != nil {
		if err := in.PostInstall.Run(in.Target); err != nil {
			res.FailureFlag = true
			in.ShowSummaryHeading = true
			res.Warnings = append(res.Warnings, fmt.Sprintf("post-install hook for %s failed: %v", in.Target.FullName(), err))
		}
	}

	in.printSummary(res)

	// Only the installer that actually acquired the shared lock set (the
	// root) releases it; a nested dependency installer shares in.ctx and
	// must not release locks the root still needs (§5).
	if in.ownsLocks {
		if err := in.ctx.Locks.ReleaseAll(); err != nil && in.Log != nil {
			in.Log.WithError(err).Warn("releasing installer locks")
		}
	}

	return nil
}

// linkKeg implements §4.8 step 2: keg-only formulae only get an opt-link;
// otherwise link, recovering non-fatally from a conflict or link error,
// and re-raising (after an interrupt-masked unlink attempt) anything
// else.
func (in *Installer) linkKeg(keg formula.Keg, res *Result) error {
	if in.Target.KegOnly() {
		return in.Linker.Optlink(keg)
	}

	if linkedVersion, linked := in.KegFinder.IsLinked(in.Target.FullName()); linked && linkedVersion == in.Target.Version() {
		return nil
	}

	err := in.Linker.Link(keg)
	if err == nil {
		return nil
	}

	var conflict *LinkConflictError
	if errors.As(err, &conflict) {
		res.FailureFlag = true
		in.ShowSummaryHeading = true
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s not linked; conflicting file(s): %v", in.Target.FullName(), conflict.Files))
		return nil
	}

	var linkErr *LinkError
	if errors.As(err, &linkErr) {
		res.FailureFlag = true
		in.ShowSummaryHeading = true
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s not linked: %v", in.Target.FullName(), err))
		return nil
	}

	withSignalsMasked(func() {
		_ = in.Linker.Unlink(keg)
	})
	return fmt.Errorf("installer: linking %s: %w", in.Target.FullName(), err)
}

// fixInstallNames implements §4.8 step 3: install-name rewriting applies
// on Darwin for every install; a tree poured from a bottle additionally
// relocates the PREFIX_PLACEHOLDER/CELLAR_PLACEHOLDER tokens baked into
// it at bottling time.
func (in *Installer) fixInstallNames(keg formula.Keg, res *Result) {
	if runtime.GOOS != "darwin" || in.Linker == nil {
		return
	}
	if err := in.Linker.FixInstallNames(keg, in.PouredBottle); err != nil {
		res.FailureFlag = true
		in.ShowSummaryHeading = true
		res.Warnings = append(res.Warnings, fmt.Sprintf("fixing install names for %s failed: %v", in.Target.FullName(), err))
	}
}

// printSummary logs the install's completion line, honoring the badge and
// no-emoji presentation overrides (§6).
func (in *Installer) printSummary(res *Result) {
	if in.Log == nil || in.Flags.Quieter {
		return
	}

	badge := in.Badge
	if badge == "" {
		badge = "\U0001F37A" // default badge
	}
	if in.NoEmoji {
		badge = ""
	}

	keg := in.kegFor(in.Target)
	fields := logrus.Fields{
		"formula": in.Target.FullName(),
		"prefix":  keg.KegPrefix(),
	}
	if in.ShowSummaryHeading || res.FailureFlag {
		fields["warnings"] = len(res.Warnings)
	}

	msg := keg.KegPrefix()
	if badge != "" {
		msg = badge + " " + msg
	}
	in.Log.WithFields(fields).Info(msg)
}
