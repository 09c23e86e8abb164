package installer

import (
	"fmt"

	"github.com/vsbuffalo/cellar/pkg/formula"
)

// The error kinds of spec.md §7. Fatal kinds (AlreadyAttempted through
// UnsatisfiedRequirements, plus PourFailed in developer mode and
// BuildFailed) propagate out of Install unchanged or wrapped. Non-fatal
// kinds (LinkConflict, LinkError, PlistInstallFailed,
// FixInstallNamesFailed, CleanFailed, PostInstallFailed) are recorded on
// Result.Warnings and Result.FailureFlag instead of being returned.

// AlreadyAttemptedError reports that formula is already in the process's
// attempt registry.
type AlreadyAttemptedError struct {
	Formula string
}

func (e *AlreadyAttemptedError) Error() string {
	return fmt.Sprintf("installer: %s is already being installed in this process", e.Formula)
}

// AlreadyLinkedDifferentVersionError reports that a different version of
// the target is currently linked.
type AlreadyLinkedDifferentVersionError struct {
	Formula, LinkedVersion, RequestedVersion string
}

func (e *AlreadyLinkedDifferentVersionError) Error() string {
	return fmt.Sprintf("installer: %s %s is linked; unlink it before installing %s",
		e.Formula, e.LinkedVersion, e.RequestedVersion)
}

// UnlinkedDependenciesError reports installed, non-keg-only dependencies
// that are not currently linked (§4.3).
type UnlinkedDependenciesError struct {
	Names []string
}

func (e *UnlinkedDependenciesError) Error() string {
	return fmt.Sprintf("installer: dependencies installed but not linked: %v", e.Names)
}

// ConflictError reports a conflicting, linked formula (§4.3
// check_conflicts).
type ConflictError struct {
	Formula string
	With    []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("installer: %s conflicts with linked formula(e): %v", e.Formula, e.With)
}

// UnsatisfiedRequirementsError reports fatal requirements that remain
// unmet after requirement expansion (§4.2, §4.3).
type UnsatisfiedRequirementsError struct {
	Requirements map[string][]formula.Requirement
}

func (e *UnsatisfiedRequirementsError) Error() string {
	n := 0
	for _, rs := range e.Requirements {
		n += len(rs)
	}
	return fmt.Sprintf("installer: %d unsatisfied requirement(s)", n)
}

// FormulaUnavailableError reports that a formula could not be loaded at
// all (not a tap-availability problem specifically).
type FormulaUnavailableError struct {
	Name      string
	Dependent string
	Err       error
}

func (e *FormulaUnavailableError) Error() string {
	if e.Dependent != "" {
		return fmt.Sprintf("installer: formula %s (required by %s) is unavailable: %v", e.Name, e.Dependent, e.Err)
	}
	return fmt.Sprintf("installer: formula %s is unavailable: %v", e.Name, e.Err)
}

func (e *FormulaUnavailableError) Unwrap() error { return e.Err }

// TapFormulaUnavailableError reports that a formula is unavailable
// because its tap has not been added; the prelude attempts a single
// auto-tap-and-retry before surfacing this.
type TapFormulaUnavailableError struct {
	Name      string
	Dependent string
	Err       error
}

func (e *TapFormulaUnavailableError) Error() string {
	return fmt.Sprintf("installer: tap formula %s (required by %s) unavailable after auto-tap: %v", e.Name, e.Dependent, e.Err)
}

func (e *TapFormulaUnavailableError) Unwrap() error { return e.Err }

// PourFailedError wraps a failed bottle pour. In non-developer mode the
// installer recovers from this by falling through to a source build; in
// developer mode it is re-raised.
type PourFailedError struct {
	Formula string
	Err     error
}

func (e *PourFailedError) Error() string {
	return fmt.Sprintf("installer: pouring bottle for %s failed: %v", e.Formula, e.Err)
}

func (e *PourFailedError) Unwrap() error { return e.Err }

// BuildFailedError wraps a failed source build. Non-recoverable; the
// caller has already triggered prefix cleanup by the time this is
// returned.
type BuildFailedError struct {
	Formula string
	Err     error
}

func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("installer: building %s from source failed: %v", e.Formula, e.Err)
}

func (e *BuildFailedError) Unwrap() error { return e.Err }

// LinkConflictError reports that linking a keg would overwrite files
// belonging to another formula. Non-fatal: the finisher records it on
// Result and moves on (§7).
type LinkConflictError struct {
	Files []string
}

func (e *LinkConflictError) Error() string {
	return fmt.Sprintf("installer: link conflicts with existing file(s): %v", e.Files)
}

// LinkError wraps any other failure a Linker implementation reports while
// linking a keg. Non-fatal (§7).
type LinkError struct {
	Err error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("installer: linking failed: %v", e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }
