package installer

// State is the per-install state machine of spec.md §4.9.
type State int

const (
	StateNew State = iota
	StatePrelued
	StateConflictOK
	StateDepsDone
	StatePouring
	StatePoured
	StateBuilding
	StateBuilt
	StateCleaned
	StateFinishing
	StateDone

	StateAbortedPrelude
	StateAbortedDeps
	StateAbortedBuild
	StateAbortedPour // developer mode only
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StatePrelued:
		return "PRELUDED"
	case StateConflictOK:
		return "CONFLICT_OK"
	case StateDepsDone:
		return "DEPS_DONE"
	case StatePouring:
		return "POURING"
	case StatePoured:
		return "POURED"
	case StateBuilding:
		return "BUILDING"
	case StateBuilt:
		return "BUILT"
	case StateCleaned:
		return "CLEANED"
	case StateFinishing:
		return "FINISHING"
	case StateDone:
		return "DONE"
	case StateAbortedPrelude:
		return "ABORTED_PRELUDE"
	case StateAbortedDeps:
		return "ABORTED_DEPS"
	case StateAbortedBuild:
		return "ABORTED_BUILD"
	case StateAbortedPour:
		return "ABORTED_POUR"
	default:
		return "UNKNOWN"
	}
}
