package installer

import (
	"sync"

	"github.com/vsbuffalo/cellar/pkg/lockmgr"
)

// Context replaces the teacher's process-wide globals ("attempted",
// "locked") with an explicit value threaded through the install call
// tree, per spec.md §9's own Design Notes: "represent these as an
// installer context value threaded through calls; root installer owns
// it, child dependency-installers receive a reference."
//
// One Context is created per top-level (root) install and shared by every
// nested dependency installer it spawns.
type Context struct {
	mu        sync.Mutex
	attempted map[string]bool

	Locks *lockmgr.Manager
}

// NewContext constructs a fresh Context for one root install, backed by a
// lock manager rooted at lockDir.
func NewContext(lockDir string) *Context {
	return &Context{
		attempted: map[string]bool{},
		Locks:     lockmgr.NewManager(lockDir),
	}
}

// Enter adds name to the attempt registry and reports whether it was
// already present (§3 invariant: "attempted grows monotonically within a
// process; an install never enters twice").
//
// Because installs are strictly sequential within one process (§5
// "Shared-resource policy"), a simple mutex-guarded map suffices — no
// installer ever calls Enter concurrently with another.
func (c *Context) Enter(name string) (alreadyAttempted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempted[name] {
		return true
	}
	c.attempted[name] = true
	return false
}

// Attempted reports whether name has already been entered.
func (c *Context) Attempted(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempted[name]
}
