// Package lockmgr implements the per-formula advisory locking spec.md §5
// describes: the root installer acquires flock(2)-based locks for a
// formula and its transitive closure, in a stable order, and releases
// them exactly once from the root finisher.
//
// Grounded on the teacher's atom/locks.go (lockfile/unlockfile), reduced
// to the flock(2) path only — the hardlink fallback there exists solely
// for filesystems without flock support, which this spec never exercises.
package lockmgr

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// Lock is one held advisory lock on a lock file derived from a formula
// name. The zero value is not usable; locks are obtained through
// Manager.AcquireAll.
type Lock struct {
	path string
	file *os.File
}

// Path returns the lock file's filesystem path, for logging.
func (l *Lock) Path() string { return l.path }

// Manager acquires and releases per-formula locks. A Manager is meant to
// be owned by exactly one root Installer instance for the lifetime of one
// top-level install; nested/dependency installers share the owning
// Manager rather than constructing their own (§5 "first installer to
// populate the shared lock list owns the release").
type Manager struct {
	dir string // directory holding lock files, e.g. HOMEBREW_CELLAR/.locks

	mu      sync.Mutex
	held    []*Lock
	ownedBy bool // true once this Manager has acquired at least one lock
}

// NewManager constructs a Manager whose lock files live under dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// lockPath derives a stable lock-file path for a formula name.
func (m *Manager) lockPath(name string) string {
	return filepath.Join(m.dir, name+".lock")
}

// AcquireAll acquires locks for every name in names, in the order given
// (callers are responsible for the "formula first, then its deps" stable
// order §5 requires), rolling back any partial acquisition on failure.
//
// If the Manager already holds locks (ownedBy is true), AcquireAll is a
// no-op: a nested dependency installer observes a non-empty lock list and
// performs no lock work of its own, matching §5's ownership rule.
func (m *Manager) AcquireAll(names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ownedBy {
		return nil
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("lockmgr: preparing lock dir: %w", err)
	}

	acquired := make([]*Lock, 0, len(names))
	for _, name := range names {
		l, err := m.acquireOne(name)
		if err != nil {
			for i := len(acquired) - 1; i >= 0; i-- {
				_ = m.release(acquired[i])
			}
			return fmt.Errorf("lockmgr: acquiring lock for %s: %w", name, err)
		}
		acquired = append(acquired, l)
	}

	m.held = acquired
	m.ownedBy = true
	return nil
}

// Owns reports whether this Manager is the one holding locks (i.e. it was
// the root installer that populated the shared lock list).
func (m *Manager) Owns() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownedBy
}

func (m *Manager) acquireOne(name string) (*Lock, error) {
	path := m.lockPath(name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock: %w", err)
	}
	return &Lock{path: path, file: f}, nil
}

func (m *Manager) release(l *Lock) error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	cerr := l.file.Close()
	if err != nil {
		return err
	}
	return cerr
}

// ReleaseAll releases every held lock exactly once, and only if this
// Manager is the owner (§5 "locks are released exactly once in the root
// finisher's scoped-release block"). Calling ReleaseAll on a non-owning
// Manager, or a second time on an already-released owner, is a no-op.
func (m *Manager) ReleaseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ownedBy || len(m.held) == 0 {
		return nil
	}

	var firstErr error
	for _, l := range m.held {
		if err := m.release(l); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.held = nil
	m.ownedBy = false
	return firstErr
}
