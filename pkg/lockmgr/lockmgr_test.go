package lockmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAllThenReleaseAll(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.AcquireAll([]string{"sqlite", "readline", "ncurses"}))
	assert.True(t, m.Owns())

	require.NoError(t, m.ReleaseAll())
	assert.False(t, m.Owns())
}

func TestAcquireAllIsNoOpOnceOwned(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.AcquireAll([]string{"sqlite"}))

	// A nested dependency installer sharing this Manager observes the
	// non-empty lock list and performs no further lock work.
	require.NoError(t, m.AcquireAll([]string{"some-other-formula"}))
	assert.True(t, m.Owns())

	require.NoError(t, m.ReleaseAll())
}

func TestReleaseAllIsIdempotent(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.AcquireAll([]string{"sqlite"}))
	require.NoError(t, m.ReleaseAll())
	require.NoError(t, m.ReleaseAll())
}

func TestReleaseAllOnNonOwnerIsNoOp(t *testing.T) {
	m := NewManager(t.TempDir())
	assert.False(t, m.Owns())
	require.NoError(t, m.ReleaseAll())
}
