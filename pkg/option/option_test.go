package option

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOption(t *testing.T) {
	assert.Equal(t, Option{Name: "universal"}, ParseOption("universal"))
	assert.Equal(t, Option{Name: "with-tests", Value: "true"}, ParseOption("with-tests=true"))
}

func TestOptionsAddDeduplicates(t *testing.T) {
	o := NewOptions("universal", "universal=weird")
	require.True(t, o.Has("universal"))
	got, ok := o.Get("universal")
	require.True(t, ok)
	assert.Equal(t, "", got.Value, "first occurrence wins")
	assert.Len(t, o.Slice(), 1)
}

func TestOptionsUnionPreservesOrderAndDedupes(t *testing.T) {
	a := NewOptions("universal", "with-tests")
	b := NewOptions("with-tests", "with-docs")

	u := a.Union(b)
	names := make([]string, 0)
	for _, opt := range u.Slice() {
		names = append(names, opt.Name)
	}
	assert.Equal(t, []string{"universal", "with-tests", "with-docs"}, names)
}

func TestBuildOptionsWithWithout(t *testing.T) {
	declared := NewOptions("with-tests", "with-docs")
	args := NewOptions("with-tests")
	b := NewBuildOptions(args, declared)

	assert.True(t, b.With("with-tests"))
	assert.False(t, b.With("with-docs"))
	assert.True(t, b.Without("with-docs"))
	assert.False(t, b.Without("with-tests"))
	assert.False(t, b.Without("not-declared-at-all"))
	assert.False(t, b.Empty())
}

func TestBuildOptionsEmpty(t *testing.T) {
	b := NewBuildOptions(NewOptions(), NewOptions("with-tests"))
	assert.True(t, b.Empty())
}
