// Package option models the build-toggle vocabulary a formula's recipe can
// be invoked with: a single Option, an ordered Options set, and the
// BuildOptions pair used to answer "with"/"without" questions while
// pruning a dependency graph.
package option

import "strings"

// Option is a single named build toggle, optionally carrying a value
// ("name=value"). Two Options are equal iff their names match; the value
// is informational only, matching the teacher's USE-flag semantics where
// presence/absence of the flag name is what drives predicates.
type Option struct {
	Name  string
	Value string
}

// String renders the option the way it would appear on a command line.
func (o Option) String() string {
	if o.Value == "" {
		return o.Name
	}
	return o.Name + "=" + o.Value
}

// ParseOption splits a "name" or "name=value" token into an Option.
func ParseOption(token string) Option {
	if i := strings.IndexByte(token, '='); i >= 0 {
		return Option{Name: token[:i], Value: token[i+1:]}
	}
	return Option{Name: token}
}

// Options is an insertion-ordered set of Option values. The zero value is
// an empty set.
type Options struct {
	order  []string
	byName map[string]Option
}

// NewOptions builds an Options set from the given tokens, in order,
// deduplicating by name (first occurrence wins, matching shell-style
// "last flag doesn't silently override earlier semantics" behavior that
// the teacher's USE-flag merge relies on).
func NewOptions(tokens ...string) Options {
	var o Options
	for _, t := range tokens {
		o.Add(ParseOption(t))
	}
	return o
}

// Add inserts opt if its name is not already present.
func (o *Options) Add(opt Option) {
	if o.byName == nil {
		o.byName = make(map[string]Option)
	}
	if _, ok := o.byName[opt.Name]; ok {
		return
	}
	o.byName[opt.Name] = opt
	o.order = append(o.order, opt.Name)
}

// Has reports whether name is present in the set.
func (o Options) Has(name string) bool {
	_, ok := o.byName[name]
	return ok
}

// Get returns the Option for name and whether it was present.
func (o Options) Get(name string) (Option, bool) {
	opt, ok := o.byName[name]
	return opt, ok
}

// Slice returns the options in insertion order.
func (o Options) Slice() []Option {
	out := make([]Option, 0, len(o.order))
	for _, n := range o.order {
		out = append(out, o.byName[n])
	}
	return out
}

// Union returns a new Options set containing the receiver's entries
// followed by any entries of other not already present — the same
// "inherited ∪ declared ∪ persisted" merge §4.2 describes.
func (o Options) Union(other Options) Options {
	out := NewOptions()
	for _, opt := range o.Slice() {
		out.Add(opt)
	}
	for _, opt := range other.Slice() {
		out.Add(opt)
	}
	return out
}

// BuildOptions pairs the effective, fully-merged option set for one
// install with the formula's declared (optional/recommended) option
// names, giving the With/Without predicates dependency expansion prunes
// on (§4.2).
type BuildOptions struct {
	args     Options
	declared Options
}

// NewBuildOptions constructs a BuildOptions from the effective merged
// args and the formula's declared option set.
func NewBuildOptions(args, declared Options) BuildOptions {
	return BuildOptions{args: args, declared: declared}
}

// With reports whether name was requested among the effective args.
func (b BuildOptions) With(name string) bool {
	return b.args.Has(name)
}

// Without reports whether name (or its "with-<name>" form) is declared by
// the formula but neither form was requested among the effective args —
// the predicate §4.1/§4.2 use to prune optional/recommended dependency
// edges and requirements.
func (b BuildOptions) Without(name string) bool {
	declared := b.declared.Has(name) || b.declared.Has("with-"+name)
	requested := b.args.Has(name) || b.args.Has("with-"+name)
	return declared && !requested
}

// Empty reports whether no user-supplied args are in effect — used by the
// bottle-eligibility oracle's "non-empty options" negative gate (§4.1).
func (b BuildOptions) Empty() bool {
	return len(b.args.Slice()) == 0
}

// Args returns the effective option set.
func (b BuildOptions) Args() Options { return b.args }
