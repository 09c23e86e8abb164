package installer

import (
	"github.com/vsbuffalo/cellar/pkg/formula"
	"github.com/vsbuffalo/cellar/pkg/option"
	"github.com/vsbuffalo/cellar/pkg/tab"
)

// DefaultTabStore implements TabStore on top of a KegFinder and the tab
// package's own codec — the installer-side half of the "INSTALL_RECEIPT
// sidecar" data model (§3 "Tab").
type DefaultTabStore struct {
	Finder KegFinder
}

// NewDefaultTabStore constructs a DefaultTabStore bound to finder.
func NewDefaultTabStore(finder KegFinder) *DefaultTabStore {
	return &DefaultTabStore{Finder: finder}
}

// UsedOptions satisfies pkg/depgraph.TabOptions by reading back the
// options recorded the last time fullName was installed, if it is
// installed at all.
func (s *DefaultTabStore) UsedOptions(fullName string) (option.Options, bool) {
	keg, ok := s.Finder.InstalledKeg(fullName)
	if !ok {
		return option.NewOptions(), false
	}
	t, ok, err := tab.Load(keg.TabPath())
	if err != nil || !ok {
		return option.NewOptions(), false
	}
	return option.NewOptions(t.UsedOptions...), true
}

// Load reads the tab for keg directly, bypassing the KegFinder (used once
// the installer has already computed the keg it is about to pour into).
func (s *DefaultTabStore) Load(keg formula.Keg) (tab.Tab, bool, error) {
	return tab.Load(keg.TabPath())
}

// Save writes the tab for keg.
func (s *DefaultTabStore) Save(keg formula.Keg, t tab.Tab) error {
	return tab.Save(keg.TabPath(), t)
}
