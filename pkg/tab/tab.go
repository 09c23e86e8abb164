// Package tab implements the INSTALL_RECEIPT.json sidecar spec.md §3/§6
// describe as an opaque, persisted record of how a keg was installed.
// Grounded on the teacher's vardbapi metadata persistence
// (pkg/dbapi/vartree.go), which writes comparable per-keg bookkeeping
// (COUNTER, aux cache) as flat files inside the vdb entry.
package tab

import (
	"encoding/json"
	"os"
)

// Tab records how one keg was installed, read back on upgrades and
// rewritten after a bottle pour (§3, §4.7).
type Tab struct {
	UsedOptions      []string `json:"used_options"`
	Compiler         string   `json:"compiler"`
	Tap              string   `json:"tap"`
	PouredFromBottle bool     `json:"poured_from_bottle"`
}

// Load reads and decodes the tab at path. A missing file is not an error:
// it returns a zero Tab and ok=false, matching "no prior install" rather
// than a read failure.
func Load(path string) (Tab, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Tab{}, false, nil
		}
		return Tab{}, false, err
	}
	var t Tab
	if err := json.Unmarshal(data, &t); err != nil {
		return Tab{}, false, err
	}
	return t, true, nil
}

// Save atomically writes t to path: write to a sibling temp file, then
// rename over the destination, so a concurrent reader never observes a
// partially-written tab.
func Save(path string, t Tab) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
