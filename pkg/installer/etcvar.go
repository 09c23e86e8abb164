package installer

import (
	"io"
	"os"
	"path/filepath"

	"github.com/vsbuffalo/cellar/pkg/formula"
)

// snapshotEtcVar lists every regular file under the shared prefix's etc
// and var trees, the "etc_var_preinstall"/"etc_var_postinstall" snapshot
// of §4.4 steps 9 and 11.
func snapshotEtcVar(keg formula.Keg) ([]string, error) {
	var files []string
	for _, root := range []string{keg.Etc(), keg.Var()} {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if !info.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// mirrorNewEtcVar copies every file under etc/var that appeared after
// preinstall into keg's bottle-staging subtree, so a subsequent
// "build-bottle" packaging step picks up newly created config/state
// files (§4.4 step 11).
func mirrorNewEtcVar(keg formula.Keg, preinstall []string) error {
	pre := make(map[string]bool, len(preinstall))
	for _, p := range preinstall {
		pre[p] = true
	}

	post, err := snapshotEtcVar(keg)
	if err != nil {
		return err
	}

	for _, p := range post {
		if pre[p] {
			continue
		}
		rel, err := filepath.Rel(keg.Prefix, p)
		if err != nil {
			return err
		}
		dst := filepath.Join(keg.BottlePrefix(), rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := copyFile(p, dst); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
