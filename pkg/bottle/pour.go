package bottle

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vsbuffalo/cellar/pkg/formula"
	"github.com/vsbuffalo/cellar/pkg/tab"
)

// Fetcher downloads a bottle archive, returning a local path to it.
// Archive download is an out-of-scope external collaborator (spec.md §1).
type Fetcher interface {
	Fetch(f formula.Formula, b formula.Bottle) (localPath string, err error)
}

// CompilerChecker probes whether a freshly-poured keg's recorded compiler
// is ABI-compatible with its recursive dependencies' compilers (§4.7 step
// 6, "C++-stdlib compatibility check"). Out-of-scope external
// collaborator: the actual ABI rules live outside this module.
type CompilerChecker interface {
	Compatible(pouredCompiler string, depCompilers []string) bool
}

// Pourer drives a bottle pour: fetch-or-local selection, integrity
// verification, staging into the cellar, etc/var relocation, and tab
// rewrite (§4.7).
type Pourer struct {
	Fetcher  Fetcher
	Verifier func(path, algo, wantHex string) error
	Compiler CompilerChecker
	Hook     func(f formula.Formula) (claimed bool, err error)
	Log      *logrus.Logger
}

// Result summarizes a completed pour.
type Result struct {
	KegPrefix string
}

// Pour implements §4.7 end to end.
func (p *Pourer) Pour(f formula.Formula, keg formula.Keg, digestAlgo, digestHex string, recursiveDepCompilers []string, tap string) (Result, error) {
	if p.Hook != nil {
		if claimed, err := p.Hook(f); claimed {
			return Result{KegPrefix: keg.KegPrefix()}, err
		}
	}

	b, ok := f.Bottle()
	if !ok {
		return Result{}, fmt.Errorf("bottle: %s declares no bottle descriptor", f.FullName())
	}

	archivePath := b.LocalPath
	if archivePath == "" {
		path, err := p.Fetcher.Fetch(f, b)
		if err != nil {
			return Result{}, fmt.Errorf("bottle: fetching %s: %w", f.FullName(), err)
		}
		archivePath = path

		if p.Verifier != nil && digestAlgo != "" {
			if err := p.Verifier(archivePath, digestAlgo, digestHex); err != nil {
				return Result{}, fmt.Errorf("bottle: %w", err)
			}
		}
	}
	// A supplied LocalPath bypasses integrity checking, matching the
	// oracle's "local bottle path bypasses the file-modified gate" and
	// the pour driver's own "no integrity check" note for local paths.

	if err := os.MkdirAll(keg.BottlePrefix(), 0o755); err != nil {
		return Result{}, fmt.Errorf("bottle: preparing staging subtree: %w", err)
	}
	if err := stageArchive(archivePath, keg.BottlePrefix()); err != nil {
		return Result{}, fmt.Errorf("bottle: staging %s: %w", f.FullName(), err)
	}

	if err := relocateEtcVar(keg.BottlePrefix(), keg.Etc(), keg.Var()); err != nil {
		return Result{}, fmt.Errorf("bottle: relocating etc/var: %w", err)
	}
	// etc/var were just relocated into the shared prefix; the rest of the
	// staged tree (bin, lib, the tab, ...) still belongs in the keg itself.
	os.RemoveAll(filepath.Join(keg.BottlePrefix(), "etc"))
	os.RemoveAll(filepath.Join(keg.BottlePrefix(), "var"))

	if err := mergeTree(keg.BottlePrefix(), keg.KegPrefix()); err != nil {
		return Result{}, fmt.Errorf("bottle: merging staged tree into keg: %w", err)
	}
	if err := os.RemoveAll(keg.BottlePrefix()); err != nil {
		return Result{}, fmt.Errorf("bottle: removing staging subtree: %w", err)
	}

	t, _, err := tab.Load(keg.TabPath())
	if err != nil {
		return Result{}, fmt.Errorf("bottle: loading tab: %w", err)
	}
	if p.Compiler != nil && !p.Compiler.Compatible(t.Compiler, recursiveDepCompilers) {
		if p.Log != nil {
			p.Log.WithField("formula", f.FullName()).Warn("bottle: recursive dependency compiler mismatch")
		}
	}
	t.Tap = tap
	t.PouredFromBottle = true
	if err := tab.Save(keg.TabPath(), t); err != nil {
		return Result{}, fmt.Errorf("bottle: rewriting tab: %w", err)
	}

	return Result{KegPrefix: keg.KegPrefix()}, nil
}

// stageArchive extracts a gzip-compressed tar bottle archive into destDir,
// the "stage" primitive spec.md §1 lists as an out-of-scope external
// collaborator. A concrete tar/gzip implementation is supplied here
// because the teacher's bintree pour path (pkg/dbapi/bintree.go) uses the
// same pair and no other archive format appears anywhere in the pack.
func stageArchive(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target := filepath.Join(destDir, filepath.Clean(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("stage: archive entry %q escapes destination", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}

// relocateEtcVar copies the contents of bottlePrefix/{etc,var}/** into the
// shared prefix's etc/var trees, per §4.7 step 4. A destination file that
// already exists (a user-edited config) is not overwritten: the incoming
// file is written alongside it with a ".default" suffix instead, the
// "copy-with-renaming policy" the spec calls for.
func relocateEtcVar(bottlePrefix, sharedEtc, sharedVar string) error {
	for _, pair := range []struct{ from, to string }{
		{filepath.Join(bottlePrefix, "etc"), sharedEtc},
		{filepath.Join(bottlePrefix, "var"), sharedVar},
	} {
		if _, err := os.Stat(pair.from); os.IsNotExist(err) {
			continue
		}
		if err := copyTreeNoOverwrite(pair.from, pair.to); err != nil {
			return err
		}
	}
	return nil
}

// mergeTree moves the contents of srcRoot into dstRoot, overwriting any
// existing entries at the destination. Used to fold the bottle staging
// subtree into the keg proper once etc/var have already been pulled out of
// it (§4.7 step 5).
func mergeTree(srcRoot, dstRoot string) error {
	return filepath.Walk(srcRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		dst := filepath.Join(dstRoot, rel)

		if info.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}

		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		os.Remove(dst)
		return os.Rename(path, dst)
	})
}

func copyTreeNoOverwrite(srcRoot, dstRoot string) error {
	return filepath.Walk(srcRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(dstRoot, rel)

		if info.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}

		if _, err := os.Stat(dst); err == nil {
			dst += ".default"
		}

		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode())
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, in)
		return err
	})
}
