// Package artifacts enumerates recognized build outputs under the output
// root.
package artifacts

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/fwbuilder/internal/logfields"
)

// recognizedSuffixes is the fixed set of output name patterns: compressed and
// raw disk images, archives, and manifest/checksum files.
var recognizedSuffixes = []string{
	".img.gz",
	".img",
	".bin",
	".itb",
	".iso",
	".vmdk",
	".qcow2",
	".tar.gz",
	".tar.xz",
	".manifest",
}

var recognizedNames = map[string]struct{}{
	"sha256sums":    {},
	"profiles.json": {},
}

// Locate performs a bounded-depth traversal of outputRoot and returns the
// recognized artifact paths in walk order. An absent or empty output root is
// not a failure: artifact layout legitimately varies by target, so an empty
// set is returned and the pipeline still reports overall success.
func Locate(outputRoot string, maxDepth int) []string {
	if _, err := os.Stat(outputRoot); err != nil {
		slog.Warn("Output root absent, no artifacts", logfields.Path(outputRoot))
		return nil
	}

	var found []string
	err := filepath.WalkDir(outputRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("Artifact walk error (skipping)", logfields.Path(path), logfields.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(outputRoot, path)
		if relErr != nil {
			return nil
		}
		depth := len(strings.Split(rel, string(filepath.Separator)))
		if rel == "." {
			depth = 0
		}

		if d.IsDir() {
			if depth >= maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if recognized(d.Name()) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		slog.Warn("Artifact traversal aborted", logfields.Path(outputRoot), logfields.Error(err))
	}
	return found
}

func recognized(name string) bool {
	if _, ok := recognizedNames[name]; ok {
		return true
	}
	for _, suffix := range recognizedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
