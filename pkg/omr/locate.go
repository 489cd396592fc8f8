package omr

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rhuss/scoregate/pkg/debug"
)

// ArchiveExt is the extension of compressed MusicXML bundles.
const ArchiveExt = ".mxl"

// PlainExt is the extension of uncompressed MusicXML files.
const PlainExt = ".xml"

// locateStrategy looks for a result artifact under outputDir.
type locateStrategy struct {
	name string
	fn   func(outputDir, baseName string) (string, bool)
}

// locateStrategies are tried in order; the first match wins. Flat matches
// come first because image input leaves the result next to it, while PDF
// input makes the engine create a per-book subfolder.
var locateStrategies = []locateStrategy{
	{"flat_mxl", flatMatch(ArchiveExt)},
	{"flat_xml", flatMatch(PlainExt)},
	{"nested_mxl", nestedMatch(ArchiveExt)},
	{"nested_xml", nestedMatch(PlainExt)},
}

// Locate returns the most plausible result artifact under outputDir for an
// input whose stem is baseName.
func Locate(outputDir, baseName string) (string, bool) {
	for _, s := range locateStrategies {
		if path, ok := s.fn(outputDir, baseName); ok {
			debug.Log("locator", "artifact found", "strategy", s.name, "path", path)
			return path, true
		}
	}
	debug.Log("locator", "no artifact", "dir", outputDir, "base", baseName)
	return "", false
}

func flatMatch(ext string) func(string, string) (string, bool) {
	return func(outputDir, baseName string) (string, bool) {
		candidate := filepath.Join(outputDir, baseName+ext)
		if isRegularFile(candidate) {
			return candidate, true
		}
		return "", false
	}
}

func nestedMatch(ext string) func(string, string) (string, bool) {
	return func(outputDir, _ string) (string, bool) {
		var found string
		walkFiles(outputDir, func(path string) bool {
			if strings.HasSuffix(filepath.Base(path), ext) {
				found = path
				return false
			}
			return true
		})
		return found, found != ""
	}
}

// ListFiles returns up to limit paths of regular files under dir, relative
// to dir, in walk order. A limit <= 0 returns all files.
func ListFiles(dir string, limit int) []string {
	var files []string
	walkFiles(dir, func(path string) bool {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		files = append(files, filepath.ToSlash(rel))
		return limit <= 0 || len(files) < limit
	})
	return files
}

// walkFiles calls visit for each regular file under root in lexical order
// until visit returns false. Unreadable subtrees are skipped.
func walkFiles(root string, visit func(path string) bool) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() && !isRegularFile(path) {
			return nil
		}
		if !visit(path) {
			return fs.SkipAll
		}
		return nil
	})
}

// isRegularFile reports whether path is, or links to, a regular file.
func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			debug.Log("locator", "stat failed", "path", path, "error", err)
		}
		return false
	}
	return info.Mode().IsRegular()
}
