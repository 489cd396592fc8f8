package omr

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"

	"github.com/rhuss/scoregate/pkg/debug"
)

const (
	// ManifestEntry is the well-known entry naming the root document of an
	// .mxl bundle.
	ManifestEntry = "META-INF/container.xml"

	// maxEntrySize bounds how much of a single entry is decompressed.
	maxEntrySize = 64 << 20

	// minContentRunes is the shortest payload the content heuristic accepts.
	minContentRunes = 50

	// headRunes is how much of a payload the content heuristic inspects.
	headRunes = 500
)

var rootfilePattern = regexp.MustCompile(`rootfile\s+[^>]*full-path=["']([^"']+)["']`)

// ArchiveEntry is a read-only view of one named stream inside an .mxl bundle.
type ArchiveEntry struct {
	file *zip.File
}

// Name returns the entry path inside the archive.
func (e ArchiveEntry) Name() string { return e.file.Name }

// IsDir reports whether the entry is a directory pseudo-entry.
func (e ArchiveEntry) IsDir() bool { return strings.HasSuffix(e.file.Name, "/") }

// Read decompresses the entry content.
func (e ArchiveEntry) Read() ([]byte, error) {
	rc, err := e.file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxEntrySize {
		return nil, fmt.Errorf("entry %s exceeds %d bytes", e.file.Name, maxEntrySize)
	}
	return data, nil
}

// Text decompresses the entry and decodes it as UTF-8 with replacement.
func (e ArchiveEntry) Text() (string, error) {
	data, err := e.Read()
	if err != nil {
		return "", err
	}
	return decodeText(data), nil
}

// archive is a random-access entry list.
type archive struct {
	entries []ArchiveEntry
	byName  map[string]ArchiveEntry
}

func newArchive(files []*zip.File) *archive {
	a := &archive{
		entries: make([]ArchiveEntry, 0, len(files)),
		byName:  make(map[string]ArchiveEntry, len(files)),
	}
	for _, f := range files {
		e := ArchiveEntry{file: f}
		a.entries = append(a.entries, e)
		if _, dup := a.byName[f.Name]; !dup {
			a.byName[f.Name] = e
		}
	}
	return a
}

// extractStrategy looks for the MusicXML document in an archive.
type extractStrategy struct {
	name string
	fn   func(*archive) (string, bool)
}

// extractStrategies are tried in order until one yields a document.
var extractStrategies = []extractStrategy{
	{"manifest", fromManifest},
	{"entry_name", byEntryName},
	{"entry_content", byEntryContent},
}

// ExtractXML returns the MusicXML document stored in the .mxl bundle at
// path. It reports false when the archive cannot be opened or none of the
// strategies finds a document; listing what the archive held is left to the
// caller.
func ExtractXML(path string) (string, bool) {
	r, err := zip.OpenReader(path)
	if err != nil {
		debug.Log("archive", "open failed", "path", path, "error", err)
		return "", false
	}
	defer r.Close()

	a := newArchive(r.File)
	for _, s := range extractStrategies {
		if text, ok := s.fn(a); ok {
			debug.Log("archive", "document found", "path", path, "strategy", s.name)
			return text, true
		}
	}
	debug.Log("archive", "no document found", "path", path, "entries", len(a.entries))
	return "", false
}

// EntryNames returns up to limit entry names of the archive at path, in
// archive order. A limit <= 0 returns all names.
func EntryNames(path string, limit int) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		if limit > 0 && len(names) == limit {
			break
		}
		names = append(names, f.Name)
	}
	return names, nil
}

// fromManifest follows the rootfile reference in META-INF/container.xml.
func fromManifest(a *archive) (string, bool) {
	manifest, ok := a.byName[ManifestEntry]
	if !ok {
		return "", false
	}
	text, err := manifest.Text()
	if err != nil {
		debug.Log("archive", "manifest unreadable", "error", err)
		return "", false
	}
	m := rootfilePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	root, ok := a.byName[strings.TrimSpace(m[1])]
	if !ok {
		debug.Log("archive", "manifest rootfile missing", "full_path", m[1])
		return "", false
	}
	doc, err := root.Text()
	if err != nil {
		return "", false
	}
	return doc, true
}

// byEntryName picks the first entry named like a score document.
func byEntryName(a *archive) (string, bool) {
	for _, e := range a.entries {
		if e.IsDir() {
			continue
		}
		n := strings.ToLower(e.Name())
		if strings.HasSuffix(n, ".musicxml") || (strings.HasSuffix(n, ".xml") && !strings.Contains(n, "container")) {
			doc, err := e.Text()
			if err != nil {
				return "", false
			}
			return doc, true
		}
	}
	return "", false
}

// byEntryContent picks the first entry whose content looks like MusicXML.
func byEntryContent(a *archive) (string, bool) {
	for _, e := range a.entries {
		if e.IsDir() {
			continue
		}
		text, err := e.Text()
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if utf8.RuneCountInString(text) < minContentRunes {
			continue
		}
		if looksLikeMusicXML(text) {
			return text, true
		}
	}
	return "", false
}

func looksLikeMusicXML(text string) bool {
	if strings.HasPrefix(text, "<?xml") || strings.HasPrefix(text, "<score") {
		return true
	}
	head := strings.ToLower(truncateRunes(text, headRunes))
	for _, marker := range []string{"musicxml", "<score ", "<score>", "<part-list"} {
		if strings.Contains(head, marker) {
			return true
		}
	}
	return false
}
