package omr

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// InputStem is the base name uploads are stored under inside a workspace.
const InputStem = "input"

// supportedExts lists the input formats the engine reads.
var supportedExts = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Job describes one conversion: the input file, the directory the engine
// writes into, and the input's stem the result is expected to be named after.
type Job struct {
	InputPath string
	OutputDir string
	BaseName  string
}

// NewJob derives a Job from an input path and an output directory.
func NewJob(inputPath, outputDir string) Job {
	name := filepath.Base(inputPath)
	return Job{
		InputPath: inputPath,
		OutputDir: outputDir,
		BaseName:  strings.TrimSuffix(name, filepath.Ext(name)),
	}
}

// NormalizeExtension returns the extension an upload named filename is stored
// with. Unsupported or missing extensions become ".png"; supported ones keep
// their original case.
func NormalizeExtension(filename string) string {
	ext := filepath.Ext(filename)
	if !supportedExts[strings.ToLower(ext)] {
		return ".png"
	}
	return ext
}

// Workspace is a private temporary directory holding one job's input and
// the engine's output. Close removes it recursively.
type Workspace struct {
	dir string
}

// NewWorkspace creates a workspace under parent, or under the system
// temporary directory when parent is empty.
func NewWorkspace(parent string) (*Workspace, error) {
	dir, err := os.MkdirTemp(parent, "scoregate-*")
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// StoreInput writes the upload into the workspace and returns the job for
// it. The engine writes its output into the workspace directory itself.
func (w *Workspace) StoreInput(filename string, r io.Reader) (Job, error) {
	inputPath := filepath.Join(w.dir, InputStem+NormalizeExtension(filename))
	f, err := os.OpenFile(inputPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Job{}, fmt.Errorf("creating input file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return Job{}, fmt.Errorf("writing input file: %w", err)
	}
	if err := f.Close(); err != nil {
		return Job{}, fmt.Errorf("closing input file: %w", err)
	}
	return NewJob(inputPath, w.dir), nil
}

// Close removes the workspace and everything in it.
func (w *Workspace) Close() error {
	return os.RemoveAll(w.dir)
}
