package omr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	// NoOutputNote explains a successful run that left no artifact.
	NoOutputNote = "OMR engine produced no MusicXML file."

	// ExtractionFailedNote explains an .mxl bundle without a document.
	ExtractionFailedNote = "MusicXML extraction from .mxl failed."

	maxArchiveEntriesListed = 15
	maxOutputFilesListed    = 20
)

// Assembler composes the engine run, artifact discovery and extraction into
// a single Outcome.
type Assembler struct {
	runner Runner
}

// NewAssembler returns an Assembler that runs the engine through runner.
func NewAssembler(runner Runner) *Assembler {
	return &Assembler{runner: runner}
}

// Assemble runs job through the pipeline. It never panics and never returns
// an outcome without either MusicXML or a note.
func (a *Assembler) Assemble(ctx context.Context, job Job) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "conversion pipeline panicked", "panic", r)
			out = a.fail(job, KindUnexpected, NewDiagnostic(fmt.Sprintf("Unexpected error: %v", r)))
		}
	}()

	res := a.runner.Invoke(ctx, job.InputPath, job.OutputDir)
	if !res.OK {
		return a.fail(job, res.Kind, NewDiagnostic(res.Note))
	}

	path, ok := Locate(job.OutputDir, job.BaseName)
	if !ok {
		return a.fail(job, KindNoOutput, NewDiagnostic(NoOutputNote).With(FactDetail, res.StderrTail))
	}

	if strings.EqualFold(filepath.Ext(path), ArchiveExt) {
		return a.fromArchive(job, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return a.fail(job, KindUnexpected, NewDiagnostic("Error: "+err.Error()))
	}
	text := decodeText(data)
	if text == "" {
		return a.fail(job, KindEmpty, Diagnostic{})
	}
	return Success(text)
}

func (a *Assembler) fromArchive(job Job, path string) Outcome {
	if text, ok := ExtractXML(path); ok && text != "" {
		return Success(text)
	}

	note := NewDiagnostic(ExtractionFailedNote)
	names, err := EntryNames(path, maxArchiveEntriesListed)
	if err != nil {
		note = note.With(FactArchiveUnreadable, err.Error())
	} else {
		note = note.WithList(FactArchiveEntries, names)
	}
	return a.fail(job, KindExtraction, note)
}

// fail builds a failed outcome decorated with the files the engine left
// behind.
func (a *Assembler) fail(job Job, kind FailureKind, note Diagnostic) Outcome {
	if files := ListFiles(job.OutputDir, maxOutputFilesListed); len(files) > 0 {
		note = note.WithList(FactOutputFiles, files)
	}
	return Failure(kind, note)
}
