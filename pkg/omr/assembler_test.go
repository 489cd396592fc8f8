package omr

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// newJob creates a workspace-like directory with an input file.
func newJob(t *testing.T, name string) Job {
	t.Helper()
	dir := t.TempDir()
	input := writeFile(t, dir, name, "image bytes")
	return NewJob(input, dir)
}

func succeedWith(write func(outputDir string)) Runner {
	return runnerFunc(func(_ context.Context, _, outputDir string) InvokeResult {
		write(outputDir)
		return InvokeResult{OK: true}
	})
}

func TestAssembleArchiveWithManifest(t *testing.T) {
	job := newJob(t, "input.png")
	a := NewAssembler(succeedWith(func(dir string) {
		writeMXL(t, filepath.Join(dir, "input.mxl"),
			entry{ManifestEntry, manifestXML},
			entry{"score.xml", scoreXML},
		)
	}))

	out := a.Assemble(context.Background(), job)

	if !out.OK() {
		t.Fatalf("Assemble() failed: %s", out.Note())
	}
	if out.MusicXML() != scoreXML {
		t.Errorf("MusicXML() = %q, want score.xml content", out.MusicXML())
	}
	if !out.Note().Empty() {
		t.Errorf("Note() = %q, want empty on success", out.Note())
	}
}

func TestAssemblePlainXML(t *testing.T) {
	job := newJob(t, "input.pdf")
	a := NewAssembler(succeedWith(func(dir string) {
		writeFile(t, dir, "input/input.xml", scoreXML)
	}))

	out := a.Assemble(context.Background(), job)
	if out.MusicXML() != scoreXML {
		t.Errorf("MusicXML() = %q, want plain file content", out.MusicXML())
	}
}

func TestAssembleEngineFailure(t *testing.T) {
	job := newJob(t, "input.png")
	a := NewAssembler(runnerFunc(func(_ context.Context, _, dir string) InvokeResult {
		writeFile(t, dir, "input/input.log", "trace")
		return InvokeResult{Kind: KindExit, Note: "OMR engine error: out of memory"}
	}))

	out := a.Assemble(context.Background(), job)

	if out.OK() {
		t.Fatal("Assemble() succeeded after engine failure")
	}
	if out.Kind() != KindExit {
		t.Errorf("Kind() = %q, want %q", out.Kind(), KindExit)
	}
	summary, _ := out.Note().Fact(FactSummary)
	if summary.Text != "OMR engine error: out of memory" {
		t.Errorf("summary = %q", summary.Text)
	}
	files, ok := out.Note().Fact(FactOutputFiles)
	if !ok {
		t.Fatal("missing output file listing")
	}
	if !reflect.DeepEqual(files.Items, []string{"input/input.log", "input.png"}) {
		t.Errorf("output files = %v", files.Items)
	}
	want := "OMR engine error: out of memory [Files in output: input/input.log, input.png]"
	if got := out.Note().String(); got != want {
		t.Errorf("Note() = %q, want %q", got, want)
	}
}

func TestAssembleNoOutput(t *testing.T) {
	job := newJob(t, "input.png")
	a := NewAssembler(runnerFunc(func(context.Context, string, string) InvokeResult {
		return InvokeResult{OK: true, StderrTail: "WARN no staff found"}
	}))

	out := a.Assemble(context.Background(), job)

	if out.Kind() != KindNoOutput {
		t.Errorf("Kind() = %q, want %q", out.Kind(), KindNoOutput)
	}
	detail, ok := out.Note().Fact(FactDetail)
	if !ok || detail.Text != "WARN no staff found" {
		t.Errorf("detail = %+v, %v", detail, ok)
	}
	if !strings.HasPrefix(out.Note().String(), NoOutputNote+" Detail: WARN no staff found") {
		t.Errorf("Note() = %q", out.Note())
	}
}

func TestAssembleExtractionFailureListsEntries(t *testing.T) {
	job := newJob(t, "input.png")
	var names []entry
	for i := 0; i < 18; i++ {
		names = append(names, entry{name: "blob" + string(rune('a'+i)), content: "x"})
	}
	a := NewAssembler(succeedWith(func(dir string) {
		writeMXL(t, filepath.Join(dir, "input.mxl"), names...)
	}))

	out := a.Assemble(context.Background(), job)

	if out.Kind() != KindExtraction {
		t.Fatalf("Kind() = %q, want %q", out.Kind(), KindExtraction)
	}
	entries, ok := out.Note().Fact(FactArchiveEntries)
	if !ok {
		t.Fatal("missing archive entry listing")
	}
	if len(entries.Items) != maxArchiveEntriesListed {
		t.Errorf("len(entries) = %d, want %d", len(entries.Items), maxArchiveEntriesListed)
	}
	if entries.Items[0] != "bloba" {
		t.Errorf("entries[0] = %q, want %q", entries.Items[0], "bloba")
	}
	if !strings.HasPrefix(out.Note().String(), ExtractionFailedNote+" [.mxl contents: bloba, blobb") {
		t.Errorf("Note() = %q", out.Note())
	}
}

func TestAssembleUnreadableArchive(t *testing.T) {
	job := newJob(t, "input.png")
	a := NewAssembler(succeedWith(func(dir string) {
		writeFile(t, dir, "input.mxl", "not a zip")
	}))

	out := a.Assemble(context.Background(), job)

	if out.Kind() != KindExtraction {
		t.Fatalf("Kind() = %q, want %q", out.Kind(), KindExtraction)
	}
	if _, ok := out.Note().Fact(FactArchiveUnreadable); !ok {
		t.Errorf("Note() = %q, want unreadable archive fact", out.Note())
	}
}

func TestAssembleEmptyFile(t *testing.T) {
	job := newJob(t, "input.png")
	a := NewAssembler(succeedWith(func(dir string) {
		writeFile(t, dir, "input.xml", "")
	}))

	out := a.Assemble(context.Background(), job)

	if out.Kind() != KindEmpty {
		t.Errorf("Kind() = %q, want %q", out.Kind(), KindEmpty)
	}
	if !strings.HasPrefix(out.Note().String(), NoResultNote) {
		t.Errorf("Note() = %q, want generic note", out.Note())
	}
}

func TestAssembleRecoversPanic(t *testing.T) {
	job := newJob(t, "input.png")
	a := NewAssembler(runnerFunc(func(context.Context, string, string) InvokeResult {
		panic("boom")
	}))

	out := a.Assemble(context.Background(), job)

	if out.Kind() != KindUnexpected {
		t.Errorf("Kind() = %q, want %q", out.Kind(), KindUnexpected)
	}
	if !strings.Contains(out.Note().String(), "boom") {
		t.Errorf("Note() = %q, want panic value", out.Note())
	}
}

func TestAssembleIsRepeatable(t *testing.T) {
	job := newJob(t, "input.png")
	a := NewAssembler(succeedWith(func(dir string) {
		writeMXL(t, filepath.Join(dir, "input.mxl"),
			entry{ManifestEntry, manifestXML},
			entry{"score.xml", scoreXML},
		)
	}))

	first := a.Assemble(context.Background(), job)
	if err := os.Remove(filepath.Join(job.OutputDir, "input.mxl")); err != nil {
		t.Fatal(err)
	}
	second := a.Assemble(context.Background(), job)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("outcomes differ: %+v vs %+v", first, second)
	}
}

func TestAssembleWithRealInvoker(t *testing.T) {
	engine := fakeEngine(t, `mkdir -p "$5/input"
printf '%s' '<?xml version="1.0"?><score-partwise/>' > "$5/input/input.xml"`)
	job := newJob(t, "input.pdf")

	out := NewAssembler(NewInvoker(EngineConfig{Command: engine})).Assemble(context.Background(), job)

	if out.MusicXML() != `<?xml version="1.0"?><score-partwise/>` {
		t.Errorf("MusicXML() = %q (note %q)", out.MusicXML(), out.Note())
	}
}
