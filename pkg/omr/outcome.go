package omr

// FailureKind classifies why a conversion did not produce MusicXML.
type FailureKind string

const (
	KindNone       FailureKind = ""
	KindNotFound   FailureKind = "not_found"
	KindTimeout    FailureKind = "timeout"
	KindExit       FailureKind = "exit"
	KindStart      FailureKind = "start"
	KindNoOutput   FailureKind = "no_output"
	KindExtraction FailureKind = "extraction"
	KindEmpty      FailureKind = "empty"
	KindUnexpected FailureKind = "unexpected"
	KindCancelled  FailureKind = "cancelled"
)

// NoResultNote is used when a failure carries no more specific explanation.
const NoResultNote = "The server did not produce a result."

// Outcome is the result of a conversion: either MusicXML text or a
// diagnostic explaining its absence, never both and never neither.
type Outcome struct {
	musicXML string
	kind     FailureKind
	note     Diagnostic
}

// Success returns a successful outcome. Empty text is not a document, so it
// yields a failure with the generic note instead.
func Success(musicXML string) Outcome {
	if musicXML == "" {
		return Failure(KindEmpty, Diagnostic{})
	}
	return Outcome{musicXML: musicXML}
}

// Failure returns a failed outcome. A diagnostic without a summary gets
// NoResultNote prepended.
func Failure(kind FailureKind, note Diagnostic) Outcome {
	if _, ok := note.Fact(FactSummary); !ok {
		note = NewDiagnostic(NoResultNote).merge(note)
	}
	if kind == KindNone {
		kind = KindUnexpected
	}
	return Outcome{kind: kind, note: note}
}

// OK reports whether the outcome carries MusicXML.
func (o Outcome) OK() bool { return o.musicXML != "" }

// MusicXML returns the decoded document, or "" for failures.
func (o Outcome) MusicXML() string { return o.musicXML }

// Kind returns the failure classification, or KindNone on success.
func (o Outcome) Kind() FailureKind { return o.kind }

// Note returns the diagnostic. It is empty on success.
func (o Outcome) Note() Diagnostic { return o.note }

func (d Diagnostic) merge(other Diagnostic) Diagnostic {
	out := d
	for _, f := range other.facts {
		out = out.append(f)
	}
	return out
}
