package omr

import "strings"

// FactLabel identifies what a diagnostic fact describes.
type FactLabel string

const (
	// FactSummary is the base explanation of why no MusicXML was produced.
	FactSummary FactLabel = "summary"

	// FactDetail carries trailing engine log lines.
	FactDetail FactLabel = "detail"

	// FactArchiveEntries lists entry names found inside an .mxl bundle.
	FactArchiveEntries FactLabel = "archive_entries"

	// FactArchiveUnreadable records that an .mxl bundle could not be opened.
	FactArchiveUnreadable FactLabel = "archive_unreadable"

	// FactOutputFiles lists files the engine left in the output directory.
	FactOutputFiles FactLabel = "output_files"
)

// Fact is a single labeled piece of diagnostic information. List facts
// use Items; all others use Text.
type Fact struct {
	Label FactLabel `json:"label"`
	Text  string    `json:"text,omitempty"`
	Items []string  `json:"items,omitempty"`
}

// Diagnostic accumulates facts from successive pipeline stages in the order
// they were added. It is rendered to text only by String.
type Diagnostic struct {
	facts []Fact
}

// NewDiagnostic returns a diagnostic with the given summary. An empty
// summary yields an empty diagnostic.
func NewDiagnostic(summary string) Diagnostic {
	var d Diagnostic
	return d.With(FactSummary, summary)
}

// With returns a copy of d with a text fact appended. Empty text is ignored.
func (d Diagnostic) With(label FactLabel, text string) Diagnostic {
	text = strings.TrimSpace(text)
	if text == "" {
		return d
	}
	return d.append(Fact{Label: label, Text: text})
}

// WithList returns a copy of d with a list fact appended. Empty lists are
// ignored.
func (d Diagnostic) WithList(label FactLabel, items []string) Diagnostic {
	if len(items) == 0 {
		return d
	}
	return d.append(Fact{Label: label, Items: append([]string(nil), items...)})
}

func (d Diagnostic) append(f Fact) Diagnostic {
	facts := make([]Fact, 0, len(d.facts)+1)
	facts = append(facts, d.facts...)
	return Diagnostic{facts: append(facts, f)}
}

// Facts returns the facts in insertion order.
func (d Diagnostic) Facts() []Fact {
	return append([]Fact(nil), d.facts...)
}

// Fact returns the first fact with the given label.
func (d Diagnostic) Fact(label FactLabel) (Fact, bool) {
	for _, f := range d.facts {
		if f.Label == label {
			return f, true
		}
	}
	return Fact{}, false
}

// Empty reports whether d carries no facts.
func (d Diagnostic) Empty() bool {
	return len(d.facts) == 0
}

// String renders the diagnostic as a single human-readable line.
func (d Diagnostic) String() string {
	parts := make([]string, 0, len(d.facts))
	for _, f := range d.facts {
		switch f.Label {
		case FactSummary:
			parts = append(parts, f.Text)
		case FactDetail:
			parts = append(parts, "Detail: "+f.Text)
		case FactArchiveEntries:
			parts = append(parts, "[.mxl contents: "+strings.Join(f.Items, ", ")+"]")
		case FactArchiveUnreadable:
			parts = append(parts, "[cannot open .mxl: "+f.Text+"]")
		case FactOutputFiles:
			parts = append(parts, "[Files in output: "+strings.Join(f.Items, ", ")+"]")
		default:
			if f.Text != "" {
				parts = append(parts, f.Text)
			}
		}
	}
	return strings.Join(parts, " ")
}
