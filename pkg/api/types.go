package api

import "io"

// PlaceholderXML is returned in place of a score when conversion fails, so
// callers always receive a parseable XML document.
const PlaceholderXML = "<?xml version=\"1.0\"?>\n<!-- OMR not available -->\n<placeholder/>"

// ConversionStatus is the final state of a conversion.
type ConversionStatus string

const (
	ConversionStatusSucceeded ConversionStatus = "succeeded"
	ConversionStatusFailed    ConversionStatus = "failed"
)

// ConversionRequest is one uploaded file to convert.
type ConversionRequest struct {
	// Filename is the client-supplied name; only its extension is used.
	Filename string

	// Size is the upload size in bytes, or -1 when unknown.
	Size int64

	// Body streams the upload content.
	Body io.Reader
}

// ConversionResult is the response body of a conversion. MusicXML is
// always set; Note is set only when conversion failed and MusicXML holds
// PlaceholderXML.
type ConversionResult struct {
	MusicXML string `json:"musicXml"`
	Note     string `json:"note,omitempty"`

	// ID identifies the stored record; sent as a header, not in the body.
	ID string `json:"-"`

	// FailureKind classifies a failure; empty on success.
	FailureKind string `json:"-"`
}

// NewSuccessResult returns a result carrying a converted score.
func NewSuccessResult(id, musicXML string) *ConversionResult {
	return &ConversionResult{ID: id, MusicXML: musicXML}
}

// NewDegradedResult returns a placeholder result explaining a failure.
func NewDegradedResult(id, kind, note string) *ConversionResult {
	return &ConversionResult{
		ID:          id,
		MusicXML:    PlaceholderXML,
		Note:        note,
		FailureKind: kind,
	}
}

// Degraded reports whether the result carries a placeholder.
func (r *ConversionResult) Degraded() bool {
	return r.Note != ""
}

// ConversionRecord is the persisted summary of one conversion. The MusicXML
// itself is not stored.
type ConversionRecord struct {
	ID          string           `json:"id"`
	Object      string           `json:"object"`
	Filename    string           `json:"filename"`
	Status      ConversionStatus `json:"status"`
	FailureKind string           `json:"failure_kind,omitempty"`
	Note        string           `json:"note,omitempty"`
	XMLBytes    int              `json:"xml_bytes"`
	DurationMs  int64            `json:"duration_ms"`
	CreatedAt   int64            `json:"created_at"`
}

// RecordList is a page of conversion records, newest first.
type RecordList struct {
	Object  string              `json:"object"`
	Data    []*ConversionRecord `json:"data"`
	HasMore bool                `json:"has_more"`
	FirstID string              `json:"first_id"`
	LastID  string              `json:"last_id"`
}

// HealthResponse is the liveness probe body.
type HealthResponse struct {
	Status        string `json:"status"`
	InFlight      int    `json:"in_flight"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
