// Package engine implements the conversion service behind the transport
// layer. Engine implements transport.Converter: it validates the upload,
// stores it in a private workspace, runs the OMR pipeline under a
// concurrency limit, records metrics, persists a conversion record when a
// store is configured, and returns MusicXML or a degraded placeholder.
// The store is optional; a nil store disables history.
package engine
