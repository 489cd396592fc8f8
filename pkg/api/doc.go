// Package api defines the wire types of the scoregate conversion gateway.
//
// The package performs no I/O. It provides the request and result types
// exchanged with the transport layer, the stored conversion record, the
// flat error shape returned for rejected requests, and upload validation.
//
// Core types:
//   - [ConversionRequest]: one uploaded score image or PDF
//   - [ConversionResult]: MusicXML, or a placeholder document plus a note
//   - [ConversionRecord]: the persisted summary of a finished conversion
//   - [APIError]: request-level error with type, message, and optional note
package api
